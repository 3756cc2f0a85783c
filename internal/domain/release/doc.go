// Package release contains the core domain types of the installer.
//
// It defines Version (the stable release triple scraped from the vendor page)
// and Release, which derives every filename and directory name for one run.
package release
