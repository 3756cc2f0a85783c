// Package version holds the julia-updater build metadata.
//
// Version, Commit and BuildTime are set with -ldflags "-X" at release time.
// Local builds report the defaults below.
package version
