// Package installer discovers, downloads, verifies and activates the latest
// stable release of a runtime distribution.
//
// A run resolves the stable version from the vendor downloads page, and when
// the matching installation directory is missing it fetches the vendor
// checksum file and release archive into a scratch directory, verifies the
// archive digest, and extracts it under the installation root. Either way it
// finishes by pointing the stable link at the installation and making sure
// the binary link exists.
package installer
