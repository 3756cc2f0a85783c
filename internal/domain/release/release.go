package release

import "fmt"

// Release names one version of one distribution built for one platform.
type Release struct {
	// Name is the distribution name, e.g. "julia".
	Name string
	// Version is the resolved stable version.
	Version Version
	// Platform is the archive suffix, e.g. "linux-x86_64".
	Platform string
}

// New builds a Release.
func New(name string, version Version, platform string) Release {
	return Release{
		Name:     name,
		Version:  version,
		Platform: platform,
	}
}

// ArchiveFilename is the name of the published archive: <name>-<version>-<platform>.tar.gz.
func (r Release) ArchiveFilename() string {
	return fmt.Sprintf("%s-%s-%s.tar.gz", r.Name, r.Version, r.Platform)
}

// ChecksumFilename is the name of the published checksum file: <name>-<version>.<alg>.
func (r Release) ChecksumFilename(alg string) string {
	return fmt.Sprintf("%s-%s.%s", r.Name, r.Version, alg)
}

// InstallDirName is the top-level directory inside the archive: <name>-<version>.
func (r Release) InstallDirName() string {
	return fmt.Sprintf("%s-%s", r.Name, r.Version)
}
