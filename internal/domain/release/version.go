package release

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrVersionNotFound is returned when no v<major>.<minor>.<patch> token is present.
var ErrVersionNotFound = errors.New("version pattern not found")

//nolint:gochecknoglobals // Compiled once, read-only.
var versionPattern = regexp.MustCompile(`v(\d+)\.(\d+)\.(\d+)`)

// Version is a stable release triple. The zero value is not a valid release.
type Version struct {
	// Major is the first component of the release number.
	Major uint64
	// Minor selects the release series directory on the CDN.
	Minor uint64
	// Patch is the last component of the release number.
	Patch uint64
}

// ParseVersion extracts the first v<major>.<minor>.<patch> token from free-form text.
func ParseVersion(text string) (Version, error) {
	groups := versionPattern.FindStringSubmatch(text)
	if groups == nil {
		return Version{}, fmt.Errorf("%q: %w", truncate(text), ErrVersionNotFound)
	}

	var (
		parts [3]uint64
		err   error
	)

	for i := range parts {
		if parts[i], err = strconv.ParseUint(groups[i+1], 10, 64); err != nil {
			return Version{}, fmt.Errorf("parse %q: %w", groups[0], err)
		}
	}

	return Version{Major: parts[0], Minor: parts[1], Patch: parts[2]}, nil
}

// String renders the version as "major.minor.patch".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Series renders "major.minor", the CDN directory holding this release.
func (v Version) Series() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Semver converts the triple for ordering comparisons.
func (v Version) Semver() *semver.Version {
	return semver.New(v.Major, v.Minor, v.Patch, "", "")
}

// Compare returns -1, 0 or 1 when v is older than, equal to or newer than other.
func (v Version) Compare(other Version) int {
	return v.Semver().Compare(other.Semver())
}

// ParseInstallDirName recovers the version from a "<name>-<major>.<minor>.<patch>" directory name.
func ParseInstallDirName(name, dir string) (Version, error) {
	raw, ok := strings.CutPrefix(dir, name+"-")
	if !ok {
		return Version{}, fmt.Errorf("%q: %w", dir, ErrVersionNotFound)
	}

	parsed, err := semver.StrictNewVersion(raw)
	if err != nil || parsed.Prerelease() != "" || parsed.Metadata() != "" {
		return Version{}, fmt.Errorf("%q: %w", dir, ErrVersionNotFound)
	}

	return Version{Major: parsed.Major(), Minor: parsed.Minor(), Patch: parsed.Patch()}, nil
}

const maxQuotedText = 64

func truncate(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxQuotedText {
		return text
	}

	return text[:maxQuotedText] + "..."
}
