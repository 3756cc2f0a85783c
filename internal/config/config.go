package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the installer needs to locate, fetch and place a release.
type Config struct {
	// Name is the distribution name used in every filename and link ("julia").
	Name string `yaml:"name"`
	// DownloadsURL is the vendor page advertising the current stable release.
	DownloadsURL string `yaml:"downloads_url"`
	// VersionMarkerID is the id of the HTML element holding the stable version text.
	VersionMarkerID string `yaml:"version_marker_id"`
	// CDNURL is the base of the checksum and archive URLs.
	CDNURL string `yaml:"cdn_url"`
	// Platform is the archive suffix for the only supported target.
	Platform string `yaml:"platform"`
	// ArchPath is the CDN directory holding archives for Platform.
	ArchPath string `yaml:"arch_path"`
	// ChecksumAlgorithm selects the published checksum file and the digest to compute.
	ChecksumAlgorithm string `yaml:"checksum_algorithm"`
	// InstallRoot receives one directory per installed version plus the stable link.
	InstallRoot string `yaml:"install_root"`
	// BinDir is the directory on PATH that receives the binary link.
	BinDir string `yaml:"bin_dir"`
	// ProcessName is the executable name used to detect a concurrently running updater.
	ProcessName string `yaml:"process_name"`
	// Timeout bounds requests for the downloads page and the checksum file. Zero means no deadline.
	Timeout time.Duration `yaml:"timeout"`
	// DownloadTimeout bounds the archive download. Zero means no deadline.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

const (
	// DefaultConfigFilename is the default filename for installer settings.
	DefaultConfigFilename = "/etc/julia-updater.yaml"

	// DefaultName is the distribution managed by default.
	DefaultName = "julia"

	// DefaultDownloadsURL is the page that advertises the current stable release.
	DefaultDownloadsURL = "https://julialang.org/downloads/"

	// DefaultVersionMarkerID is the element id wrapping the stable version on DefaultDownloadsURL.
	DefaultVersionMarkerID = "current_stable_release"

	// DefaultCDNURL hosts release archives and checksum files.
	DefaultCDNURL = "https://julialang-s3.julialang.org"

	// DefaultPlatform is the archive suffix for linux x86_64 builds.
	DefaultPlatform = "linux-x86_64"

	// DefaultArchPath is the CDN path segment for linux x86_64 builds.
	DefaultArchPath = "linux/x64"

	// DefaultChecksumAlgorithm matches the checksum files the vendor publishes.
	DefaultChecksumAlgorithm = "md5"

	// DefaultInstallRoot is where versioned installation directories live.
	DefaultInstallRoot = "/opt"

	// DefaultBinDir is where the binary link is placed.
	DefaultBinDir = "/usr/local/bin"

	// DefaultProcessName is the name of the installer executable.
	DefaultProcessName = "julia-updater"

	// DefaultTimeout is the default duration for metadata requests.
	DefaultTimeout = 30 * time.Second

	// DefaultDownloadTimeout is the default duration for the archive download.
	DefaultDownloadTimeout = 15 * time.Minute

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o644
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidName is returned when the distribution name cannot be used in a filename.
	errInvalidName = errors.New("name must be a non-empty path segment")
	// errRelativePath is returned when a filesystem location is not absolute.
	errRelativePath = errors.New("path must be absolute")
	// errUnsupportedAlgorithm is returned for checksum algorithms the installer cannot compute.
	errUnsupportedAlgorithm = errors.New("unsupported checksum algorithm")
	// errNegativeTimeout is returned for timeouts below zero.
	errNegativeTimeout = errors.New("timeout must not be negative")
)

// SupportedChecksumAlgorithms lists the checksum file extensions the installer understands.
//
//nolint:gochecknoglobals // Read-only lookup table.
var SupportedChecksumAlgorithms = []string{"md5", "sha1", "sha256", "sha512"}

// Default returns the settings used when no configuration file is present.
func Default() *Config {
	return &Config{
		Name:              DefaultName,
		DownloadsURL:      DefaultDownloadsURL,
		VersionMarkerID:   DefaultVersionMarkerID,
		CDNURL:            DefaultCDNURL,
		Platform:          DefaultPlatform,
		ArchPath:          DefaultArchPath,
		ChecksumAlgorithm: DefaultChecksumAlgorithm,
		InstallRoot:       DefaultInstallRoot,
		BinDir:            DefaultBinDir,
		ProcessName:       DefaultProcessName,
		Timeout:           DefaultTimeout,
		DownloadTimeout:   DefaultDownloadTimeout,
	}
}

// Load reads configuration from the provided path and validates it.
// An empty path falls back to DefaultConfigFilename and, when that file is
// absent, to Default(). Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return cfg, Validate(cfg)
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err = yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes Config to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults for empty string fields and checks the rest for consistency.
// Timeouts are kept as given: Load starts from Default, so only an explicit zero disables a deadline.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	applyDefaults(settings)

	if strings.ContainsAny(settings.Name, `/\`) || settings.Name == "." || settings.Name == ".." {
		return fmt.Errorf("%q: %w", settings.Name, errInvalidName)
	}

	for _, raw := range []string{settings.DownloadsURL, settings.CDNURL} {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid URL %q: %w", raw, err)
		}
	}

	for _, dir := range []string{settings.InstallRoot, settings.BinDir} {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("%s: %w", dir, errRelativePath)
		}
	}

	if settings.Timeout < 0 || settings.DownloadTimeout < 0 {
		return fmt.Errorf("%s, %s: %w", settings.Timeout, settings.DownloadTimeout, errNegativeTimeout)
	}

	settings.ChecksumAlgorithm = strings.ToLower(strings.TrimSpace(settings.ChecksumAlgorithm))
	if !IsSupportedAlgorithm(settings.ChecksumAlgorithm) {
		return fmt.Errorf("%s: %w", settings.ChecksumAlgorithm, errUnsupportedAlgorithm)
	}

	return nil
}

// IsSupportedAlgorithm reports whether alg is one of SupportedChecksumAlgorithms.
func IsSupportedAlgorithm(alg string) bool {
	return slices.Contains(SupportedChecksumAlgorithms, alg)
}

func applyDefaults(settings *Config) {
	defaults := Default()

	setIfEmpty(&settings.Name, defaults.Name)
	setIfEmpty(&settings.DownloadsURL, defaults.DownloadsURL)
	setIfEmpty(&settings.VersionMarkerID, defaults.VersionMarkerID)
	setIfEmpty(&settings.CDNURL, defaults.CDNURL)
	setIfEmpty(&settings.Platform, defaults.Platform)
	setIfEmpty(&settings.ArchPath, defaults.ArchPath)
	setIfEmpty(&settings.ChecksumAlgorithm, defaults.ChecksumAlgorithm)
	setIfEmpty(&settings.InstallRoot, defaults.InstallRoot)
	setIfEmpty(&settings.BinDir, defaults.BinDir)
	setIfEmpty(&settings.ProcessName, defaults.ProcessName)
}

func setIfEmpty(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}
