package installer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/julia-updater/internal/config"
	"github.com/oshokin/julia-updater/internal/domain/release"
	"github.com/oshokin/julia-updater/internal/logger"
	"github.com/oshokin/julia-updater/internal/repository/receipt"
)

var errMissingInstallDir = errors.New("archive did not produce the expected installation directory")

// Options are inputs accepted by the installer entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Config overrides ConfigPath when set.
	Config *config.Config
	// Source overrides the downloads page scraper when set.
	Source VersionSource
	// HTTPClient is used for every request; nil means a default client.
	HTTPClient *http.Client
	// ScratchRoot is the parent of the per-run scratch directory; empty means os.TempDir().
	ScratchRoot string
}

// runner holds the collaborators of a single run.
// Callers go through Run.
type runner struct {
	cfg         *config.Config
	fetch       *fetcher
	source      VersionSource
	receipts    receipt.Repository
	scratchRoot string
	scratchDir  string
}

// updateContext is everything derived from the resolved version. It is built
// once per run and passed by value to every step.
type updateContext struct {
	release      release.Release
	algorithm    string
	scratchDir   string
	installDir   string
	stableLink   string
	binaryLink   string
	binaryTarget string
}

func newUpdateContext(cfg *config.Config, version release.Version, scratchDir string) updateContext {
	rel := release.New(cfg.Name, version, cfg.Platform)
	stableLink := filepath.Join(cfg.InstallRoot, cfg.Name)

	return updateContext{
		release:      rel,
		algorithm:    cfg.ChecksumAlgorithm,
		scratchDir:   scratchDir,
		installDir:   filepath.Join(cfg.InstallRoot, rel.InstallDirName()),
		stableLink:   stableLink,
		binaryLink:   filepath.Join(cfg.BinDir, cfg.Name),
		binaryTarget: filepath.Join(stableLink, "bin", cfg.Name),
	}
}

func (c updateContext) checksumPath() string {
	return filepath.Join(c.scratchDir, c.release.ChecksumFilename(c.algorithm))
}

func (c updateContext) archivePath() string {
	return filepath.Join(c.scratchDir, c.release.ArchiveFilename())
}

// Run executes one update and is the public entry point for the CLI.
// Failures are returned as *StepError; see KindOf and ExitCode.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "julia-updater")

	if opts == nil {
		opts = new(Options)
	}

	r, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	if err = r.run(ctx); err != nil {
		if r.scratchDir != "" {
			logger.WarnKV(ctx, "Scratch directory kept for inspection", "path", r.scratchDir)
		}

		return err
	}

	r.cleanup(ctx)
	logger.Info(ctx, "Update completed")

	return nil
}

// newRunner loads settings and refuses to start next to another updater.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, stepError("configuration failed", KindUnknown, err)
		}

		cfg = loaded
	} else if err := config.Validate(cfg); err != nil {
		return nil, stepError("configuration failed", KindUnknown, err)
	}

	pids, err := findProcesses(cfg.ProcessName, os.Getpid())
	if err != nil {
		logger.WarnKV(ctx, "Could not list processes, skipping the single-instance check", "error", err)
	} else if len(pids) > 0 {
		return nil, stepError("startup failed", KindUnknown,
			fmt.Errorf("%s (pids %v): %w", cfg.ProcessName, pids, errUpdaterAlreadyRunning))
	}

	fetch := newFetcher(opts.HTTPClient)

	source := opts.Source
	if source == nil {
		source = NewHTMLVersionSource(opts.HTTPClient, cfg.DownloadsURL, cfg.VersionMarkerID, cfg.Timeout)
	}

	return &runner{
		cfg:         cfg,
		fetch:       fetch,
		source:      source,
		receipts:    receipt.NewFileRepository(filepath.Join(cfg.InstallRoot, receipt.Filename(cfg.Name))),
		scratchRoot: opts.ScratchRoot,
	}, nil
}

// run walks the update state machine:
// resolve -> (already installed | fetch, verify, extract) -> link -> record.
func (r *runner) run(ctx context.Context) error {
	scratchDir, err := os.MkdirTemp(r.scratchRoot, scratchPattern)
	if err != nil {
		return stepError("scratch directory setup failed", KindFilesystem, err)
	}

	r.scratchDir = scratchDir

	logger.InfoKV(ctx, "Resolving the current stable version", "source", r.cfg.DownloadsURL)

	version, err := r.source.ResolveVersion(ctx)
	if err != nil {
		return stepError("version resolution failed", resolveKind(err), err)
	}

	uc := newUpdateContext(r.cfg, version, scratchDir)
	ctx = logger.WithKV(ctx, "version", version.String())

	logger.InfoKV(ctx, "Resolved stable version", "install_dir", uc.installDir)
	r.reportPrevious(ctx, version)

	installed, err := isInstalled(uc.installDir)
	if err != nil {
		return stepError("installation check failed", KindFilesystem, err)
	}

	record := &receipt.Receipt{
		Name:       uc.release.Name,
		Version:    version.String(),
		InstallDir: uc.installDir,
	}

	if installed {
		logger.Info(ctx, "Version already installed, only refreshing links")
	} else {
		var checksum string

		if checksum, err = r.install(ctx, uc); err != nil {
			return err
		}

		record.Archive = uc.release.ArchiveFilename()
		record.ChecksumAlgorithm = uc.algorithm
		record.Checksum = checksum
	}

	if err = r.link(ctx, uc); err != nil {
		return err
	}

	record.UpdatedAt = time.Now().UTC()
	if err = r.receipts.Save(ctx, record); err != nil {
		logger.WarnKV(ctx, "Could not write the install receipt", "error", err)
	}

	if !installed {
		r.reportRunningRuntime(ctx)
	}

	return nil
}

// install fetches, verifies and extracts the release, returning the verified checksum.
func (r *runner) install(ctx context.Context, uc updateContext) (string, error) {
	checksumURL, err := joinURL(r.cfg.CDNURL, "bin", "checksums", uc.release.ChecksumFilename(uc.algorithm))
	if err != nil {
		return "", stepError("checksum download failed", KindUnknown, err)
	}

	logger.InfoKV(ctx, "Downloading the checksum file", "url", checksumURL)

	if err = r.fetch.stage(ctx, checksumURL, uc.checksumPath(), r.cfg.Timeout); err != nil {
		return "", stepError("checksum download failed", transferKind(err), err)
	}

	expected, err := LookupChecksum(uc.checksumPath(), uc.release.ArchiveFilename())
	if err != nil {
		kind := KindFilesystem
		if errors.Is(err, ErrChecksumNotFound) {
			kind = KindParse
		}

		return "", stepError("checksum lookup failed", kind, err)
	}

	archiveURL, err := joinURL(r.cfg.CDNURL, "bin", r.cfg.ArchPath, uc.release.Version.Series(), uc.release.ArchiveFilename())
	if err != nil {
		return "", stepError("archive download failed", KindUnknown, err)
	}

	logger.InfoKV(ctx, "Downloading the release archive", "url", archiveURL)

	size, err := r.fetch.download(ctx, archiveURL, uc.archivePath(), r.cfg.DownloadTimeout)
	if err != nil {
		return "", stepError("archive download failed", transferKind(err), err)
	}

	logger.InfoKV(ctx, "Downloaded the release archive",
		"path", uc.archivePath(), "size", humanize.Bytes(uint64(size))) //nolint:gosec // size is non-negative.

	if err = VerifyChecksum(uc.archivePath(), uc.algorithm, expected); err != nil {
		kind := KindFilesystem
		if errors.Is(err, ErrChecksumMismatch) {
			kind = KindIntegrity
		}

		return "", stepError("archive validation failed", kind, err)
	}

	logger.InfoKV(ctx, "Archive checksum verified", "algorithm", uc.algorithm, "checksum", expected)
	logger.InfoKV(ctx, "Extracting the release archive", "root", r.cfg.InstallRoot)

	entries, err := ExtractTarGz(ctx, uc.archivePath(), r.cfg.InstallRoot)
	if err != nil {
		return "", stepError("archive extraction failed", extractKind(err), err)
	}

	installed, err := isInstalled(uc.installDir)
	if err == nil && !installed {
		err = fmt.Errorf("%s: %w", uc.installDir, errMissingInstallDir)
	}

	if err != nil {
		return "", stepError("archive extraction failed", KindFilesystem, err)
	}

	logger.InfoKV(ctx, "Archive extracted", "entries", entries, "install_dir", uc.installDir)

	return expected, nil
}

// link retargets the stable link and creates the binary link when it is missing.
func (r *runner) link(ctx context.Context, uc updateContext) error {
	if err := RetargetStableLink(uc.stableLink, uc.installDir); err != nil {
		return stepError("symlink update failed", KindFilesystem, err)
	}

	logger.InfoKV(ctx, "Stable link updated", "link", uc.stableLink, "target", uc.installDir)

	created, err := EnsureBinaryLink(uc.binaryLink, uc.binaryTarget)
	if err != nil {
		return stepError("symlink update failed", KindFilesystem, err)
	}

	if created {
		logger.InfoKV(ctx, "Binary link created", "link", uc.binaryLink, "target", uc.binaryTarget)
	} else {
		logger.DebugKV(ctx, "Binary link already present, left unchanged", "link", uc.binaryLink)
	}

	return nil
}

// reportPrevious logs how the resolved version relates to the previous installation.
func (r *runner) reportPrevious(ctx context.Context, resolved release.Version) {
	previous, err := r.receipts.Load(ctx)

	var previousDir string

	switch {
	case err == nil:
		previousDir = filepath.Base(previous.InstallDir)
	case errors.Is(err, receipt.ErrNotFound):
		previousDir = linkedVersionDir(filepath.Join(r.cfg.InstallRoot, r.cfg.Name))
	default:
		logger.WarnKV(ctx, "Could not read the install receipt", "error", err)
		return
	}

	if previousDir == "" {
		logger.Info(ctx, "No previous installation recorded")
		return
	}

	previousVersion, err := release.ParseInstallDirName(r.cfg.Name, previousDir)
	if err != nil {
		logger.DebugKV(ctx, "Previous installation has an unrecognized name", "dir", previousDir)
		return
	}

	switch resolved.Compare(previousVersion) {
	case 1:
		logger.InfoKV(ctx, "Upgrading", "from", previousVersion.String())
	case -1:
		logger.WarnKV(ctx, "Upstream stable is older than the previous installation, converging to it anyway",
			"previous", previousVersion.String())
	default:
		logger.Debug(ctx, "Previous installation matches the stable version")
	}
}

// reportRunningRuntime warns about runtime processes still using the previous installation.
func (r *runner) reportRunningRuntime(ctx context.Context) {
	pids, err := findProcesses(r.cfg.Name, os.Getpid())
	if err != nil || len(pids) == 0 {
		return
	}

	logger.WarnKV(ctx, "Running processes keep using the previous installation until restarted",
		"name", r.cfg.Name, "pids", pids)
}

// cleanup removes the scratch directory after a successful run.
func (r *runner) cleanup(ctx context.Context) {
	if r.scratchDir == "" {
		return
	}

	if err := os.RemoveAll(r.scratchDir); err != nil {
		logger.WarnKV(ctx, "Could not remove the scratch directory", "path", r.scratchDir, "error", err)
	}
}

// isInstalled reports whether dir exists and is a directory.
func isInstalled(dir string) (bool, error) {
	info, err := os.Stat(dir)
	if err == nil {
		return info.IsDir(), nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	return false, err
}
