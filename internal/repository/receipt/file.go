package receipt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/julia-updater/internal/config"
)

// Receipt describes the installation the stable link pointed at after the last successful run.
type Receipt struct {
	// Name is the distribution name.
	Name string `yaml:"name"`
	// Version is the installed version, "major.minor.patch".
	Version string `yaml:"version"`
	// InstallDir is the absolute path of the installation directory.
	InstallDir string `yaml:"install_dir"`
	// Archive is the archive filename, empty when the directory was already present.
	Archive string `yaml:"archive,omitempty"`
	// ChecksumAlgorithm is the algorithm used to verify Archive.
	ChecksumAlgorithm string `yaml:"checksum_algorithm,omitempty"`
	// Checksum is the verified digest of Archive.
	Checksum string `yaml:"checksum,omitempty"`
	// UpdatedAt is when the run finished.
	UpdatedAt time.Time `yaml:"updated_at"`
}

// Repository defines persistence operations for the receipt.
type Repository interface {
	Load(ctx context.Context) (*Receipt, error)
	Save(ctx context.Context, receipt *Receipt) error
}

// FileRepository persists the receipt to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the receipt file.
	path string
	// mu protects concurrent access to the receipt file.
	mu sync.Mutex
}

var (
	// ErrNotFound is returned when no receipt has been written yet.
	ErrNotFound = errors.New("receipt not found")
	// errReceiptIsNotSet is returned when Save is called with nil.
	errReceiptIsNotSet = errors.New("receipt is not set")
)

// Filename returns the receipt filename kept in the installation root for a distribution.
func Filename(name string) string {
	return "." + name + "-updater.yaml"
}

// NewFileRepository creates a repository that reads/writes YAML at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the receipt from disk.
func (r *FileRepository) Load(_ context.Context) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read receipt file: %w", err)
	}

	var receipt Receipt
	if err = yaml.Unmarshal(contents, &receipt); err != nil {
		return nil, fmt.Errorf("decode receipt file: %w", err)
	}

	return &receipt, nil
}

// Save writes the receipt to disk, replacing any previous one.
func (r *FileRepository) Save(_ context.Context, receipt *Receipt) error {
	if receipt == nil {
		return errReceiptIsNotSet
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write receipt file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("replace receipt file: %w", err)
	}

	return nil
}
