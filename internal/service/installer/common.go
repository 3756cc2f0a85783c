package installer

import (
	"crypto"
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/go-ps"

	// Register the digests behind supportedHashes.
	_ "crypto/md5"  //nolint:gosec // MD5 is what the vendor publishes.
	_ "crypto/sha1" //nolint:gosec // Offered for vendors that publish SHA1 files.
	_ "crypto/sha256"
	_ "crypto/sha512"
)

const (
	// checksumChunkSize is the read size used while hashing archives.
	checksumChunkSize = 8192

	// scratchPattern prefixes the per-run scratch directory.
	scratchPattern = "julia-updater-"

	// stagedFileMode is used for files staged in the scratch directory.
	stagedFileMode os.FileMode = 0o644

	// defaultDirMode is used for directories the installer creates itself.
	defaultDirMode os.FileMode = 0o755

	// maxPageSize bounds the downloads page read into memory.
	maxPageSize = 8 << 20

	// maxChecksumFileSize bounds the checksum file read into memory.
	maxChecksumFileSize = 1 << 20
)

var (
	errUpdaterAlreadyRunning = errors.New("another updater process is running")
	errHashUnavailable       = errors.New("hash function unavailable")
)

//nolint:gochecknoglobals // Read-only lookup table.
var supportedHashes = map[string]crypto.Hash{
	"md5":    crypto.MD5,
	"sha1":   crypto.SHA1,
	"sha256": crypto.SHA256,
	"sha512": crypto.SHA512,
}

// hashFor returns the digest registered for a checksum file extension.
func hashFor(alg string) (crypto.Hash, error) {
	hash, ok := supportedHashes[alg]
	if !ok {
		return 0, fmt.Errorf("%q: %w", alg, ErrUnsupportedAlgorithm)
	}

	if !hash.Available() {
		return 0, fmt.Errorf("%q: %w", alg, errHashUnavailable)
	}

	return hash, nil
}

// findProcesses returns the pids of processes whose executable is named processName,
// skipping excludePID.
func findProcesses(processName string, excludePID int) ([]int, error) {
	processList, err := ps.Processes()
	if err != nil {
		return nil, err
	}

	var pids []int

	for _, process := range processList {
		if process.Pid() == excludePID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		pids = append(pids, process.Pid())
	}

	return pids, nil
}
