package installer

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrChecksumNotFound is returned when no checksum line names the archive.
	ErrChecksumNotFound = errors.New("checksum not found")
	// ErrChecksumMismatch is returned when the computed digest differs from the published one.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrUnsupportedAlgorithm is returned for checksum identifiers without a registered digest.
	ErrUnsupportedAlgorithm = errors.New("unsupported checksum algorithm")
)

// LookupChecksum returns the first field of the first line of the checksum
// file at path that contains filename.
func LookupChecksum(path, filename string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	var checksum string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, filename) {
			continue
		}

		if fields := strings.Fields(line); len(fields) > 0 {
			checksum = fields[0]
		}

		break
	}

	if err = scanner.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	if checksum == "" {
		return "", fmt.Errorf("%s in %s: %w", filename, filepath.Base(path), ErrChecksumNotFound)
	}

	return checksum, nil
}

// ComputeChecksum hashes the file at path with alg and returns the lowercase hex digest.
// The algorithm is checked before the file is opened.
func ComputeChecksum(path, alg string) (string, error) {
	hash, err := hashFor(alg)
	if err != nil {
		return "", err
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := hash.New()
	chunk := make([]byte, checksumChunkSize)

	for {
		n, readErr := file.Read(chunk)
		if n > 0 {
			// hash.Hash writes never fail.
			_, _ = hasher.Write(chunk[:n])
		}

		if errors.Is(readErr, io.EOF) {
			break
		}

		if readErr != nil {
			return "", fmt.Errorf("read %s: %w", filepath.Base(path), readErr)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyChecksum compares the digest of the file at path with expected, case-sensitively.
func VerifyChecksum(path, alg, expected string) error {
	actual, err := ComputeChecksum(path, alg)
	if err != nil {
		return err
	}

	if actual != expected {
		return fmt.Errorf("%s: %w: got %s want %s", filepath.Base(path), ErrChecksumMismatch, actual, expected)
	}

	return nil
}
