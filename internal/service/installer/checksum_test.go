package installer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/julia-updater/internal/config"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func TestLookupChecksum(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "name-1.9.2.md5", []byte(
		"abc123  name-1.9.2-linux-x86_64.tar.gz\n"+
			"def456  name-1.9.2-linux-x86_64.tar.gz.asc\n"+
			"   \n"+
			"0f0f0f  name-1.9.2-win64.exe\n"))

	got, err := LookupChecksum(path, "name-1.9.2-linux-x86_64.tar.gz")
	require.NoError(t, err)
	require.Equal(t, "abc123", got)

	got, err = LookupChecksum(path, "win64.exe")
	require.NoError(t, err)
	require.Equal(t, "0f0f0f", got)

	_, err = LookupChecksum(path, "name-1.9.2-mac64.dmg")
	require.ErrorIs(t, err, ErrChecksumNotFound)

	_, err = LookupChecksum(filepath.Join(t.TempDir(), "missing.md5"), "x")
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestLookupChecksum_FirstLineWins takes the digest from the first matching line only.
func TestLookupChecksum_FirstLineWins(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "sums", []byte("def456  name.tar.gz.sig\nabc123  name.tar.gz\n"))

	got, err := LookupChecksum(path, "name.tar.gz")
	require.NoError(t, err)
	require.Equal(t, "def456", got)
}

// TestComputeChecksum_Chunked hashes a file spanning several read chunks.
func TestComputeChecksum_Chunked(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("0123456789abcdef"), (3*checksumChunkSize+17)/16+1)[:3*checksumChunkSize+17]
	path := writeFile(t, "archive.tar.gz", data)

	got, err := ComputeChecksum(path, "md5")
	require.NoError(t, err)
	require.Equal(t, md5Hex(data), got)

	sum := sha256.Sum256(data)
	got, err = ComputeChecksum(path, "sha256")
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(sum[:]), got)

	got, err = ComputeChecksum(writeFile(t, "empty", nil), "md5")
	require.NoError(t, err)
	require.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", got)
}

// TestComputeChecksum_UnsupportedAlgorithm fails before touching the file.
func TestComputeChecksum_UnsupportedAlgorithm(t *testing.T) {
	t.Parallel()

	_, err := ComputeChecksum(filepath.Join(t.TempDir(), "does-not-exist"), "crc32")
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestVerifyChecksum(t *testing.T) {
	t.Parallel()

	data := []byte("release payload")
	path := writeFile(t, "archive.tar.gz", data)
	digest := md5Hex(data)

	require.NoError(t, VerifyChecksum(path, "md5", digest))

	err := VerifyChecksum(path, "md5", md5Hex([]byte("other")))
	require.ErrorIs(t, err, ErrChecksumMismatch)
	require.Contains(t, err.Error(), digest)

	// Comparison is case-sensitive.
	err = VerifyChecksum(path, "md5", strings.ToUpper(digest))
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

// TestSupportedAlgorithmsHaveHashes keeps the config whitelist and the hash table in sync.
func TestSupportedAlgorithmsHaveHashes(t *testing.T) {
	t.Parallel()

	for _, alg := range config.SupportedChecksumAlgorithms {
		hash, err := hashFor(alg)
		require.NoError(t, err, alg)
		require.True(t, hash.Available(), alg)
	}
}
