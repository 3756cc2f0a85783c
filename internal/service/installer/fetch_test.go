package installer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/julia-updater/internal/version"
)

// TestFetcher_Stage replaces the target atomically and leaves no side files behind.
func TestFetcher_Stage(t *testing.T) {
	t.Parallel()

	v := newVendor(t)
	f := newFetcher(v.server.Client())
	dir := t.TempDir()
	dst := filepath.Join(dir, "name-1.9.2.md5")

	require.NoError(t, f.stage(context.Background(), v.server.URL+"/bin/checksums/name-1.9.2.md5", dst, time.Second))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, v.checksum, string(got))

	// Staging again over an existing file works too.
	require.NoError(t, f.stage(context.Background(), v.server.URL+"/bin/checksums/name-1.9.2.md5", dst, time.Second))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFetcher_Download(t *testing.T) {
	t.Parallel()

	v := newVendor(t)
	f := newFetcher(v.server.Client())
	dst := filepath.Join(t.TempDir(), "archive.tar.gz")

	size, err := f.download(context.Background(),
		v.server.URL+"/bin/linux/x64/1.9/name-1.9.2-linux-x86_64.tar.gz", dst, 0)
	require.NoError(t, err)
	require.EqualValues(t, len(v.archive), size)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, v.archive, got)
}

// TestFetcher_BadStatus rejects non-200 answers before anything is written.
func TestFetcher_BadStatus(t *testing.T) {
	t.Parallel()

	url := servePage(t, http.StatusNotFound, "missing")
	f := newFetcher(nil)
	dst := filepath.Join(t.TempDir(), "archive.tar.gz")

	_, err := f.download(context.Background(), url, dst, time.Second)
	require.ErrorIs(t, err, errBadHTTPStatus)
	require.Equal(t, KindRemote, transferKind(err))

	_, err = os.Stat(dst)
	require.ErrorIs(t, err, os.ErrNotExist)

	err = f.stage(context.Background(), url, dst, time.Second)
	require.ErrorIs(t, err, errBadHTTPStatus)
}

func TestJoinURL(t *testing.T) {
	t.Parallel()

	got, err := joinURL("https://cdn.example.org/", "bin", "linux/x64", "1.9", "name-1.9.2-linux-x86_64.tar.gz")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.org/bin/linux/x64/1.9/name-1.9.2-linux-x86_64.tar.gz", got)

	_, err = joinURL("://bad", "x")
	require.Error(t, err)
}

// TestFetcher_UserAgent identifies the updater to the vendor site.
func TestFetcher_UserAgent(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
	}))
	t.Cleanup(server.Close)

	_, err := newFetcher(server.Client()).download(context.Background(), server.URL, filepath.Join(t.TempDir(), "f"), 0)
	require.NoError(t, err)
	require.Equal(t, version.UserAgent(), <-agents)
}

// TestWithTimeout leaves the context without a deadline for a zero timeout.
func TestWithTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := withTimeout(context.Background(), 0)
	defer cancel()

	_, ok := ctx.Deadline()
	require.False(t, ok)

	ctx, cancel = withTimeout(context.Background(), time.Minute)
	defer cancel()

	_, ok = ctx.Deadline()
	require.True(t, ok)
}
