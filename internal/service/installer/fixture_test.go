package installer

import (
	"archive/tar"
	"bytes"
	"crypto/md5" //nolint:gosec // Matches the vendor checksum format.
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/julia-updater/internal/config"
)

// tarEntry describes one member of a test archive.
type tarEntry struct {
	name     string
	body     string
	linkname string
	typeflag byte
	mode     int64
}

// buildArchive returns a gzip-compressed tar holding entries.
func buildArchive(t *testing.T, entries []tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, entry := range entries {
		header := &tar.Header{
			Name:     entry.name,
			Linkname: entry.linkname,
			Typeflag: entry.typeflag,
			Mode:     entry.mode,
			Size:     int64(len(entry.body)),
		}

		if entry.typeflag != tar.TypeReg {
			header.Size = 0
		}

		require.NoError(t, tw.WriteHeader(header))

		if entry.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(entry.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// releaseEntries is the layout of a "<name>-<version>" distribution archive.
func releaseEntries(dir, name string) []tarEntry {
	return []tarEntry{
		{name: dir + "/", typeflag: tar.TypeDir, mode: 0o755},
		{name: dir + "/bin/", typeflag: tar.TypeDir, mode: 0o755},
		{name: dir + "/bin/" + name, body: "#!/bin/sh\necho " + name + "\n", typeflag: tar.TypeReg, mode: 0o755},
		{name: dir + "/lib/libruntime.so.1", body: "shared object", typeflag: tar.TypeReg, mode: 0o644},
		{name: dir + "/lib/libruntime.so", linkname: "libruntime.so.1", typeflag: tar.TypeSymlink, mode: 0o777},
		{name: dir + "/share/doc/README", body: "docs", typeflag: tar.TypeReg, mode: 0o644},
	}
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data) //nolint:gosec // Matches the vendor checksum format.

	return hex.EncodeToString(sum[:])
}

// vendor is a fake vendor site serving a downloads page, checksum files and archives.
type vendor struct {
	server *httptest.Server

	page     string
	checksum string
	archive  []byte

	pageHits     atomic.Int32
	checksumHits atomic.Int32
	archiveHits  atomic.Int32
}

// newVendor serves release 1.9.2 of "name" with a correct checksum file.
func newVendor(t *testing.T) *vendor {
	t.Helper()

	archive := buildArchive(t, releaseEntries("name-1.9.2", "name"))

	v := &vendor{
		page: `<!DOCTYPE html><html><body>
<h1>Download</h1>
<p>Older release: v1.6.7</p>
<div id="current_stable_release"><a href="#">Current stable release: v1.9.2 (July 2023)</a></div>
</body></html>`,
		checksum: md5Hex([]byte("other")) + "  name-1.9.2-mac64.dmg\n" +
			md5Hex(archive) + "  name-1.9.2-linux-x86_64.tar.gz\n" +
			md5Hex([]byte("win")) + "  name-1.9.2-win64.exe\n",
		archive: archive,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/downloads/", func(w http.ResponseWriter, _ *http.Request) {
		v.pageHits.Add(1)
		_, _ = w.Write([]byte(v.page))
	})

	mux.HandleFunc("/bin/checksums/name-1.9.2.md5", func(w http.ResponseWriter, _ *http.Request) {
		v.checksumHits.Add(1)
		_, _ = w.Write([]byte(v.checksum))
	})

	mux.HandleFunc("/bin/linux/x64/1.9/name-1.9.2-linux-x86_64.tar.gz", func(w http.ResponseWriter, _ *http.Request) {
		v.archiveHits.Add(1)
		_, _ = w.Write(v.archive)
	})

	v.server = httptest.NewServer(mux)
	t.Cleanup(v.server.Close)

	return v
}

// hostLayout is a temporary stand-in for /opt, /usr/local/bin and the scratch parent.
type hostLayout struct {
	installRoot string
	binDir      string
	scratchRoot string
}

func newHostLayout(t *testing.T) hostLayout {
	t.Helper()

	root := t.TempDir()

	return hostLayout{
		installRoot: filepath.Join(root, "opt"),
		binDir:      filepath.Join(root, "usr", "local", "bin"),
		scratchRoot: t.TempDir(),
	}
}

func (v *vendor) options(host hostLayout) *Options {
	cfg := config.Default()
	cfg.Name = "name"
	cfg.DownloadsURL = v.server.URL + "/downloads/"
	cfg.CDNURL = v.server.URL
	cfg.InstallRoot = host.installRoot
	cfg.BinDir = host.binDir

	return &Options{
		Config:      cfg,
		HTTPClient:  v.server.Client(),
		ScratchRoot: host.scratchRoot,
	}
}
