package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/julia-updater/internal/version"
)

var (
	errBadHTTPStatus       = errors.New("unexpected http status")
	errTransferInterrupted = errors.New("transfer interrupted")
)

// fetcher performs the GET requests of a run.
type fetcher struct {
	client *http.Client
}

func newFetcher(client *http.Client) *fetcher {
	if client == nil {
		// Deadlines come from the per-request contexts.
		client = &http.Client{}
	}

	return &fetcher{client: client}
}

// get issues a GET request and rejects anything but 200 OK.
// The caller closes the body of a non-nil response.
func (f *fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", version.UserAgent())

	response, err := f.client.Do(req)
	if err != nil {
		return response, err
	}

	if response.StatusCode != http.StatusOK {
		return response, fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	return response, nil
}

// stage fetches a small file and swaps it into dst with go-update, so dst
// never holds a partial body.
func (f *fetcher) stage(ctx context.Context, rawURL, dst string, timeout time.Duration) error {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	response, err := f.get(ctx, rawURL)
	if response != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}

	if err != nil {
		return err
	}

	dst = filepath.Clean(dst)

	// go-update renames the existing target aside, so one has to exist.
	if _, err = os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		var placeholder *os.File

		if placeholder, err = os.Create(dst); err != nil {
			return err
		}

		if err = placeholder.Close(); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: dst,
		TargetMode: stagedFileMode,
	}

	body := &transferReader{r: io.LimitReader(response.Body, maxChecksumFileSize)}
	if err = goupdate.Apply(body, options); err != nil {
		return fmt.Errorf("stage %s: %w", filepath.Base(dst), err)
	}

	return nil
}

// download streams rawURL into dst and returns the number of bytes written.
func (f *fetcher) download(ctx context.Context, rawURL, dst string, timeout time.Duration) (int64, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	response, err := f.get(ctx, rawURL)
	if response != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}

	if err != nil {
		return 0, err
	}

	outputFile, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, stagedFileMode)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(outputFile, &transferReader{r: response.Body})
	if err != nil {
		_ = outputFile.Close()

		return written, err
	}

	if err = outputFile.Close(); err != nil {
		return written, err
	}

	return written, nil
}

// transferReader tags read errors so they are told apart from local write errors.
type transferReader struct {
	r io.Reader
}

func (t *transferReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: %w", errTransferInterrupted, err)
	}

	return n, err
}

// joinURL appends path elements to a base URL.
func joinURL(base string, elems ...string) (string, error) {
	joined, err := url.JoinPath(base, elems...)
	if err != nil {
		return "", fmt.Errorf("build URL from %q: %w", base, err)
	}

	return joined, nil
}

// withTimeout returns a context bounded by timeout when it is positive,
// otherwise a cancellable child context without a deadline.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
