// Package fetch downloads release artifacts and unpacks the archives they
// ship in.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Sentinel errors for fetch operations.
var (
	// ErrUnsupportedArchive is returned when an archive is not gzip or xz
	// compressed tar, or zip.
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	// ErrUnsafePath is returned when an archive entry would land outside the
	// extraction directory.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL    string
	Status string
	Code   int
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", e.URL, e.Status)
}

// ProgressFunc is called while a download is in flight. total is -1 when the
// server did not announce a length.
type ProgressFunc func(url string, done, total int64)

// Fetcher downloads over HTTP.
type Fetcher struct {
	Client   *http.Client
	Progress ProgressFunc
}

// New returns a Fetcher using the default HTTP client.
func New() *Fetcher {
	return &Fetcher{Client: http.DefaultClient}
}

// Download writes the resource at url to dest. The body is streamed into a
// sibling ".part" file that is renamed over dest once complete, so an
// interrupted download never leaves a truncated dest behind.
func (f *Fetcher) Download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dest), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", url, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: url, Status: resp.Status, Code: resp.StatusCode}
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("creating %s: %w", part, err)
	}
	var body io.Reader = resp.Body
	if f.Progress != nil {
		body = &progressReader{r: resp.Body, url: url, total: resp.ContentLength, fn: f.Progress}
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(part)
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(part)
		return fmt.Errorf("writing %s: %w", part, err)
	}
	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return fmt.Errorf("renaming %s: %w", part, err)
	}
	return nil
}

type progressReader struct {
	r     io.Reader
	url   string
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.fn(p.url, p.done, p.total)
	}
	return n, err
}
