// Package fetcher downloads configuration and dataset files over HTTP(S)
// and FTP.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when the remote file does not exist (HTTP 404/410,
// FTP 550).
var ErrNotFound = eris.New("fetcher: remote file not found")

// Fetcher downloads remote files.
type Fetcher interface {
	// Download fetches the URL and returns the body. The caller closes it.
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL into path, replacing any existing file
	// only once the transfer has completed. Returns bytes written.
	DownloadToFile(ctx context.Context, rawURL, path string) (int64, error)
}

// Options configures the fetchers built by New.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	RatePerSec float64
}

// Multi dispatches to an HTTP or FTP fetcher by URL scheme.
type Multi struct {
	http *HTTPFetcher
	ftp  *FTPFetcher
}

// New creates a Multi fetcher.
func New(opts Options) *Multi {
	return &Multi{
		http: NewHTTPFetcher(HTTPOptions{UserAgent: opts.UserAgent, Timeout: opts.Timeout, RatePerSec: opts.RatePerSec}),
		ftp:  NewFTPFetcher(FTPOptions{Timeout: opts.Timeout}),
	}
}

func (m *Multi) pick(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return m.http, nil
	case "ftp":
		return m.ftp, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// Download implements Fetcher.
func (m *Multi) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := m.pick(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// DownloadToFile implements Fetcher.
func (m *Multi) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	f, err := m.pick(rawURL)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, rawURL, path)
}

// writeFileAtomic copies r into a temp file next to path and renames it over
// path. On failure the temp file is removed and path is untouched.
func writeFileAtomic(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create temp file")
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return n, eris.Wrap(err, "fetcher: write file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return n, eris.Wrap(err, "fetcher: close file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return n, eris.Wrap(err, "fetcher: rename file")
	}
	return n, nil
}

func downloadToFile(ctx context.Context, f Fetcher, rawURL, path string) (int64, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	return writeFileAtomic(path, body)
}
