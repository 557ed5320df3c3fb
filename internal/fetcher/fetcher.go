package fetcher

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for reading a source dataset.
type Fetcher interface {
	// Download fetches the location and returns its body.
	Download(ctx context.Context, location string) (io.ReadCloser, error)

	// DownloadToFile fetches the location and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, location string, path string) (int64, error)
}

// Mux dispatches to a Fetcher by location scheme: http and https, ftp, and
// file (also used for bare paths).
type Mux struct {
	HTTP Fetcher
	FTP  Fetcher
	File Fetcher
}

// Download implements Fetcher.
func (m *Mux) Download(ctx context.Context, location string) (io.ReadCloser, error) {
	f, err := m.route(location)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, location)
}

// DownloadToFile implements Fetcher.
func (m *Mux) DownloadToFile(ctx context.Context, location string, path string) (int64, error) {
	f, err := m.route(location)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, location, path)
}

func (m *Mux) route(location string) (Fetcher, error) {
	var f Fetcher
	switch Scheme(location) {
	case "http", "https":
		f = m.HTTP
	case "ftp":
		f = m.FTP
	case "file":
		f = m.File
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme in %q", location)
	}
	if f == nil {
		return nil, eris.Errorf("fetcher: no fetcher configured for %q", location)
	}
	return f, nil
}

// Scheme returns the lower-cased URL scheme of a location, or "file" for a
// plain filesystem path.
func Scheme(location string) string {
	u, err := url.Parse(location)
	if err != nil || len(u.Scheme) <= 1 {
		// Windows drive letters parse as one-letter schemes.
		return "file"
	}
	return strings.ToLower(u.Scheme)
}
