package fetcher

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
)

// FileFetcher reads sources from a filesystem. Locations may be plain paths
// or file:// URLs.
type FileFetcher struct {
	fs afero.Fs
}

// NewFileFetcher creates a FileFetcher over fs. A nil fs means the OS filesystem.
func NewFileFetcher(fs afero.Fs) *FileFetcher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileFetcher{fs: fs}
}

// Download opens the file at location.
func (f *FileFetcher) Download(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "fetcher: context cancelled")
	}
	file, err := f.fs.Open(FilePath(location))
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", location)
	}
	return file, nil
}

// DownloadToFile copies the file at location to path on the OS filesystem.
func (f *FileFetcher) DownloadToFile(ctx context.Context, location string, path string) (int64, error) {
	rc, err := f.Download(ctx, location)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	return writeFile(path, rc)
}

// FilePath strips a file:// prefix from a location.
func FilePath(location string) string {
	return strings.TrimPrefix(location, "file://")
}
