// Package dataset loads the statistical records and the optional secondary
// hierarchy dataset from any location the fetcher can reach.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/region-atlas/internal/fetcher"
	"github.com/sells-group/region-atlas/internal/hierarchy"
	"github.com/sells-group/region-atlas/internal/stats"
)

// Format identifies a statistics encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat infers the format from the location's extension. Unknown
// extensions are treated as JSON.
func DetectFormat(location string) Format {
	p := location
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	default:
		return FormatJSON
	}
}

// Options configures LoadRecords.
type Options struct {
	// Path is a JSONPath selecting the record array inside a JSON document.
	// Empty means the document itself is the array.
	Path string
	// Sheet names the XLSX sheet to read. Empty means the first sheet.
	Sheet string
	// TempDir holds XLSX downloads while they are parsed.
	TempDir string
}

// LoadRecords fetches and decodes the statistical dataset at location.
func LoadRecords(ctx context.Context, f fetcher.Fetcher, location string, opts Options) ([]stats.Record, error) {
	log := zap.L().With(zap.String("component", "dataset"))

	format := DetectFormat(location)
	var (
		records []stats.Record
		err     error
	)
	switch format {
	case FormatXLSX:
		records, err = loadXLSX(ctx, f, location, opts)
	case FormatCSV:
		records, err = loadCSV(ctx, f, location)
	default:
		records, err = loadJSON(ctx, f, location, opts.Path)
	}
	if err != nil {
		return nil, err
	}

	log.Debug("records loaded",
		zap.String("location", location),
		zap.String("format", string(format)),
		zap.Int("count", len(records)),
	)
	return records, nil
}

// LoadHierarchy fetches and decodes the secondary hierarchy dataset.
func LoadHierarchy(ctx context.Context, f fetcher.Fetcher, location string) (*hierarchy.Index, error) {
	data, err := readAll(ctx, f, location)
	if err != nil {
		return nil, err
	}
	ix, err := hierarchy.Decode(data)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: decode hierarchy %s", location)
	}
	return ix, nil
}

func loadJSON(ctx context.Context, f fetcher.Fetcher, location, selector string) ([]stats.Record, error) {
	if selector == "" {
		rc, err := f.Download(ctx, location)
		if err != nil {
			return nil, err
		}
		defer rc.Close() //nolint:errcheck

		records, err := fetcher.CollectJSONArray[stats.Record](ctx, stripBOM(rc))
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: decode %s", location)
		}
		return records, nil
	}

	data, err := readAll(ctx, f, location)
	if err != nil {
		return nil, err
	}
	return SelectRecords(data, selector)
}

// SelectRecords parses a JSON document and returns the objects matched by
// the JSONPath selector. A selector matching a single array yields that
// array's elements. Non-object matches are skipped.
func SelectRecords(data []byte, selector string) ([]stats.Record, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: invalid jsonpath %q", selector)
	}
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: parse json")
	}

	matches := x.Get(doc)
	if len(matches) == 1 {
		if arr, ok := matches[0].([]any); ok {
			matches = arr
		}
	}

	records := make([]stats.Record, 0, len(matches))
	for _, m := range matches {
		obj, ok := m.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, stats.Record(obj))
	}
	return records, nil
}

func loadCSV(ctx context.Context, f fetcher.Fetcher, location string) ([]stats.Record, error) {
	rc, err := f.Download(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	rowCh, errCh := fetcher.StreamCSV(ctx, rc, fetcher.CSVOptions{LazyQuotes: true})
	var records []stats.Record
	for row := range rowCh {
		records = append(records, rowRecord(row))
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrapf(err, "dataset: decode %s", location)
	}
	return records, nil
}

func loadXLSX(ctx context.Context, f fetcher.Fetcher, location string, opts Options) ([]stats.Record, error) {
	if opts.TempDir != "" {
		if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "dataset: create temp dir")
		}
	}
	dir, err := os.MkdirTemp(opts.TempDir, "stats-*")
	if err != nil {
		return nil, eris.Wrap(err, "dataset: create scratch dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	local := filepath.Join(dir, "stats.xlsx")
	if _, err := f.DownloadToFile(ctx, location, local); err != nil {
		return nil, err
	}

	rows, err := fetcher.ReadXLSXRows(local, fetcher.XLSXOptions{SheetName: opts.Sheet})
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: decode %s", location)
	}
	records := make([]stats.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowRecord(row))
	}
	return records, nil
}

func rowRecord(row map[string]string) stats.Record {
	rec := make(stats.Record, len(row))
	for k, v := range row {
		rec[k] = v
	}
	return rec
}

func readAll(ctx context.Context, f fetcher.Fetcher, location string) ([]byte, error) {
	rc, err := f.Download(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", location)
	}
	return bytes.TrimPrefix(data, bom), nil
}

var bom = []byte("\xef\xbb\xbf")

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, _ := br.Peek(len(bom)); bytes.Equal(head, bom) {
		_, _ = br.Discard(len(bom))
	}
	return br
}
