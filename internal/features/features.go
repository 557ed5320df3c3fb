// Package features decodes region geometries from GeoJSON, TopoJSON and ESRI
// shapefiles into a single Feature model.
package features

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/region-atlas/internal/fetcher"
)

// Feature is one region geometry with its free-form properties.
type Feature struct {
	ID         string
	Properties map[string]any
	Geometry   geom.T
}

// Bounds returns the geometry's bounding box, or nil when the feature has no
// geometry.
func (f Feature) Bounds() *geom.Bounds {
	if f.Geometry == nil {
		return nil
	}
	return f.Geometry.Bounds()
}

// Decode parses a GeoJSON FeatureCollection, a single GeoJSON Feature, or a
// TopoJSON Topology. object selects the TopoJSON object; empty means the
// first object by name.
func Decode(data []byte, object string) ([]Feature, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "features: decode document type")
	}

	switch head.Type {
	case "Topology":
		return DecodeTopoJSON(data, object)
	case "FeatureCollection", "Feature":
		return DecodeGeoJSON(data)
	default:
		return nil, eris.Errorf("features: unsupported document type %q", head.Type)
	}
}

// Options configures Load.
type Options struct {
	// Object names the TopoJSON object to read.
	Object string
	// TempDir holds downloaded archives while they are unpacked.
	TempDir string
}

// Load fetches location and decodes its features. Zipped shapefiles are
// downloaded to a scratch directory under opts.TempDir and removed afterwards.
func Load(ctx context.Context, f fetcher.Fetcher, location string, opts Options) ([]Feature, error) {
	log := zap.L().With(zap.String("component", "features"))

	switch strings.ToLower(path.Ext(locationPath(location))) {
	case ".zip":
		return loadZippedShapefile(ctx, f, location, opts.TempDir)
	case ".shp":
		if fetcher.Scheme(location) != "file" {
			return nil, eris.Errorf("features: remote shapefile %s must be zipped", location)
		}
		return ReadShapefile(fetcher.FilePath(location))
	}

	rc, err := f.Download(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "features: read %s", location)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	out, err := Decode(data, opts.Object)
	if err != nil {
		return nil, eris.Wrapf(err, "features: decode %s", location)
	}
	log.Debug("features loaded", zap.String("location", location), zap.Int("count", len(out)))
	return out, nil
}

func loadZippedShapefile(ctx context.Context, f fetcher.Fetcher, location, tempDir string) ([]Feature, error) {
	if tempDir != "" {
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "features: create temp dir")
		}
	}
	dir, err := os.MkdirTemp(tempDir, "features-*")
	if err != nil {
		return nil, eris.Wrap(err, "features: create scratch dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	zipPath := filepath.Join(dir, "features.zip")
	if _, err := f.DownloadToFile(ctx, location, zipPath); err != nil {
		return nil, err
	}
	if _, err := fetcher.ExtractZIP(zipPath, filepath.Join(dir, "x")); err != nil {
		return nil, eris.Wrapf(err, "features: extract %s", location)
	}
	shpPath, err := fetcher.FindByExt(filepath.Join(dir, "x"), ".shp")
	if err != nil {
		return nil, eris.Wrapf(err, "features: locate shapefile in %s", location)
	}
	return ReadShapefile(shpPath)
}

// locationPath returns the path part of a URL, or the location itself for
// plain filesystem paths.
func locationPath(location string) string {
	if fetcher.Scheme(location) == "file" {
		return fetcher.FilePath(location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	return u.Path
}
