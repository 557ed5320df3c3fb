package features

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/region-atlas/internal/normalize"
)

type geoJSONFeature struct {
	Type       string          `json:"type"`
	ID         any             `json:"id"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

type geoJSONDocument struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// DecodeGeoJSON parses a FeatureCollection or a single Feature. Features with
// a null or undecodable geometry are kept with a nil Geometry so their
// properties still reconcile; only features that are not JSON objects are
// skipped.
func DecodeGeoJSON(data []byte) ([]Feature, error) {
	var doc geoJSONDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "features: decode geojson")
	}

	raws := doc.Features
	switch doc.Type {
	case "FeatureCollection":
	case "Feature":
		raws = []json.RawMessage{data}
	default:
		return nil, eris.Errorf("features: expected FeatureCollection, got %q", doc.Type)
	}

	out := make([]Feature, 0, len(raws))
	for i, raw := range raws {
		f, err := decodeGeoJSONFeature(raw)
		if err != nil {
			zap.L().Warn("features: skipping malformed feature", zap.Int("index", i), zap.Error(err))
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func decodeGeoJSONFeature(raw json.RawMessage) (Feature, error) {
	var gf geoJSONFeature
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&gf); err != nil {
		return Feature{}, eris.Wrap(err, "features: decode feature")
	}

	f := Feature{
		ID:         normalize.String(gf.ID),
		Properties: gf.Properties,
	}
	if f.Properties == nil {
		f.Properties = map[string]any{}
	}

	if len(gf.Geometry) == 0 || string(gf.Geometry) == "null" {
		return f, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(gf.Geometry, &g); err != nil {
		zap.L().Warn("features: dropping undecodable geometry", zap.String("id", f.ID), zap.Error(err))
		return f, nil
	}
	f.Geometry = g
	return f, nil
}
