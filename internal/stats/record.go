// Package stats holds statistical records and the multi-key indexes used to
// join them against geographic features.
package stats

import (
	"encoding/json"
	"math"

	"github.com/sells-group/region-atlas/internal/normalize"
)

// Identity and geo field names. These are never categorized.
const (
	FieldRegion    = "region"
	FieldCode      = "Code"
	FieldID        = "id"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
)

// Record is one row of a statistical dataset: an open mapping from field
// name to a decoded value (number, string, bool, or nested structure).
type Record map[string]any

// IsIdentityField reports whether a field carries identity or position
// rather than a statistic.
func IsIdentityField(field string) bool {
	switch field {
	case FieldRegion, FieldCode, FieldID, FieldLatitude, FieldLongitude:
		return true
	}
	return false
}

// Identity returns the field rendered as a string, and false when the field
// is absent or holds an empty value (nil, "", 0, false).
func (r Record) Identity(field string) (string, bool) {
	v, ok := r[field]
	if !ok || !present(v) {
		return "", false
	}
	return normalize.String(v), true
}

// Region returns the raw region name, or "".
func (r Record) Region() string {
	s, _ := r.Identity(FieldRegion)
	return s
}

// NormalizedRegion returns the normalized key of the region name.
func (r Record) NormalizedRegion() string {
	return normalize.Key(r.Region())
}

// DerivedCode returns Code, else id, else the normalized region name.
func (r Record) DerivedCode() string {
	if code, ok := r.Identity(FieldCode); ok {
		return code
	}
	if id, ok := r.Identity(FieldID); ok {
		return id
	}
	return r.NormalizedRegion()
}

// LookupKeys returns the ordered key cascade used to find this record in a
// four-key index: Code, id, region, normalized region. Empty keys are omitted.
func (r Record) LookupKeys() []string {
	keys := make([]string, 0, 4)
	for _, field := range []string{FieldCode, FieldID, FieldRegion} {
		if k, ok := r.Identity(field); ok {
			keys = append(keys, k)
		}
	}
	if n := r.NormalizedRegion(); n != "" {
		keys = append(keys, n)
	}
	return keys
}

// present mirrors the truthiness test applied to identity values: nil,
// empty strings, zero numbers, NaN and false are treated as missing.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case int:
		return t != 0
	case int64:
		return t != 0
	case int32:
		return t != 0
	case uint64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	}
	return true
}
