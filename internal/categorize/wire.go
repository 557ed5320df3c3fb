package categorize

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/region-atlas/internal/normalize"
)

// WireValue returns f as-is when finite, else its text form ("Infinity",
// "-Infinity", "NaN"). encoding/json rejects non-finite numbers, and
// "Infinity" is a valid field value.
func WireValue(f float64) any {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return normalize.String(f)
	}
	return f
}

// MarshalJSON encodes non-finite field values as strings.
func (c Categories) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("null"), nil
	}
	out := make(map[Bucket]map[string]any, len(c))
	for b, fields := range c {
		m := make(map[string]any, len(fields))
		for name, v := range fields {
			m[name] = WireValue(v)
		}
		out[b] = m
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts field values as numbers or as numeric strings,
// including the text forms written by MarshalJSON.
func (c *Categories) UnmarshalJSON(data []byte) error {
	var raw map[Bucket]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "categorize: decode categories")
	}
	if raw == nil {
		*c = nil
		return nil
	}

	out := make(Categories, len(raw))
	for b, fields := range raw {
		m := make(map[string]float64, len(fields))
		for name, v := range fields {
			f, ok := ParseWireValue(v)
			if !ok {
				return eris.Errorf("categorize: %s.%s is not a number: %v", b, name, v)
			}
			m[name] = f
		}
		out[b] = m
	}
	*c = out
	return nil
}

// ParseWireValue reads a decoded JSON value written by WireValue.
func ParseWireValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if t == "NaN" {
			return math.NaN(), true
		}
		return ParseFloatPrefix(t)
	}
	return 0, false
}
