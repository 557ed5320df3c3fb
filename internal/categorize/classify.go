// Package categorize sorts the open set of fields in a statistical record
// into semantic buckets (counts, percentages, labels).
package categorize

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/sells-group/region-atlas/internal/stats"
)

// Bucket names a category of fields.
type Bucket string

// Buckets, in display order.
const (
	Numbers     Bucket = "Numbers"
	Percentages Bucket = "Percentages"
	Other       Bucket = "Other"
)

// BucketOrder is the order buckets appear in a display hierarchy.
var BucketOrder = []Bucket{Numbers, Percentages, Other}

// Kind is the classification of a single field value.
type Kind int

// Field kinds.
const (
	KindNumeric Kind = iota
	KindPercentage
	KindOther
)

// Bucket returns the bucket a kind is stored in.
func (k Kind) Bucket() Bucket {
	switch k {
	case KindNumeric:
		return Numbers
	case KindPercentage:
		return Percentages
	default:
		return Other
	}
}

func (k Kind) String() string {
	return string(k.Bucket())
}

// Categories maps each non-empty bucket to its field values.
type Categories map[Bucket]map[string]float64

// Fields returns the number of classified fields across all buckets.
func (c Categories) Fields() int {
	var n int
	for _, fields := range c {
		n += len(fields)
	}
	return n
}

// Classify buckets every non-identity, non-nil field of a record. Buckets
// with no fields are omitted.
//
// Fields that are neither numeric nor percentage strings land in Other with
// a value of 0: their text is dropped and only the field name survives, so
// that every leaf of a display tree carries a numeric weight.
func Classify(rec stats.Record) Categories {
	out := make(Categories, len(BucketOrder))
	for field, v := range rec {
		if v == nil || stats.IsIdentityField(field) {
			continue
		}
		kind, value := ClassifyValue(v)
		b := kind.Bucket()
		if out[b] == nil {
			out[b] = make(map[string]float64)
		}
		out[b][field] = value
	}
	return out
}

// ClassifyValue applies the classification rules in order:
//  1. a numeric value (NaN excluded) is numeric
//  2. a string ending in "%" that parses as a float (decimal comma allowed)
//     is a percentage
//  3. a string that parses as a float once thousands separators are
//     removed is numeric
//  4. anything else is Other, with value 0
func ClassifyValue(v any) (Kind, float64) {
	if f, ok := numberValue(v); ok {
		return KindNumeric, f
	}

	s, ok := v.(string)
	if !ok {
		return KindOther, 0
	}

	if strings.HasSuffix(strings.TrimSpace(s), "%") {
		pct := strings.Replace(strings.Replace(s, "%", "", 1), ",", ".", 1)
		if f, ok := ParseFloatPrefix(pct); ok {
			return KindPercentage, f
		}
	}

	if f, ok := ParseFloatPrefix(strings.ReplaceAll(s, ",", "")); ok {
		return KindNumeric, f
	}

	return KindOther, 0
}

// Numeric returns the numeric reading of a value: numbers as-is, strings
// with thousands separators parsed. Percent strings are not unwrapped.
func Numeric(v any) (float64, bool) {
	if f, ok := numberValue(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		return ParseFloatPrefix(strings.ReplaceAll(s, ",", ""))
	}
	return 0, false
}

var floatPrefixRe = regexp.MustCompile(`^[+-]?(?:Infinity|(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?)`)

// ParseFloatPrefix parses the longest leading decimal literal of s after
// skipping leading whitespace, so "12.5 cases" reads as 12.5. It reports
// false when s has no such prefix.
func ParseFloatPrefix(s string) (float64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	m := floatPrefixRe.FindString(s)
	if m == "" {
		return 0, false
	}

	switch strings.TrimLeft(m, "+-") {
	case "Infinity":
		if strings.HasPrefix(m, "-") {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	}

	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

func numberValue(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int8:
		f = float64(t)
	case int16:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case uint:
		f = float64(t)
	case uint8:
		f = float64(t)
	case uint16:
		f = float64(t)
	case uint32:
		f = float64(t)
	case uint64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
