package categorize

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/region-atlas/internal/stats"
)

func TestClassifyValue(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		kind     Kind
		expected float64
	}{
		{name: "float", value: 1200.0, kind: KindNumeric, expected: 1200},
		{name: "int", value: 7, kind: KindNumeric, expected: 7},
		{name: "int64", value: int64(-3), kind: KindNumeric, expected: -3},
		{name: "json number", value: json.Number("4.25"), kind: KindNumeric, expected: 4.25},
		{name: "percent", value: "8.50%", kind: KindPercentage, expected: 8.5},
		{name: "percent decimal comma", value: "10,80%", kind: KindPercentage, expected: 10.8},
		{name: "percent trailing space", value: " 3% ", kind: KindPercentage, expected: 3},
		{name: "numeric string", value: "42", kind: KindNumeric, expected: 42},
		{name: "thousands separators", value: "1,234,567", kind: KindNumeric, expected: 1234567},
		{name: "leading prefix", value: "12abc", kind: KindNumeric, expected: 12},
		{name: "exponent", value: "-3.5e2", kind: KindNumeric, expected: -350},
		{name: "leading dot", value: ".5", kind: KindNumeric, expected: 0.5},
		{name: "padded", value: "  42  ", kind: KindNumeric, expected: 42},
		{name: "text", value: "urban", kind: KindOther, expected: 0},
		{name: "bare percent", value: "%", kind: KindOther, expected: 0},
		{name: "text percent", value: "n/a%", kind: KindOther, expected: 0},
		{name: "blank", value: "   ", kind: KindOther, expected: 0},
		{name: "bool", value: true, kind: KindOther, expected: 0},
		{name: "nested", value: map[string]any{"a": 1.0}, kind: KindOther, expected: 0},
		{name: "list", value: []any{1.0, 2.0}, kind: KindOther, expected: 0},
		{name: "NaN", value: math.NaN(), kind: KindOther, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, v := ClassifyValue(tt.value)
			assert.Equal(t, tt.kind, kind)
			assert.InDelta(t, tt.expected, v, 1e-9)
		})
	}
}

func TestClassifyValue_PercentBeforeNumericString(t *testing.T) {
	// "5,5%" would read as 55 under the thousands-separator rule.
	kind, v := ClassifyValue("5,5%")
	assert.Equal(t, KindPercentage, kind)
	assert.InDelta(t, 5.5, v, 1e-9)
}

func TestClassifyValue_Infinity(t *testing.T) {
	kind, v := ClassifyValue("Infinity")
	assert.Equal(t, KindNumeric, kind)
	assert.True(t, math.IsInf(v, 1))

	kind, v = ClassifyValue("-Infinity%")
	assert.Equal(t, KindPercentage, kind)
	assert.True(t, math.IsInf(v, -1))
}

func TestClassify_Scenario(t *testing.T) {
	rec := stats.Record{
		"region":          "Casablanca-Settat",
		"Code":            "CS",
		"Confirmed":       1200.0,
		"Positivity Rate": "8.50%",
		"Notes":           "urban",
	}

	got := Classify(rec)

	assert.Equal(t, Categories{
		Numbers:     {"Confirmed": 1200},
		Percentages: {"Positivity Rate": 8.5},
		Other:       {"Notes": 0},
	}, got)
}

func TestClassify_SkipsIdentityAndNil(t *testing.T) {
	rec := stats.Record{
		"region":    "Oriental",
		"Code":      "OR",
		"id":        8.0,
		"latitude":  34.68,
		"longitude": -1.9,
		"Deaths":    nil,
	}

	assert.Empty(t, Classify(rec))
}

func TestClassify_OmitsEmptyBuckets(t *testing.T) {
	got := Classify(stats.Record{"Confirmed": 3.0, "Deaths": "1,024"})

	require.Len(t, got, 1)
	assert.Equal(t, map[string]float64{"Confirmed": 3, "Deaths": 1024}, got[Numbers])
}

func TestClassify_PartitionAndOtherZero(t *testing.T) {
	records := []stats.Record{
		{"region": "A", "x": 1.0, "y": "2%", "z": "label", "w": nil, "v": false},
		{"Code": "B", "pop": "3,000", "rate": "1,5%", "nested": map[string]any{"k": "v"}, "latitude": "33"},
		{},
	}

	for _, rec := range records {
		got := Classify(rec)

		expected := map[string]bool{}
		for field, v := range rec {
			if v != nil && !stats.IsIdentityField(field) {
				expected[field] = true
			}
		}

		seen := map[string]Bucket{}
		for bucket, fields := range got {
			require.NotEmpty(t, fields, "bucket %s must be omitted when empty", bucket)
			for field := range fields {
				prev, dup := seen[field]
				assert.False(t, dup, "field %s in both %s and %s", field, prev, bucket)
				seen[field] = bucket
			}
		}
		assert.Len(t, seen, len(expected))
		for field := range expected {
			assert.Contains(t, seen, field)
		}
		assert.Equal(t, got.Fields(), len(expected))

		for _, v := range got[Other] {
			assert.Zero(t, v)
		}
	}
}

func TestNumeric(t *testing.T) {
	v, ok := Numeric(1200.0)
	require.True(t, ok)
	assert.InDelta(t, 1200, v, 0)

	v, ok = Numeric("36,000")
	require.True(t, ok)
	assert.InDelta(t, 36000, v, 0)

	_, ok = Numeric("n/a")
	assert.False(t, ok)
	_, ok = Numeric(nil)
	assert.False(t, ok)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "Numbers", KindNumeric.String())
	assert.Equal(t, "Percentages", KindPercentage.String())
	assert.Equal(t, "Other", KindOther.String())
}

func TestNewEntry(t *testing.T) {
	rec := stats.Record{"region": "Fès-Meknès", "Confirmed": 10.0, "Notes": "x"}
	e := NewEntry(rec)

	assert.Equal(t, "Fès-Meknès", e.Region)
	assert.Equal(t, "fesmeknes", e.Code)
	assert.Equal(t, rec, e.Data)
	assert.Equal(t, []Bucket{Numbers, Other}, e.Buckets())
}

func TestEntry_BucketsIncludesCustom(t *testing.T) {
	e := &Entry{Categories: Categories{
		"Vaccination": {"dose1": 10},
		Percentages:   {"rate": 2},
		"Empty":       {},
	}}
	assert.Equal(t, []Bucket{Percentages, "Vaccination"}, e.Buckets())

	var nilEntry *Entry
	assert.Nil(t, nilEntry.Buckets())
}
