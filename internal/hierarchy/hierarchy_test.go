package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/region-atlas/internal/categorize"
	"github.com/sells-group/region-atlas/internal/stats"
)

func TestFromRecords_FourKeyLookup(t *testing.T) {
	secondary := []stats.Record{
		{"region": "Casablanca-Settat", "Code": "CS", "Hospitals": 40.0, "Occupancy": "71%"},
		{"region": "Fès-Meknès", "id": "FM", "Hospitals": 12.0},
		{"region": "Oriental", "Hospitals": 9.0},
	}
	ix := FromRecords(secondary)
	assert.Equal(t, 3, ix.Len())

	tests := []struct {
		name   string
		rec    stats.Record
		region string
	}{
		{name: "by Code", rec: stats.Record{"Code": "CS"}, region: "Casablanca-Settat"},
		{name: "by id", rec: stats.Record{"id": "FM", "region": "x"}, region: "Fès-Meknès"},
		{name: "by region", rec: stats.Record{"region": "Oriental"}, region: "Oriental"},
		{name: "by normalized region", rec: stats.Record{"region": "fes meknes"}, region: "Fès-Meknès"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := ix.Lookup(tt.rec)
			require.True(t, ok)
			assert.Equal(t, tt.region, e.Region)
		})
	}

	e, ok := ix.Lookup(stats.Record{"Code": "CS"})
	require.True(t, ok)
	assert.Equal(t, categorize.Categories{
		categorize.Numbers:     {"Hospitals": 40},
		categorize.Percentages: {"Occupancy": 71},
	}, e.Categories)
}

func TestLookup_KeyOrder(t *testing.T) {
	ix := FromRecords([]stats.Record{
		{"region": "Oriental", "Hospitals": 1.0},
		{"Code": "OR", "region": "Other name", "Hospitals": 2.0},
	})

	// Code is tried before region.
	e, ok := ix.Lookup(stats.Record{"Code": "OR", "region": "Oriental"})
	require.True(t, ok)
	assert.Equal(t, 2.0, e.Categories[categorize.Numbers]["Hospitals"])
}

func TestResolve_FallsBackToPrimary(t *testing.T) {
	primary := stats.Record{"region": "Souss-Massa", "Code": "SM", "Confirmed": 50.0, "Notes": "coastal"}

	for name, ix := range map[string]*Index{
		"nil index":   nil,
		"empty index": FromRecords(nil),
		"no match":    FromRecords([]stats.Record{{"region": "Oriental", "x": 1.0}}),
	} {
		t.Run(name, func(t *testing.T) {
			e := ix.Resolve(primary)
			require.NotNil(t, e)
			assert.Equal(t, "Souss-Massa", e.Region)
			assert.Equal(t, "SM", e.Code)
			assert.Equal(t, categorize.Categories{
				categorize.Numbers: {"Confirmed": 50},
				categorize.Other:   {"Notes": 0},
			}, e.Categories)
		})
	}

	assert.Nil(t, FromRecords(nil).Resolve(nil))
}

func TestResolve_RegionFromPrimary(t *testing.T) {
	ix := FromRecords([]stats.Record{{"Code": "SM", "Hospitals": 7.0}})
	primary := stats.Record{"region": "Souss-Massa", "Code": "SM"}

	e := ix.Resolve(primary)
	require.NotNil(t, e)
	assert.Equal(t, "Souss-Massa", e.Region)
	assert.Equal(t, "SM", e.Code)
	assert.Equal(t, categorize.Categories{categorize.Numbers: {"Hospitals": 7}}, e.Categories)

	stored, ok := ix.Lookup(primary)
	require.True(t, ok)
	assert.Empty(t, stored.Region, "indexed entry must stay unmodified")

	// A named entry is returned as indexed.
	named := FromRecords([]stats.Record{{"region": "Souss Massa", "Code": "SM"}})
	assert.Equal(t, "Souss Massa", named.Resolve(primary).Region)
}

func TestDecode_Array(t *testing.T) {
	ix, err := Decode([]byte(`[
		{"region": "Casablanca-Settat", "Code": "CS", "Beds": "1,200", "Notes": "urban"},
		{"region": "Oriental", "id": 8, "Beds": 300}
	]`))
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())

	e, ok := ix.Lookup(stats.Record{"id": 8.0})
	require.True(t, ok)
	assert.Equal(t, "Oriental", e.Region)
	assert.Equal(t, "8", e.Code)

	e, ok = ix.Lookup(stats.Record{"region": "Casablanca-Settat"})
	require.True(t, ok)
	assert.Equal(t, categorize.Categories{
		categorize.Numbers: {"Beds": 1200},
		categorize.Other:   {"Notes": 0},
	}, e.Categories)
}

func TestDecode_PreShapedMapping(t *testing.T) {
	ix, err := Decode([]byte(`{
		"CS": {
			"region": "Casablanca-Settat",
			"Code": "CS",
			"categories": {"Vaccination": {"dose1": 10, "dose2": 7}, "Other": {"Notes": 3}},
			"data": {"region": "Casablanca-Settat"}
		}
	}`))
	require.NoError(t, err)

	e, ok := ix.Lookup(stats.Record{"Code": "CS"})
	require.True(t, ok)
	// Trusted as-is: custom bucket kept, Other value not re-zeroed.
	assert.Equal(t, categorize.Categories{
		"Vaccination":    {"dose1": 10, "dose2": 7},
		categorize.Other: {"Notes": 3},
	}, e.Categories)
	assert.Equal(t, "Casablanca-Settat", e.Data.Region())
}

func TestDecode_RawMapping(t *testing.T) {
	ix, err := Decode([]byte(`{
		"oriental": {"region": "Oriental", "Beds": 300, "Rate": "2,5%"},
		"FM": {"id": "FM-1", "Beds": 10},
		"DS": {"region": "Dakhla", "categories": null, "Beds": 4}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())

	e, ok := ix.Lookup(stats.Record{"region": "Oriental"})
	require.True(t, ok)
	assert.Equal(t, "oriental", e.Code)
	assert.Equal(t, categorize.Categories{
		categorize.Numbers:     {"Beds": 300},
		categorize.Percentages: {"Rate": 2.5},
	}, e.Categories)

	e, ok = ix.Lookup(stats.Record{"Code": "FM"})
	require.True(t, ok)
	assert.Equal(t, "FM-1", e.Code)

	e, ok = ix.Lookup(stats.Record{"Code": "DS"})
	require.True(t, ok)
	assert.Equal(t, categorize.Categories{categorize.Numbers: {"Beds": 4}}, e.Categories)
}

func TestDecode_SkipsMalformedValues(t *testing.T) {
	ix, err := Decode([]byte(`{
		"bad": 42,
		"broken": {"categories": {"Numbers": {"x": "not a number"}}},
		"good": {"region": "Oriental", "Beds": 1}
	}`))
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())

	_, ok := ix.Lookup(stats.Record{"Code": "bad"})
	assert.False(t, ok)
	_, ok = ix.Lookup(stats.Record{"Code": "good"})
	assert.True(t, ok)
}

func TestDecode_Errors(t *testing.T) {
	for name, doc := range map[string]string{
		"empty":     "  ",
		"scalar":    "42",
		"bad array": "[1, 2",
		"bad obj":   `{"a":`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "hierarchy")
		})
	}
}

func TestRegionKey(t *testing.T) {
	rec := stats.Record{"region": "Fès-Meknès", "id": "FM"}
	assert.Equal(t, "X", RegionKey(&categorize.Entry{Code: "X"}, rec))
	assert.Equal(t, "FM", RegionKey(&categorize.Entry{}, rec))
	assert.Equal(t, "fesmeknes", RegionKey(nil, stats.Record{"region": "Fès-Meknès"}))
	assert.Equal(t, "", RegionKey(nil, nil))
}
