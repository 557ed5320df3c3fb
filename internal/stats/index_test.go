package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	return []Record{
		{"region": "Casablanca-Settat", "Code": "CS", "Confirmed": 1200.0},
		{"region": "Fès-Meknès", "id": "FM", "Confirmed": 300.0},
		{"region": "Oriental", "Code": "OR", "id": 8.0, "Confirmed": 90.0},
		{"Confirmed": 5.0},
	}
}

func TestBuildIndexes_LookupByEveryKey(t *testing.T) {
	records := sampleRecords()
	idx := BuildIndexes(records)

	for _, rec := range records {
		if code, ok := rec.Identity(FieldCode); ok {
			got, found := idx.ByCode(code)
			require.True(t, found, "code %s", code)
			assert.Equal(t, rec, got)
		}
		if id, ok := rec.Identity(FieldID); ok {
			got, found := idx.ByID(id)
			require.True(t, found, "id %s", id)
			assert.Equal(t, rec, got)
		}
		if region, ok := rec.Identity(FieldRegion); ok {
			got, found := idx.ByRegion(region)
			require.True(t, found, "region %s", region)
			assert.Equal(t, rec, got)

			got, found = idx.ByNormalizedRegion(rec.NormalizedRegion())
			require.True(t, found)
			assert.Equal(t, rec, got)
		}
	}
}

func TestBuildIndexes_NumericIDStringified(t *testing.T) {
	idx := BuildIndexes(sampleRecords())

	got, ok := idx.ByID("8")
	require.True(t, ok)
	assert.Equal(t, "Oriental", got.Region())
}

func TestBuildIndexes_LastWriteWins(t *testing.T) {
	first := Record{"region": "Oriental", "Code": "OR", "Confirmed": 1.0}
	second := Record{"region": "Oriental", "Code": "OR", "Confirmed": 2.0}
	idx := BuildIndexes([]Record{first, second})

	got, ok := idx.ByCode("OR")
	require.True(t, ok)
	assert.Equal(t, 2.0, got["Confirmed"])

	got, ok = idx.ByRegion("Oriental")
	require.True(t, ok)
	assert.Equal(t, 2.0, got["Confirmed"])
	assert.Equal(t, 2, idx.Len())
}

func TestBuildIndexes_NoIdentity(t *testing.T) {
	anon := Record{"Confirmed": 5.0}
	idx := BuildIndexes([]Record{anon})

	_, ok := idx.ByCode("")
	assert.False(t, ok)
	_, ok = idx.ByRegion("")
	assert.False(t, ok)

	got, ok := idx.ByNormalizedRegion("")
	require.True(t, ok)
	assert.Equal(t, anon, got)
}

func TestBuildIndexes_EmptyValuesAreNotKeys(t *testing.T) {
	idx := BuildIndexes([]Record{{"region": "", "Code": "", "id": 0.0}})

	_, ok := idx.ByID("0")
	assert.False(t, ok)
	_, ok = idx.ByCode("")
	assert.False(t, ok)
	assert.Empty(t, collectRegions(idx))
}

func TestRegions_SortedByNormalizedName(t *testing.T) {
	idx := BuildIndexes([]Record{
		{"region": "Souss-Massa"},
		{"region": "béni mellal"},
		{"region": "Casablanca-Settat"},
		{"region": "Beni-Mellal"},
	})

	assert.Equal(t, []string{"Beni-Mellal", "béni mellal", "Casablanca-Settat", "Souss-Massa"}, collectRegions(idx))
}

func TestRegions_EarlyStop(t *testing.T) {
	idx := BuildIndexes(sampleRecords())

	var seen int
	for range idx.Regions() {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestIndexSet_Nil(t *testing.T) {
	var idx *IndexSet

	_, ok := idx.ByCode("CS")
	assert.False(t, ok)
	_, ok = idx.ByNormalizedRegion("")
	assert.False(t, ok)
	assert.Zero(t, idx.Len())
	assert.Nil(t, idx.Records())
	assert.Empty(t, collectRegions(idx))
}

func TestRecord_DerivedCode(t *testing.T) {
	assert.Equal(t, "CS", Record{"Code": "CS", "id": "x", "region": "Casablanca"}.DerivedCode())
	assert.Equal(t, "x", Record{"id": "x", "region": "Casablanca"}.DerivedCode())
	assert.Equal(t, "fesmeknes", Record{"region": "Fès-Meknès"}.DerivedCode())
	assert.Equal(t, "", Record{}.DerivedCode())
}

func TestRecord_LookupKeys(t *testing.T) {
	rec := Record{"Code": "CS", "id": 6.0, "region": "Casablanca-Settat"}
	assert.Equal(t, []string{"CS", "6", "Casablanca-Settat", "casablancasettat"}, rec.LookupKeys())
	assert.Empty(t, Record{"Confirmed": 1.0}.LookupKeys())
}

func TestIsIdentityField(t *testing.T) {
	for _, f := range []string{"region", "Code", "id", "latitude", "longitude"} {
		assert.True(t, IsIdentityField(f), f)
	}
	assert.False(t, IsIdentityField("Confirmed"))
	assert.False(t, IsIdentityField("code"))
}

func collectRegions(idx *IndexSet) []string {
	var out []string
	for raw := range idx.Regions() {
		out = append(out, raw)
	}
	return out
}
