package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/region-atlas/internal/stats"
)

var casablanca = stats.Record{
	"region":          "Casablanca-Settat",
	"Code":            "CS",
	"Confirmed":       1200.0,
	"Positivity Rate": "8.50%",
	"Notes":           "urban",
}

func testIndexes() *stats.IndexSet {
	return stats.BuildIndexes([]stats.Record{
		casablanca,
		{"region": "Fès-Meknès", "id": "FM", "Confirmed": 300.0},
		{"region": "Oriental", "Code": "OR", "Confirmed": 90.0},
		{"region": "Rabat-Salé-Kénitra", "Code": "RSK", "id": "04", "Confirmed": 700.0},
		{"region": "Sud", "Confirmed": 1.0},
	})
}

func newTestResolver(t *testing.T, opts ...Option) (*Resolver, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	opts = append([]Option{WithLogger(zap.New(core))}, opts...)
	return New(testIndexes(), opts...), logs
}

func TestResolve_ExactCascade(t *testing.T) {
	r, _ := newTestResolver(t)

	tests := []struct {
		name   string
		props  map[string]any
		region string
		method Method
		key    string
	}{
		{
			name:   "code in Code",
			props:  map[string]any{"code": "OR", "name": "Fès-Meknès"},
			region: "Oriental",
			method: MethodCode,
			key:    "OR",
		},
		{
			name:   "code in id",
			props:  map[string]any{"id": "FM"},
			region: "Fès-Meknès",
			method: MethodID,
			key:    "FM",
		},
		{
			name:   "numeric iso in id",
			props:  map[string]any{"iso": "04"},
			region: "Rabat-Salé-Kénitra",
			method: MethodID,
			key:    "04",
		},
		{
			name:   "exact region name via NAME_1",
			props:  map[string]any{"NAME_1": "Casablanca-Settat"},
			region: "Casablanca-Settat",
			method: MethodRegion,
			key:    "Casablanca-Settat",
		},
		{
			name:   "normalized name",
			props:  map[string]any{"name": "Casablanca Settat"},
			region: "Casablanca-Settat",
			method: MethodNormalizedRegion,
			key:    "casablancasettat",
		},
		{
			name:   "accents stripped",
			props:  map[string]any{"name:en": "Fes Meknes"},
			region: "Fès-Meknès",
			method: MethodNormalizedRegion,
			key:    "fesmeknes",
		},
		{
			name:   "unknown code falls through to name",
			props:  map[string]any{"code": "ZZ", "NAME": "Oriental"},
			region: "Oriental",
			method: MethodRegion,
			key:    "Oriental",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Resolve(tt.props)
			require.True(t, res.Matched())
			assert.Equal(t, tt.region, res.Record.Region())
			assert.Equal(t, tt.method, res.Method)
			assert.Equal(t, tt.key, res.Key)
		})
	}
}

func TestResolve_CodeBeatsName(t *testing.T) {
	r, _ := newTestResolver(t)

	res := r.Resolve(map[string]any{"code": "CS", "name": "Oriental", "region": "Oriental"})
	require.True(t, res.Matched())
	assert.Equal(t, "Casablanca-Settat", res.Record.Region())
	assert.Equal(t, MethodCode, res.Method)
}

func TestResolve_DecodedNumericID(t *testing.T) {
	r := New(stats.BuildIndexes([]stats.Record{
		{"region": "Guelmim-Oued Noun", "id": 6.0, "Confirmed": 12.0},
	}), WithLogger(zap.NewNop()))

	for _, id := range []json.Number{"6", "6.0", "6e0"} {
		res := r.Resolve(map[string]any{"id": id})
		require.True(t, res.Matched(), "id %s", id)
		assert.Equal(t, MethodID, res.Method)
		assert.Equal(t, "6", res.Code)
		assert.Equal(t, "Guelmim-Oued Noun", res.Record.Region())
	}
}

func TestResolve_ScenarioByRegion(t *testing.T) {
	r, _ := newTestResolver(t)

	res := r.Resolve(map[string]any{"NAME_1": "Casablanca-Settat"})
	require.True(t, res.Matched())
	assert.Equal(t, casablanca, res.Record)
	assert.Equal(t, MethodRegion, res.Method)
}

func TestResolve_Fuzzy(t *testing.T) {
	r, logs := newTestResolver(t)

	res := r.Resolve(map[string]any{"name": "Grand Casablanca Settat"})
	require.True(t, res.Matched())
	assert.Equal(t, casablanca, res.Record)
	assert.Equal(t, MethodFuzzy, res.Method)
	assert.Equal(t, "Casablanca-Settat", res.Key)
	assert.Equal(t, 1, logs.FilterMessage("fuzzy match").Len())

	// Query contained in candidate.
	res = r.Resolve(map[string]any{"name": "Kénitra"})
	require.True(t, res.Matched())
	assert.Equal(t, "Rabat-Salé-Kénitra", res.Record.Region())
	assert.Equal(t, MethodFuzzy, res.Method)
}

func TestResolve_FuzzyNotUsedWhenExactExists(t *testing.T) {
	r, logs := newTestResolver(t)

	res := r.Resolve(map[string]any{"name": "Oriental"})
	assert.Equal(t, MethodRegion, res.Method)
	assert.Zero(t, logs.FilterMessage("fuzzy match").Len())
}

func TestResolve_FuzzyMinimumLength(t *testing.T) {
	r, logs := newTestResolver(t)

	// "cas" is a substring of "casablancasettat" but too short to qualify.
	res := r.Resolve(map[string]any{"name": "Cas"})
	assert.False(t, res.Matched())
	assert.Equal(t, MethodNone, res.Method)

	// "Sud" is too short as a candidate even though the query contains it.
	res = r.Resolve(map[string]any{"name": "Sud-Est Atlantique"})
	assert.False(t, res.Matched())

	assert.Equal(t, 2, logs.FilterMessage("no statistics match for feature").Len())
}

func TestResolve_CustomMinFuzzyLength(t *testing.T) {
	r, _ := newTestResolver(t, WithMinFuzzyLength(3))

	res := r.Resolve(map[string]any{"name": "Sud-Est Atlantique"})
	require.True(t, res.Matched())
	assert.Equal(t, "Sud", res.Record.Region())
	assert.Equal(t, MethodFuzzy, res.Method)
}

func TestResolve_FuzzyDeterministicOrder(t *testing.T) {
	idx := stats.BuildIndexes([]stats.Record{
		{"region": "Souss-Massa-Draa", "Code": "B"},
		{"region": "Massa", "Code": "A"},
	})
	r := New(idx, WithLogger(zap.NewNop()))

	// Both candidates qualify; "massa" sorts before "soussmassadraa".
	for range 20 {
		res := r.Resolve(map[string]any{"name": "Souss Massa"})
		require.True(t, res.Matched())
		assert.Equal(t, "A", res.Record["Code"])
	}
}

func TestResolve_Unresolved(t *testing.T) {
	r, logs := newTestResolver(t)

	props := map[string]any{"name": "Atlantis", "foo": "bar"}
	res := r.Resolve(props)

	assert.False(t, res.Matched())
	assert.Nil(t, res.Record)
	assert.Equal(t, "Atlantis", res.Name)

	entries := logs.FilterMessage("no statistics match for feature").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Atlantis", fields["name"])
	assert.Equal(t, "atlantis", fields["normalized"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestResolve_EmptyProperties(t *testing.T) {
	r, _ := newTestResolver(t)

	assert.False(t, r.Resolve(nil).Matched())
	assert.False(t, r.Resolve(map[string]any{}).Matched())
}

func TestResolve_EmptyIndexes(t *testing.T) {
	r := New(stats.BuildIndexes(nil), WithLogger(zap.NewNop()))
	assert.False(t, r.Resolve(map[string]any{"name": "Oriental"}).Matched())

	r = New(nil, WithLogger(zap.NewNop()))
	assert.False(t, r.Resolve(map[string]any{"name": "Oriental", "code": "OR"}).Matched())
}

func TestProbe(t *testing.T) {
	props := map[string]any{"NAME": "B", "nom": "C", "REGION": "D", "id": 12.0, "iso": "MA"}
	assert.Equal(t, "B", ProbeName(props))
	assert.Equal(t, "12", ProbeCode(props))

	assert.Equal(t, "A", ProbeName(map[string]any{"name": "", "NAME_1": "A"}))
	assert.Equal(t, "", ProbeCode(map[string]any{"code": nil}))
}
