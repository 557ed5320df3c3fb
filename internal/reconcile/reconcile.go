// Package reconcile matches geographic features to statistical records by
// region identity, trying exact keys before a fuzzy name fallback.
package reconcile

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/region-atlas/internal/normalize"
	"github.com/sells-group/region-atlas/internal/stats"
)

// DefaultMinFuzzyLength is the shortest normalized name eligible for fuzzy
// matching, on both the query and the candidate side.
const DefaultMinFuzzyLength = 4

// Method records which lookup produced a match.
type Method string

// Match methods, in cascade order.
const (
	MethodCode             Method = "code"
	MethodID               Method = "id"
	MethodRegion           Method = "region"
	MethodNormalizedRegion Method = "normalized_region"
	MethodFuzzy            Method = "fuzzy"
	MethodNone             Method = "none"
)

// Property keys probed for a feature's name and code, in priority order.
var (
	NameKeys = []string{"name", "name:en", "NAME_1", "NAME", "nom", "NOM", "REGION", "region"}
	CodeKeys = []string{"code", "id", "ID", "iso"}
)

// Result is the outcome of resolving one feature.
type Result struct {
	Record stats.Record `json:"-"`
	Method Method       `json:"method"`
	// Key is the index key that matched (the record's region name for fuzzy hits).
	Key  string `json:"key,omitempty"`
	Name string `json:"name,omitempty"`
	Code string `json:"code,omitempty"`
}

// Matched reports whether a record was found.
func (res Result) Matched() bool {
	return res.Record != nil
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMinFuzzyLength overrides DefaultMinFuzzyLength. Values below 1 are ignored.
func WithMinFuzzyLength(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.minFuzzy = n
		}
	}
}

// WithLogger sets the logger used for match diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// Resolver resolves feature properties against an IndexSet. It holds no
// mutable state and is safe for concurrent use.
type Resolver struct {
	indexes  *stats.IndexSet
	minFuzzy int
	log      *zap.Logger
}

// New creates a Resolver over the given indexes.
func New(indexes *stats.IndexSet, opts ...Option) *Resolver {
	r := &Resolver{
		indexes:  indexes,
		minFuzzy: DefaultMinFuzzyLength,
		log:      zap.L().With(zap.String("component", "reconcile")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds the record for a feature's properties. Lookups run in
// order, first hit wins: code in Code, code in id, name in region,
// normalized name in normalized region, then fuzzy name containment.
// An unresolved feature yields a Result with Method none and a nil Record.
func (r *Resolver) Resolve(props map[string]any) Result {
	name := ProbeName(props)
	code := ProbeCode(props)
	res := Result{Name: name, Code: code, Method: MethodNone}

	if rec, ok := r.indexes.ByCode(code); ok {
		return res.with(rec, MethodCode, code)
	}
	if rec, ok := r.indexes.ByID(code); ok {
		return res.with(rec, MethodID, code)
	}
	if rec, ok := r.indexes.ByRegion(name); ok {
		return res.with(rec, MethodRegion, name)
	}

	n := normalize.Key(name)
	if n != "" {
		if rec, ok := r.indexes.ByNormalizedRegion(n); ok {
			return res.with(rec, MethodNormalizedRegion, n)
		}
	}

	if len(n) >= r.minFuzzy {
		if key, ok := r.fuzzy(n); ok {
			rec, _ := r.indexes.ByRegion(key)
			r.log.Debug("fuzzy match", zap.String("name", name), zap.String("region", key))
			return res.with(rec, MethodFuzzy, key)
		}
	}

	r.log.Warn("no statistics match for feature",
		zap.String("name", name),
		zap.String("normalized", n),
		zap.Any("properties", props),
	)
	return res
}

// fuzzy returns the first region name, in sorted normalized order, whose
// normalized form contains the query or is contained by it.
func (r *Resolver) fuzzy(n string) (string, bool) {
	for raw, candidate := range r.indexes.Regions() {
		if len(candidate) < r.minFuzzy {
			continue
		}
		if strings.Contains(candidate, n) || strings.Contains(n, candidate) {
			return raw, true
		}
	}
	return "", false
}

func (res Result) with(rec stats.Record, m Method, key string) Result {
	res.Record = rec
	res.Method = m
	res.Key = key
	return res
}

// ProbeName returns the first non-empty name-like property.
func ProbeName(props map[string]any) string {
	return probe(props, NameKeys)
}

// ProbeCode returns the first non-empty code-like property, stringified.
func ProbeCode(props map[string]any) string {
	return probe(props, CodeKeys)
}

func probe(props map[string]any, keys []string) string {
	rec := stats.Record(props)
	for _, k := range keys {
		if s, ok := rec.Identity(k); ok {
			return s
		}
	}
	return ""
}
