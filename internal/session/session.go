// Package session joins one load of region features, statistics and the
// optional hierarchy dataset, and answers per-feature fill and inspection
// queries against it.
package session

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/region-atlas/internal/categorize"
	"github.com/sells-group/region-atlas/internal/dataset"
	"github.com/sells-group/region-atlas/internal/features"
	"github.com/sells-group/region-atlas/internal/fetcher"
	"github.com/sells-group/region-atlas/internal/hierarchy"
	"github.com/sells-group/region-atlas/internal/reconcile"
	"github.com/sells-group/region-atlas/internal/stats"
	"github.com/sells-group/region-atlas/internal/treemap"
)

// ErrNotFound is returned when a feature does not resolve to a record.
var ErrNotFound = eris.New("session: region not found")

// DefaultFillField is the record field the fill scale is computed over.
const DefaultFillField = "Confirmed"

// SummaryFields are the record fields reported with an inspection.
var SummaryFields = []string{"Confirmed", "Deaths", "Recovered", "population", "contribution_gdp"}

// Options configures Load and New.
type Options struct {
	Features        string
	FeaturesObject  string
	Statistics      string
	StatisticsPath  string
	StatisticsSheet string
	// Hierarchy is optional. Without it, entries are built from the statistics.
	Hierarchy string
	TempDir   string

	FillField      string
	MinFuzzyLength int
	CacheEntries   int
	CacheTTL       time.Duration
}

// Session is the immutable result of one load. All methods are safe for
// concurrent use.
type Session struct {
	id        string
	features  []features.Feature
	indexes   *stats.IndexSet
	hierarchy *hierarchy.Index
	resolver  *reconcile.Resolver
	fillField string
	domain    [2]float64
	trees     *TreeCache
	log       *zap.Logger
}

// Load fetches all sources concurrently and builds a Session once every
// fetch has finished. Any failed source aborts the load.
func Load(ctx context.Context, f fetcher.Fetcher, opts Options) (*Session, error) {
	log := zap.L().With(zap.String("component", "session"))
	start := time.Now()

	if opts.Features == "" || opts.Statistics == "" {
		return nil, eris.New("session: features and statistics sources are required")
	}

	var (
		feats   []features.Feature
		records []stats.Record
		hier    *hierarchy.Index
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		feats, err = features.Load(gctx, f, opts.Features, features.Options{
			Object:  opts.FeaturesObject,
			TempDir: opts.TempDir,
		})
		if err != nil {
			return eris.Wrap(err, "session: load features")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		records, err = dataset.LoadRecords(gctx, f, opts.Statistics, dataset.Options{
			Path:    opts.StatisticsPath,
			Sheet:   opts.StatisticsSheet,
			TempDir: opts.TempDir,
		})
		if err != nil {
			return eris.Wrap(err, "session: load statistics")
		}
		return nil
	})
	if opts.Hierarchy != "" {
		g.Go(func() error {
			var err error
			hier, err = dataset.LoadHierarchy(gctx, f, opts.Hierarchy)
			if err != nil {
				return eris.Wrap(err, "session: load hierarchy")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("session load failed", zap.Error(err))
		return nil, err
	}

	s := New(feats, records, hier, opts)
	s.log.Info("session loaded",
		zap.Int("features", len(s.features)),
		zap.Int("records", s.indexes.Len()),
		zap.Int("hierarchy_entries", s.hierarchy.Len()),
		zap.Float64("domain_max", s.domain[1]),
		zap.Duration("elapsed", time.Since(start)),
	)
	return s, nil
}

// New builds a Session from already-decoded inputs. A nil hierarchy index
// is replaced by one built from records.
func New(feats []features.Feature, records []stats.Record, hier *hierarchy.Index, opts Options) *Session {
	if opts.FillField == "" {
		opts.FillField = DefaultFillField
	}
	if hier == nil {
		hier = hierarchy.FromRecords(records)
	}

	id := uuid.NewString()
	log := zap.L().With(zap.String("component", "session"), zap.String("session_id", id))
	indexes := stats.BuildIndexes(records)

	return &Session{
		id:        id,
		features:  feats,
		indexes:   indexes,
		hierarchy: hier,
		resolver: reconcile.New(indexes,
			reconcile.WithMinFuzzyLength(opts.MinFuzzyLength),
			reconcile.WithLogger(zap.L().With(zap.String("component", "reconcile"), zap.String("session_id", id))),
		),
		fillField: opts.FillField,
		domain:    [2]float64{0, domainMax(records, opts.FillField)},
		trees:     NewTreeCache(opts.CacheEntries, opts.CacheTTL),
		log:       log,
	}
}

// domainMax is the largest finite numeric value of field across records, or
// 1 when there is none or it is not positive.
func domainMax(records []stats.Record, field string) float64 {
	maxVal := 0.0
	for _, rec := range records {
		if v, ok := categorize.Numeric(rec[field]); ok && !math.IsInf(v, 0) && v > maxVal {
			maxVal = v
		}
	}
	if maxVal <= 0 {
		return 1
	}
	return maxVal
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Features returns the loaded features. The slice must not be modified.
func (s *Session) Features() []features.Feature { return s.features }

// Domain returns the fill scale domain [0, max].
func (s *Session) Domain() [2]float64 { return s.domain }

// FillField returns the record field the domain is computed over.
func (s *Session) FillField() string { return s.fillField }

// CacheStats reports tree cache usage.
func (s *Session) CacheStats() CacheStats { return s.trees.Stats() }

// Resolve matches feature properties to a statistics record.
func (s *Session) Resolve(props map[string]any) reconcile.Result {
	return s.resolver.Resolve(props)
}

// Fill is the color-scale input for one feature. T is Value over the domain
// maximum, clamped to [0,1]. Unmatched features get the zero Fill.
type Fill struct {
	Matched bool    `json:"matched" yaml:"matched"`
	Value   float64 `json:"value" yaml:"value"`
	T       float64 `json:"t" yaml:"t"`
}

// Fill computes the fill for feature properties.
func (s *Session) Fill(props map[string]any) Fill {
	return s.FillFor(s.resolver.Resolve(props))
}

// FillFor computes the fill for an already resolved feature.
func (s *Session) FillFor(res reconcile.Result) Fill {
	if !res.Matched() {
		return Fill{}
	}
	v, ok := categorize.Numeric(res.Record[s.fillField])
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return Fill{Matched: true}
	}
	return Fill{Matched: true, Value: v, T: min(max(v/s.domain[1], 0), 1)}
}

// Inspection is everything shown for a resolved region.
type Inspection struct {
	Region  string            `json:"region"`
	Key     string            `json:"key"`
	Method  reconcile.Method  `json:"method"`
	Summary map[string]any    `json:"summary"`
	Fill    Fill              `json:"fill"`
	Entry   *categorize.Entry `json:"entry"`
	// Tree is shared with the cache and must not be modified.
	Tree *treemap.Node `json:"tree"`
}

// Inspect resolves feature properties and returns the region's breakdown.
// Returns ErrNotFound when nothing matches.
func (s *Session) Inspect(props map[string]any) (*Inspection, error) {
	res := s.resolver.Resolve(props)
	if !res.Matched() {
		return nil, ErrNotFound
	}

	rec := res.Record
	entry := s.hierarchy.Resolve(rec)
	key := hierarchy.RegionKey(entry, rec)

	region := entry.Region
	if region == "" {
		region = rec.Region()
	}

	tree := s.trees.GetOrBuild(key, func() *treemap.Node {
		t := treemap.Build(entry)
		if t != nil && t.Name == "" {
			t.Name = region
		}
		return t
	})

	summary := make(map[string]any, len(SummaryFields))
	for _, f := range SummaryFields {
		if v, ok := rec[f]; ok && v != nil {
			summary[f] = v
		}
	}

	return &Inspection{
		Region:  region,
		Key:     key,
		Method:  res.Method,
		Summary: summary,
		Fill:    s.FillFor(res),
		Entry:   entry,
		Tree:    tree,
	}, nil
}

// InspectFeature inspects the i-th loaded feature.
func (s *Session) InspectFeature(i int) (*Inspection, error) {
	if i < 0 || i >= len(s.features) {
		return nil, eris.Wrapf(ErrNotFound, "session: feature index %d out of range", i)
	}
	return s.Inspect(s.features[i].Properties)
}

// ReportRow is the reconciliation outcome for one feature.
type ReportRow struct {
	Index     int              `json:"index" yaml:"index"`
	FeatureID string           `json:"feature_id,omitempty" yaml:"feature_id,omitempty"`
	Name      string           `json:"name,omitempty" yaml:"name,omitempty"`
	Code      string           `json:"code,omitempty" yaml:"code,omitempty"`
	Method    reconcile.Method `json:"method" yaml:"method"`
	Key       string           `json:"key,omitempty" yaml:"key,omitempty"`
	Region    string           `json:"region,omitempty" yaml:"region,omitempty"`
	Fill      Fill             `json:"fill" yaml:"fill"`
}

// Report resolves every loaded feature in order.
func (s *Session) Report() []ReportRow {
	rows := make([]ReportRow, 0, len(s.features))
	for i, f := range s.features {
		res := s.resolver.Resolve(f.Properties)
		row := ReportRow{
			Index:     i,
			FeatureID: f.ID,
			Name:      res.Name,
			Code:      res.Code,
			Method:    res.Method,
			Key:       res.Key,
			Fill:      s.FillFor(res),
		}
		if res.Matched() {
			row.Region = res.Record.Region()
		}
		rows = append(rows, row)
	}
	return rows
}
