package stats

import (
	"cmp"
	"iter"
	"slices"

	"github.com/sells-group/region-atlas/internal/normalize"
)

// IndexSet holds the four lookup tables built from a statistical dataset.
// It has no mutators; once built it is safe for concurrent reads.
type IndexSet struct {
	byCode             map[string]Record
	byID               map[string]Record
	byRegion           map[string]Record
	byNormalizedRegion map[string]Record

	// regions lists byRegion keys ordered by normalized form, then raw name.
	regions []regionName
	records []Record
}

type regionName struct {
	raw        string
	normalized string
}

// BuildIndexes indexes every record by Code, id, raw region name and
// normalized region name. Later records overwrite earlier ones on duplicate
// keys. Records with no identity are only reachable through the empty
// normalized key.
func BuildIndexes(records []Record) *IndexSet {
	s := &IndexSet{
		byCode:             make(map[string]Record, len(records)),
		byID:               make(map[string]Record, len(records)),
		byRegion:           make(map[string]Record, len(records)),
		byNormalizedRegion: make(map[string]Record, len(records)),
		records:            slices.Clone(records),
	}

	for _, r := range records {
		if r == nil {
			continue
		}
		if code, ok := r.Identity(FieldCode); ok {
			s.byCode[code] = r
		}
		if id, ok := r.Identity(FieldID); ok {
			s.byID[id] = r
		}
		if region, ok := r.Identity(FieldRegion); ok {
			s.byRegion[region] = r
		}
		s.byNormalizedRegion[r.NormalizedRegion()] = r
	}

	s.regions = make([]regionName, 0, len(s.byRegion))
	for raw := range s.byRegion {
		s.regions = append(s.regions, regionName{raw: raw, normalized: normalize.Key(raw)})
	}
	slices.SortFunc(s.regions, func(a, b regionName) int {
		if c := cmp.Compare(a.normalized, b.normalized); c != 0 {
			return c
		}
		return cmp.Compare(a.raw, b.raw)
	})

	return s
}

// ByCode looks a record up by its Code field.
func (s *IndexSet) ByCode(code string) (Record, bool) {
	if s == nil {
		return nil, false
	}
	return lookup(s.byCode, code)
}

// ByID looks a record up by its id field.
func (s *IndexSet) ByID(id string) (Record, bool) {
	if s == nil {
		return nil, false
	}
	return lookup(s.byID, id)
}

// ByRegion looks a record up by its raw region name.
func (s *IndexSet) ByRegion(name string) (Record, bool) {
	if s == nil {
		return nil, false
	}
	return lookup(s.byRegion, name)
}

// ByNormalizedRegion looks a record up by the normalized region key.
func (s *IndexSet) ByNormalizedRegion(key string) (Record, bool) {
	if s == nil {
		return nil, false
	}
	r, ok := s.byNormalizedRegion[key]
	return r, ok
}

// Regions yields (raw name, normalized name) pairs in a stable order sorted
// by normalized name.
func (s *IndexSet) Regions() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		if s == nil {
			return
		}
		for _, r := range s.regions {
			if !yield(r.raw, r.normalized) {
				return
			}
		}
	}
}

// Records returns the records the index was built from, in input order.
func (s *IndexSet) Records() []Record {
	if s == nil {
		return nil
	}
	return slices.Clone(s.records)
}

// Len returns the number of input records.
func (s *IndexSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

func lookup(m map[string]Record, key string) (Record, bool) {
	if key == "" {
		return nil, false
	}
	r, ok := m[key]
	return r, ok
}
