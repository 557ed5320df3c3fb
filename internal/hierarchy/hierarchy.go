// Package hierarchy finds the categorized breakdown for a resolved region in
// a secondary dataset, whichever shape that dataset arrives in.
package hierarchy

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/region-atlas/internal/categorize"
	"github.com/sells-group/region-atlas/internal/stats"
)

// Index holds categorized entries keyed by Code, id, region name and
// normalized region name. Both accepted input shapes (a pre-keyed mapping of
// entries, or a flat list of raw records) are converted into this one form
// at ingestion. An Index is read-only once built.
type Index struct {
	entries map[string]*categorize.Entry
	size    int
}

// FromRecords categorizes each raw record and indexes the resulting entry
// under the four-key scheme. Later records win on duplicate keys.
func FromRecords(records []stats.Record) *Index {
	ix := &Index{entries: make(map[string]*categorize.Entry, len(records)*4)}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		e := categorize.NewEntry(rec)
		for _, k := range rec.LookupKeys() {
			ix.entries[k] = e
		}
		ix.size++
	}
	return ix
}

// FromEntries indexes a pre-keyed mapping. Entries are stored as given under
// their mapping key and are not re-validated.
func FromEntries(entries map[string]*categorize.Entry) *Index {
	ix := &Index{entries: make(map[string]*categorize.Entry, len(entries))}
	for k, e := range entries {
		if k == "" || e == nil {
			continue
		}
		ix.entries[k] = e
		ix.size++
	}
	return ix
}

// Decode builds an Index from a JSON document. An array is read as raw
// records. An object is read as a mapping from key to value, where each
// value is either an entry that already carries "categories" (kept as-is)
// or a raw record (categorized here, with Code falling back to its key).
// Malformed mapping values are skipped with a warning.
func Decode(data []byte) (*Index, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, eris.New("hierarchy: empty document")
	}

	switch trimmed[0] {
	case '[':
		var records []stats.Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, eris.Wrap(err, "hierarchy: decode record list")
		}
		return FromRecords(records), nil
	case '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, eris.Wrap(err, "hierarchy: decode mapping")
		}
		return fromMapping(raw), nil
	default:
		return nil, eris.Errorf("hierarchy: expected JSON array or object, got %q", trimmed[0])
	}
}

func fromMapping(raw map[string]json.RawMessage) *Index {
	log := zap.L().With(zap.String("component", "hierarchy"))
	entries := make(map[string]*categorize.Entry, len(raw))

	for key, value := range raw {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(value, &fields); err != nil {
			log.Warn("skipping malformed hierarchy entry", zap.String("key", key), zap.Error(err))
			continue
		}

		if c, shaped := fields["categories"]; shaped && !bytes.Equal(bytes.TrimSpace(c), []byte("null")) {
			var e categorize.Entry
			if err := json.Unmarshal(value, &e); err != nil {
				log.Warn("skipping malformed hierarchy entry", zap.String("key", key), zap.Error(err))
				continue
			}
			entries[key] = &e
			continue
		}

		var rec stats.Record
		if err := json.Unmarshal(value, &rec); err != nil {
			log.Warn("skipping malformed hierarchy entry", zap.String("key", key), zap.Error(err))
			continue
		}
		e := categorize.NewEntry(rec)
		if code, ok := rec.Identity(stats.FieldCode); ok {
			e.Code = code
		} else if id, ok := rec.Identity(stats.FieldID); ok {
			e.Code = id
		} else {
			e.Code = key
		}
		entries[key] = e
	}

	return FromEntries(entries)
}

// Len returns the number of distinct inputs indexed.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return ix.size
}

// Lookup tries the record's Code, id, region and normalized region in order
// and returns the first entry found.
func (ix *Index) Lookup(rec stats.Record) (*categorize.Entry, bool) {
	if ix == nil || rec == nil {
		return nil, false
	}
	for _, k := range rec.LookupKeys() {
		if e, ok := ix.entries[k]; ok {
			return e, true
		}
	}
	return nil, false
}

// Resolve returns the categorized entry for a resolved record. When the
// index has nothing for it, the record itself is categorized, so a matched
// region always has a breakdown. An indexed entry without a region name
// takes the record's, on a copy; indexed entries are never modified.
// Returns nil only for a nil record.
func (ix *Index) Resolve(rec stats.Record) *categorize.Entry {
	if rec == nil {
		return nil
	}
	e, ok := ix.Lookup(rec)
	if !ok {
		return categorize.NewEntry(rec)
	}
	if e.Region == "" {
		if region := rec.Region(); region != "" {
			named := *e
			named.Region = region
			return &named
		}
	}
	return e
}

// RegionKey returns the key a resolved region is displayed and cached under:
// the entry's Code, else the record's Code, id, or normalized region name.
func RegionKey(e *categorize.Entry, rec stats.Record) string {
	if e != nil && e.Code != "" {
		return e.Code
	}
	return rec.DerivedCode()
}
