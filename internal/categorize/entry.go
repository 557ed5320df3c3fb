package categorize

import (
	"slices"

	"github.com/sells-group/region-atlas/internal/stats"
)

// Entry is a region's record reshaped into buckets for hierarchical display.
type Entry struct {
	Region     string       `json:"region"`
	Code       string       `json:"Code"`
	Categories Categories   `json:"categories"`
	Data       stats.Record `json:"data,omitempty"`
}

// NewEntry classifies a record into an Entry. Code falls back to the
// record's id, then its normalized region name.
func NewEntry(rec stats.Record) *Entry {
	return &Entry{
		Region:     rec.Region(),
		Code:       rec.DerivedCode(),
		Categories: Classify(rec),
		Data:       rec,
	}
}

// Buckets returns the entry's non-empty buckets: the known buckets in
// display order, then any others (pre-shaped entries may carry their own)
// sorted by name.
func (e *Entry) Buckets() []Bucket {
	if e == nil {
		return nil
	}
	var out, extra []Bucket
	for _, b := range BucketOrder {
		if len(e.Categories[b]) > 0 {
			out = append(out, b)
		}
	}
	for b, fields := range e.Categories {
		if len(fields) > 0 && !slices.Contains(BucketOrder, b) {
			extra = append(extra, b)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}
