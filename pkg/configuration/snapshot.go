package configuration

import (
	"sort"
	"time"
)

// Snapshot is an immutable view of the cache produced by one reload
type Snapshot struct {
	generation uint64
	loadedAt   time.Time
	records    map[string]Record
}

var emptySnapshot = &Snapshot{records: map[string]Record{}}

func newSnapshot(generation uint64, loadedAt time.Time, records map[string]Record) *Snapshot {
	return &Snapshot{
		generation: generation,
		loadedAt:   loadedAt,
		records:    records,
	}
}

// Get returns the record cached under key
func (s *Snapshot) Get(key string) (Record, bool) {
	r, ok := s.records[key]
	return r, ok
}

// Keys returns the logical names in the snapshot, sorted
func (s *Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of records
func (s *Snapshot) Len() int { return len(s.records) }

// Generation is zero for the empty cache and increases with every successful reload
func (s *Snapshot) Generation() uint64 { return s.generation }

// LoadedAt returns when the snapshot was built (zero for the empty cache)
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }
