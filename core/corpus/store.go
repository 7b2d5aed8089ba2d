// Package corpus holds the in-memory record corpus and keeps it in sync with the ingestion root.
package corpus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/insights/core"
	"github.com/trezcool/insights/core/ingest"
)

// ErrClosed is returned when swapping into a closed Store.
var ErrClosed = errors.New("corpus store closed")

// Snapshot is one immutable build of the corpus.
type Snapshot struct {
	Records        []ingest.Record `json:"-"`
	RecordCount    int             `json:"records"`
	FilesScanned   int             `json:"filesScanned"`
	FilesSkipped   int             `json:"filesSkipped"`
	RecordsDropped int             `json:"recordsDropped"`
	BuiltAt        time.Time       `json:"builtAt"`
	Duration       time.Duration   `json:"duration"`
}

// Store publishes corpus snapshots to concurrent readers. Readers never block; writers replace the whole
// snapshot at once.
type Store struct {
	mu     sync.Mutex // serializes writers
	snap   atomic.Pointer[Snapshot]
	closed atomic.Bool
}

func NewStore() *Store {
	s := new(Store)
	s.snap.Store(&Snapshot{})
	return s
}

// Swap publishes snap as the current corpus.
func (s *Store) Swap(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return ErrClosed
	}
	snap.RecordCount = len(snap.Records)
	s.snap.Store(&snap)
	return nil
}

// Snapshot returns the current snapshot. Its records must not be modified.
func (s *Store) Snapshot() Snapshot {
	return *s.snap.Load()
}

// All returns every record of the current snapshot.
func (s *Store) All() []ingest.Record {
	return s.snap.Load().Records
}

// Len returns the number of records of the current snapshot.
func (s *Store) Len() int {
	return len(s.snap.Load().Records)
}

// ByName returns the records of a student, names being compared after trim and NFC normalization.
func (s *Store) ByName(name string) []ingest.Record {
	var res []ingest.Record
	for _, rec := range s.All() {
		if core.SameName(rec.Name, name) {
			res = append(res, rec)
		}
	}
	return res
}

// Close disposes of the corpus: reads return nothing and swaps fail.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed.Store(true)
	s.snap.Store(&Snapshot{})
}
