package suggest

import (
	"sync"

	"github.com/dshills/nextedit/internal/protocol"
)

// Source selects which record collection a query reads.
type Source int

const (
	// SourcePending holds edits from the most recent response, not yet shown.
	SourcePending Source = iota

	// SourceActive holds edits eligible for display and acceptance.
	SourceActive
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourcePending:
		return "pending"
	case SourceActive:
		return "active"
	default:
		return "unknown"
	}
}

// Eligible decides at read time whether a record may be served. Records
// are never pruned eagerly; staleness is filtered on every query.
type Eligible func(*EditRecord) bool

// Store holds the pending and active edit collections. Active carries at
// most one generation per document: promotion replaces a document's prior
// records instead of appending to them.
type Store struct {
	mu      sync.Mutex
	pending []*EditRecord
	active  []*EditRecord
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// ReplacePending swaps the whole pending collection for recs.
func (s *Store) ReplacePending(recs []*EditRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = recs
}

// Query returns records from src that pass eligible, narrowed to doc when
// doc is non-empty. Order is preserved.
func (s *Store) Query(src Source, doc protocol.DocumentURI, eligible Eligible) []*EditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*EditRecord
	for _, rec := range s.collection(src) {
		if doc != "" && rec.Document != doc {
			continue
		}
		if eligible != nil && !eligible(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Promote moves doc's eligible pending records into active, replacing the
// document's prior active generation. All of doc's pending records are
// consumed. Returns false, leaving active untouched, when nothing in
// pending is eligible; in that case no render signal is owed.
func (s *Store) Promote(doc protocol.DocumentURI, eligible Eligible) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var promoted []*EditRecord
	for _, rec := range s.pending {
		if rec.Document != doc {
			continue
		}
		if eligible != nil && !eligible(rec) {
			continue
		}
		promoted = append(promoted, rec)
	}
	if len(promoted) == 0 {
		return false
	}

	s.active = withoutDocument(s.active, doc)
	s.active = append(s.active, promoted...)
	s.pending = withoutDocument(s.pending, doc)
	return true
}

// RemoveDocument drops doc's records from both collections. Returns
// whether anything was removed.
func (s *Store) RemoveDocument(doc protocol.DocumentURI) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.pending) + len(s.active)
	s.pending = withoutDocument(s.pending, doc)
	s.active = withoutDocument(s.active, doc)
	return len(s.pending)+len(s.active) != before
}

// Clear empties both collections.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	s.active = nil
}

// Len returns the raw size of a collection, staleness ignored.
func (s *Store) Len(src Source) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.collection(src))
}

func (s *Store) collection(src Source) []*EditRecord {
	if src == SourceActive {
		return s.active
	}
	return s.pending
}

func withoutDocument(recs []*EditRecord, doc protocol.DocumentURI) []*EditRecord {
	out := recs[:0:0]
	for _, rec := range recs {
		if rec.Document != doc {
			out = append(out, rec)
		}
	}
	return out
}
