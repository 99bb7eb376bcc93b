package suggest

import (
	"testing"

	"github.com/dshills/nextedit/internal/diff"
	"github.com/dshills/nextedit/internal/protocol"
)

// rec builds a minimal record with a non-empty diff so it is visible to
// queries that only filter on emptiness.
func rec(doc protocol.DocumentURI, version int, text string) *EditRecord {
	return &EditRecord{
		Document:        doc,
		ExpectedVersion: version,
		NewText:         text,
		Diff: diff.Result{
			Hunks: []diff.Hunk{{AfterLines: []string{text}}},
		},
	}
}

func TestStore_ReplacePendingWholesale(t *testing.T) {
	s := NewStore()

	s.ReplacePending([]*EditRecord{rec("file:///a.go", 1, "old")})
	s.ReplacePending([]*EditRecord{rec("file:///b.go", 1, "new")})

	if got := s.Len(SourcePending); got != 1 {
		t.Fatalf("pending len = %d, want 1", got)
	}
	out := s.Query(SourcePending, "", nil)
	if out[0].NewText != "new" {
		t.Errorf("pending record = %q, want the replacement", out[0].NewText)
	}
}

func TestStore_QueryFilters(t *testing.T) {
	s := NewStore()
	s.ReplacePending([]*EditRecord{
		rec("file:///a.go", 1, "a1"),
		rec("file:///b.go", 1, "b1"),
		rec("file:///a.go", 2, "a2"),
	})

	byDoc := s.Query(SourcePending, "file:///a.go", nil)
	if len(byDoc) != 2 {
		t.Fatalf("Query(doc) returned %d records, want 2", len(byDoc))
	}

	onlyV2 := s.Query(SourcePending, "file:///a.go", func(r *EditRecord) bool {
		return r.ExpectedVersion == 2
	})
	if len(onlyV2) != 1 || onlyV2[0].NewText != "a2" {
		t.Errorf("eligibility filter not applied: %v", onlyV2)
	}
}

func TestStore_PromoteReplacesGeneration(t *testing.T) {
	s := NewStore()
	doc := protocol.DocumentURI("file:///a.go")
	other := protocol.DocumentURI("file:///b.go")

	// First generation for doc, plus an unrelated active record.
	s.ReplacePending([]*EditRecord{rec(other, 1, "other")})
	if !s.Promote(other, nil) {
		t.Fatal("Promote(other) should succeed")
	}
	s.ReplacePending([]*EditRecord{rec(doc, 1, "gen1")})
	if !s.Promote(doc, nil) {
		t.Fatal("first Promote should succeed")
	}

	// Second generation replaces the first, leaves other alone.
	s.ReplacePending([]*EditRecord{rec(doc, 2, "gen2")})
	if !s.Promote(doc, nil) {
		t.Fatal("second Promote should succeed")
	}

	active := s.Query(SourceActive, doc, nil)
	if len(active) != 1 || active[0].NewText != "gen2" {
		t.Errorf("active generation = %v, want only gen2", active)
	}
	if got := s.Query(SourceActive, other, nil); len(got) != 1 {
		t.Errorf("other document's active records disturbed: %v", got)
	}

	// Pending for doc was consumed.
	if got := s.Query(SourcePending, doc, nil); len(got) != 0 {
		t.Errorf("pending not consumed: %v", got)
	}
}

func TestStore_PromoteEmptyIsNoop(t *testing.T) {
	s := NewStore()
	doc := protocol.DocumentURI("file:///a.go")

	s.ReplacePending([]*EditRecord{rec(doc, 1, "x")})
	if !s.Promote(doc, nil) {
		t.Fatal("Promote should succeed")
	}

	// Nothing pending anymore: second promotion reports no change and
	// leaves active intact.
	if s.Promote(doc, nil) {
		t.Error("Promote with empty pending should report false")
	}
	if got := s.Query(SourceActive, doc, nil); len(got) != 1 {
		t.Errorf("active disturbed by no-op promote: %v", got)
	}
}

func TestStore_PromoteIneligibleIsNoop(t *testing.T) {
	s := NewStore()
	doc := protocol.DocumentURI("file:///a.go")
	s.ReplacePending([]*EditRecord{rec(doc, 1, "x")})

	none := func(*EditRecord) bool { return false }
	if s.Promote(doc, none) {
		t.Error("Promote should report false when nothing is eligible")
	}
	// The ineligible pending records were not consumed.
	if got := s.Len(SourcePending); got != 1 {
		t.Errorf("pending len = %d, want 1", got)
	}
}

func TestStore_RemoveDocument(t *testing.T) {
	s := NewStore()
	doc := protocol.DocumentURI("file:///a.go")
	other := protocol.DocumentURI("file:///b.go")

	s.ReplacePending([]*EditRecord{rec(doc, 1, "a"), rec(other, 1, "b")})
	s.Promote(doc, nil)
	s.ReplacePending([]*EditRecord{rec(doc, 2, "a2"), rec(other, 1, "b")})

	if !s.RemoveDocument(doc) {
		t.Fatal("RemoveDocument() = false, want true")
	}

	if got := s.Query(SourcePending, doc, nil); len(got) != 0 {
		t.Errorf("doc pending survived removal: %v", got)
	}
	if got := s.Query(SourceActive, doc, nil); len(got) != 0 {
		t.Errorf("doc active survived removal: %v", got)
	}
	if got := s.Query(SourcePending, other, nil); len(got) != 1 {
		t.Errorf("other document's records removed: %v", got)
	}

	if s.RemoveDocument(doc) {
		t.Error("second RemoveDocument() = true, want false")
	}
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.ReplacePending([]*EditRecord{rec("file:///a.go", 1, "a")})
	s.Promote("file:///a.go", nil)
	s.ReplacePending([]*EditRecord{rec("file:///b.go", 1, "b")})

	s.Clear()

	if s.Len(SourcePending) != 0 || s.Len(SourceActive) != 0 {
		t.Error("Clear should empty both collections")
	}
}
