package suggest

import "testing"

func TestFocusTracker_Dedupe(t *testing.T) {
	tr := NewFocusTracker()

	if !tr.ShouldNotify("c1", "file:///a.go") {
		t.Fatal("first focus should notify")
	}
	tr.MarkNotified("c1", "file:///a.go")

	if tr.ShouldNotify("c1", "file:///a.go") {
		t.Error("repeat focus on the same document should not notify")
	}

	// A different document notifies again.
	if !tr.ShouldNotify("c1", "file:///b.go") {
		t.Error("focus on a new document should notify")
	}
	tr.MarkNotified("c1", "file:///b.go")

	// Returning to the first document notifies once more: only the last
	// identity is remembered.
	if !tr.ShouldNotify("c1", "file:///a.go") {
		t.Error("returning to a prior document should notify")
	}
}

func TestFocusTracker_PerConnection(t *testing.T) {
	tr := NewFocusTracker()

	tr.MarkNotified("c1", "file:///a.go")
	if !tr.ShouldNotify("c2", "file:///a.go") {
		t.Error("a second connection has its own memory")
	}
}

func TestFocusTracker_Forget(t *testing.T) {
	tr := NewFocusTracker()

	tr.MarkNotified("c1", "file:///a.go")
	tr.Forget("c1")

	if !tr.ShouldNotify("c1", "file:///a.go") {
		t.Error("Forget should reset the connection's memory")
	}
}
