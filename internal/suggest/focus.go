package suggest

import (
	"sync"

	"github.com/dshills/nextedit/internal/protocol"
)

// FocusTracker remembers, per connection, the last document a focus
// notification was sent for, so repeated focus events on the same
// document produce exactly one notification. Entries survive suggestion
// clears; they are removed only when their connection closes.
type FocusTracker struct {
	mu       sync.Mutex
	notified map[string]protocol.DocumentURI
}

// NewFocusTracker returns an empty tracker.
func NewFocusTracker() *FocusTracker {
	return &FocusTracker{notified: make(map[string]protocol.DocumentURI)}
}

// ShouldNotify reports whether connID has yet to be told about doc.
func (t *FocusTracker) ShouldNotify(connID string, doc protocol.DocumentURI) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notified[connID] != doc
}

// MarkNotified records that connID was told about doc.
func (t *FocusTracker) MarkNotified(connID string, doc protocol.DocumentURI) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notified[connID] = doc
}

// Forget drops connID's entry. Called when the connection closes.
func (t *FocusTracker) Forget(connID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.notified, connID)
}
