package suggest

import (
	"sync"

	"github.com/dshills/nextedit/internal/backend"
)

// inflight is the single outstanding request of one connection.
type inflight struct {
	handle backend.RequestHandle
	conn   Connection
	seq    uint64
}

// Coordinator tracks in-flight suggestion requests, at most one per
// connection. Every request carries a sequence number; a response whose
// sequence no longer matches the table finds itself stale and is dropped
// by the caller.
type Coordinator struct {
	mu      sync.Mutex
	nextSeq uint64
	entries map[string]inflight
}

// NewCoordinator returns an empty coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{entries: make(map[string]inflight)}
}

// Next reserves a sequence number for a request about to be issued.
func (c *Coordinator) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSeq++
	return c.nextSeq
}

// Track records conn's outstanding request. Any prior entry for the
// connection is overwritten; callers cancel before reissuing.
func (c *Coordinator) Track(conn Connection, handle backend.RequestHandle, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[conn.ID()] = inflight{handle: handle, conn: conn, seq: seq}
}

// Complete removes the entry for connID if it still belongs to seq.
// Returns false when the response is stale: the entry is gone or a newer
// request replaced it.
func (c *Coordinator) Complete(connID string, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[connID]
	if !ok || entry.seq != seq {
		return false
	}
	delete(c.entries, connID)
	return true
}

// CancelAll asks every tracked connection to cancel its outstanding
// request and empties the table. Cancelling an already-completed request
// is a no-op on the connection side.
func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	entries := make([]inflight, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.entries = make(map[string]inflight)
	c.mu.Unlock()

	for _, e := range entries {
		e.conn.CancelRequest(e.handle)
	}
}

// Remove drops connID's entry without cancelling, for connections that
// are already gone.
func (c *Coordinator) Remove(connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, connID)
}

// Len returns the number of outstanding requests.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
