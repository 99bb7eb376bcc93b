// Package event provides a small synchronous publish/subscribe bus used to
// signal collaborators of the suggestion engine. Handlers run in the
// publisher's goroutine, in subscription order; the engine publishes from
// its own task loop so handlers observe a consistent state snapshot.
package event

import (
	"time"

	"github.com/dshills/nextedit/internal/protocol"
)

// Topic is a hierarchical event type using dot notation,
// e.g. "nextedit.render.updated".
type Topic string

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Topics published by the suggestion engine.
const (
	// TopicRenderUpdated signals the rendering collaborator that the set of
	// active edits changed and the viewport should be redrawn. Published on
	// promotion and on clear (an empty set means render nothing).
	TopicRenderUpdated Topic = "nextedit.render.updated"

	// TopicEditApplied fires after an accepted edit has been written to the
	// document and its follow-up commands dispatched.
	TopicEditApplied Topic = "nextedit.edit.applied"
)

// RenderUpdated is the payload for TopicRenderUpdated.
type RenderUpdated struct {
	// Document is the document whose active edits changed. Empty when the
	// whole store was cleared.
	Document protocol.DocumentURI

	// HaveActive reports whether any active edits remain for Document.
	HaveActive bool
}

// EditApplied is the payload for TopicEditApplied.
type EditApplied struct {
	// ConnectionID identifies the backend connection that produced the edit.
	ConnectionID string

	// Document is the document the edit was applied to.
	Document protocol.DocumentURI

	// Version is the document version after application.
	Version int

	// AppliedAt is when the application completed.
	AppliedAt time.Time
}
