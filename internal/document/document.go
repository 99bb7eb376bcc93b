// Package document hosts the open documents the suggestion engine works
// against: versioned content, focus state, cursor, and jump history. The
// embedding editor forwards its buffer lifecycle here; the engine only
// reads versions and applies accepted edits.
package document

import (
	"sync"

	"github.com/dshills/nextedit/internal/protocol"
)

// BufferKind classifies a document's backing buffer.
type BufferKind int

const (
	// KindFile is a regular file-backed buffer.
	KindFile BufferKind = iota
	// KindScratch is a transient buffer (preview, prompt, tool output).
	// Scratch buffers never receive focus notifications or suggestions.
	KindScratch
)

// String returns the string representation of the buffer kind.
func (k BufferKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindScratch:
		return "scratch"
	default:
		return "unknown"
	}
}

// Document is one open document.
type Document struct {
	URI        protocol.DocumentURI
	LanguageID string
	Version    int
	Content    string
	Kind       BufferKind

	loaded bool
}

// Cursor is a position within a named document.
type Cursor struct {
	URI protocol.DocumentURI
	Pos protocol.Position
}

// maxJumpHistory bounds the jump history ring.
const maxJumpHistory = 100

// Host tracks open documents, the focused document, the cursor, and the
// jump history. All methods are safe for concurrent use.
type Host struct {
	mu        sync.RWMutex
	documents map[protocol.DocumentURI]*Document
	current   protocol.DocumentURI
	cursor    Cursor
	history   []Cursor
}

// NewHost creates an empty host.
func NewHost() *Host {
	return &Host{
		documents: make(map[protocol.DocumentURI]*Document),
	}
}

// Open registers a document with content at version 1 and marks it loaded.
func (h *Host) Open(uri protocol.DocumentURI, languageID, content string) (*Document, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.documents[uri]; exists {
		return nil, ErrAlreadyOpen
	}

	doc := &Document{
		URI:        uri,
		LanguageID: languageID,
		Version:    1,
		Content:    content,
		Kind:       KindFile,
		loaded:     true,
	}
	h.documents[uri] = doc

	if h.current == "" {
		h.current = uri
		h.cursor = Cursor{URI: uri}
	}

	return doc, nil
}

// OpenScratch registers a scratch buffer. Scratch buffers are loaded but
// excluded from focus notification and suggestion eligibility.
func (h *Host) OpenScratch(uri protocol.DocumentURI, content string) (*Document, error) {
	doc, err := h.Open(uri, "plaintext", content)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	doc.Kind = KindScratch
	h.mu.Unlock()
	return doc, nil
}

// Register records a document that exists but has no content loaded yet.
// Load supplies the content later.
func (h *Host) Register(uri protocol.DocumentURI, languageID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.documents[uri]; exists {
		return ErrAlreadyOpen
	}

	h.documents[uri] = &Document{
		URI:        uri,
		LanguageID: languageID,
		Version:    1,
		Kind:       KindFile,
	}
	return nil
}

// Load supplies content for a registered document and marks it loaded.
func (h *Host) Load(uri protocol.DocumentURI, content string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, exists := h.documents[uri]
	if !exists {
		return ErrNotOpen
	}

	doc.Content = content
	doc.loaded = true
	return nil
}

// Close removes a document. Closing the current document leaves no
// document focused.
func (h *Host) Close(uri protocol.DocumentURI) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.documents[uri]; !exists {
		return ErrNotOpen
	}

	delete(h.documents, uri)
	if h.current == uri {
		h.current = ""
	}
	return nil
}

// Change replaces a document's content and bumps its version.
// Returns the new version.
func (h *Host) Change(uri protocol.DocumentURI, content string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, exists := h.documents[uri]
	if !exists {
		return 0, ErrNotOpen
	}

	doc.Content = content
	doc.Version++
	doc.loaded = true
	return doc.Version, nil
}

// Get returns a copy of the document, or false if it is not open.
func (h *Host) Get(uri protocol.DocumentURI) (Document, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	doc, exists := h.documents[uri]
	if !exists {
		return Document{}, false
	}
	return *doc, true
}

// Exists reports whether the document is known to the host.
func (h *Host) Exists(uri protocol.DocumentURI) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.documents[uri]
	return exists
}

// IsLoaded reports whether the document is open AND has content loaded.
func (h *Host) IsLoaded(uri protocol.DocumentURI) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	doc, exists := h.documents[uri]
	return exists && doc.loaded
}

// Version returns the document's current version.
func (h *Host) Version(uri protocol.DocumentURI) (int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	doc, exists := h.documents[uri]
	if !exists {
		return 0, false
	}
	return doc.Version, true
}

// Content returns the document's current content.
func (h *Host) Content(uri protocol.DocumentURI) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	doc, exists := h.documents[uri]
	if !exists || !doc.loaded {
		return "", false
	}
	return doc.Content, true
}

// Kind returns the document's buffer kind.
func (h *Host) Kind(uri protocol.DocumentURI) (BufferKind, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	doc, exists := h.documents[uri]
	if !exists {
		return 0, false
	}
	return doc.Kind, true
}

// LanguageID returns the document's language identifier.
func (h *Host) LanguageID(uri protocol.DocumentURI) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	doc, exists := h.documents[uri]
	if !exists {
		return "", false
	}
	return doc.LanguageID, true
}

// SetCurrent focuses a document and moves the cursor into it
// (position preserved when refocusing the same document).
func (h *Host) SetCurrent(uri protocol.DocumentURI) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.documents[uri]; !exists {
		return ErrNotOpen
	}

	if h.current != uri {
		h.current = uri
		h.cursor = Cursor{URI: uri}
	}
	return nil
}

// Current returns the focused document's URI, or empty if none.
func (h *Host) Current() protocol.DocumentURI {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Cursor returns the current cursor.
func (h *Host) Cursor() Cursor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cursor
}

// SetCursor moves the cursor. The target document must be open; the
// position is clamped to the document's content.
func (h *Host) SetCursor(c Cursor) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, exists := h.documents[c.URI]
	if !exists {
		return ErrNotOpen
	}
	if !doc.loaded {
		return ErrNotLoaded
	}

	c.Pos = NewConverter(doc.Content).Clamp(c.Pos)
	h.cursor = c
	return nil
}

// ClampPosition restricts a position to the document's addressable content.
func (h *Host) ClampPosition(uri protocol.DocumentURI, pos protocol.Position) (protocol.Position, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	doc, exists := h.documents[uri]
	if !exists {
		return protocol.Position{}, ErrNotOpen
	}
	if !doc.loaded {
		return protocol.Position{}, ErrNotLoaded
	}
	return NewConverter(doc.Content).Clamp(pos), nil
}

// PushJump records a cursor position in the jump history.
func (h *Host) PushJump(c Cursor) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append(h.history, c)
	if len(h.history) > maxJumpHistory {
		h.history = h.history[len(h.history)-maxJumpHistory:]
	}
}

// JumpHistory returns a copy of the jump history, oldest first.
func (h *Host) JumpHistory() []Cursor {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Cursor, len(h.history))
	copy(out, h.history)
	return out
}

// ApplyEdits applies edits to a document sequentially, in the given order.
// Each edit's range addresses the content produced by the previous edits.
// The version is bumped once for the whole batch; the new version is
// returned. On a range error nothing is modified.
func (h *Host) ApplyEdits(uri protocol.DocumentURI, edits []protocol.TextEdit) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	doc, exists := h.documents[uri]
	if !exists {
		return 0, ErrNotOpen
	}
	if !doc.loaded {
		return 0, ErrNotLoaded
	}
	if len(edits) == 0 {
		return doc.Version, nil
	}

	content, err := ApplyToContent(doc.Content, edits)
	if err != nil {
		return 0, err
	}

	doc.Content = content
	doc.Version++
	return doc.Version, nil
}

// ApplyToContent returns content with the edits applied sequentially, each
// range addressing the output of the previous edit. No host state is touched.
func ApplyToContent(content string, edits []protocol.TextEdit) (string, error) {
	for _, edit := range edits {
		conv := NewConverter(content)
		start := conv.PositionToOffset(edit.Range.Start)
		end := conv.PositionToOffset(edit.Range.End)
		if start > end {
			return "", ErrInvalidRange
		}
		content = content[:start] + edit.NewText + content[end:]
	}
	return content, nil
}
