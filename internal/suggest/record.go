package suggest

import (
	"github.com/dshills/nextedit/internal/diff"
	"github.com/dshills/nextedit/internal/document"
	"github.com/dshills/nextedit/internal/protocol"
)

// RawEdit is one proposed change as the backend states it.
type RawEdit struct {
	Range   protocol.Range
	NewText string
	Command *protocol.Command
}

// EditRecord is one immutable proposed edit. Built once when a backend
// response arrives, never mutated, discarded when superseded, cleared,
// or its document closes.
type EditRecord struct {
	// Document is the open document the edit targets.
	Document protocol.DocumentURI

	// ExpectedVersion is the document version the edit was computed for.
	// The record is served only while the live version still matches.
	ExpectedVersion int

	// Range and NewText describe the replacement.
	Range   protocol.Range
	NewText string

	// Command is an optional follow-up backend action, run after apply.
	Command *protocol.Command

	// Diff is the structured difference between the document content and
	// that content with the replacement applied.
	Diff diff.Result
}

// NewEditRecord builds a record from one backend edit. content is the
// document text at version. The diff is computed here, once.
func NewEditRecord(uri protocol.DocumentURI, version int, raw RawEdit, content string, provider diff.Provider) *EditRecord {
	rec := &EditRecord{
		Document:        uri,
		ExpectedVersion: version,
		Range:           raw.Range,
		NewText:         raw.NewText,
		Command:         raw.Command,
	}

	after, err := document.ApplyToContent(content, []protocol.TextEdit{
		{Range: raw.Range, NewText: raw.NewText},
	})
	if err != nil {
		// An inapplicable range yields an empty diff; the record stays
		// invisible to eligible reads.
		return rec
	}
	rec.Diff = provider(content, after)
	return rec
}

// IsValid reports whether the record is well formed: it must change a
// non-degenerate range, or insert text, or carry a follow-up command.
func (r *EditRecord) IsValid() bool {
	return !r.Range.IsEmpty() || r.NewText != "" || r.Command != nil
}

// IsEmpty reports whether the derived diff has no hunks, i.e. applying
// the record would not change the document.
func (r *EditRecord) IsEmpty() bool {
	return r.Diff.IsEmpty()
}
