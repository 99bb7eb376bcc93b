package document

import "errors"

// Standard errors returned by the document host.
var (
	// ErrNotOpen indicates the document is not known to the host.
	ErrNotOpen = errors.New("document not open")

	// ErrAlreadyOpen indicates the document is already open.
	ErrAlreadyOpen = errors.New("document already open")

	// ErrNotLoaded indicates the document is registered but has no content.
	ErrNotLoaded = errors.New("document not loaded")

	// ErrInvalidRange indicates an edit range does not address the document.
	ErrInvalidRange = errors.New("invalid edit range")
)
