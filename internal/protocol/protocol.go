// Package protocol defines the wire and domain types shared by the
// next-edit-suggestion engine, the document host, and the backend client.
// Positions follow the LSP convention: zero-based line and character, with
// character offsets measured in UTF-16 code units.
package protocol

import (
	"fmt"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
)

// DocumentURI identifies an open document. It is typically a file:// URI.
type DocumentURI string

// Position in a text document expressed as zero-based line and character
// offset. Character offset is measured in UTF-16 code units.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range in a text document expressed as start and end positions.
// The end position is exclusive.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextEdit represents a textual edit applicable to a text document.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// Command is an opaque follow-up action a backend asks the client to run
// after an edit is applied.
type Command struct {
	Title     string `json:"title"`
	Command   string `json:"command"`
	Arguments []any  `json:"arguments,omitempty"`
}

// IsZero reports whether the range is the zero value.
func (r Range) IsZero() bool {
	return r.Start == (Position{}) && r.End == (Position{})
}

// IsEmpty reports whether the range covers no characters.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// String returns a compact human-readable form, 1-based for display.
func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.Start.Line+1, r.Start.Character+1, r.End.Line+1, r.End.Character+1)
}

// ComparePositions returns -1 if a is before b, 0 if equal, 1 if after.
func ComparePositions(a, b Position) int {
	if a.Line != b.Line {
		if a.Line < b.Line {
			return -1
		}
		return 1
	}
	if a.Character != b.Character {
		if a.Character < b.Character {
			return -1
		}
		return 1
	}
	return 0
}

// IsPositionBefore returns true if a comes before b in the document.
func IsPositionBefore(a, b Position) bool {
	return ComparePositions(a, b) < 0
}

// RangeContains returns true if the range contains the position.
// The end position is exclusive.
func RangeContains(r Range, pos Position) bool {
	return ComparePositions(pos, r.Start) >= 0 && ComparePositions(pos, r.End) < 0
}

// EndOfInsertion returns the position at the end of text inserted at start,
// accounting for newlines in the inserted text. This is where the cursor
// lands after accepting an edit: the end of the new text, not the end of
// the replaced range.
func EndOfInsertion(start Position, text string) Position {
	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		return Position{Line: start.Line, Character: start.Character + utf16Len(text)}
	}
	last := lines[len(lines)-1]
	return Position{Line: start.Line + len(lines) - 1, Character: utf16Len(last)}
}

// utf16Len returns the length of s in UTF-16 code units.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// FilePathToURI converts a file system path to a file:// DocumentURI.
func FilePathToURI(path string) DocumentURI {
	if path == "" {
		return ""
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	path = filepath.ToSlash(path)

	// On Windows, add extra slash for drive letter
	if runtime.GOOS == "windows" && len(path) >= 2 && path[1] == ':' {
		path = "/" + path
	}

	u := &url.URL{
		Scheme: "file",
		Path:   path,
	}

	return DocumentURI(u.String())
}

// URIToFilePath converts a file:// DocumentURI back to a file system path.
// Non-file URIs are returned unchanged as strings.
func URIToFilePath(uri DocumentURI) string {
	if uri == "" {
		return ""
	}

	u, err := url.Parse(string(uri))
	if err != nil {
		return string(uri)
	}

	if u.Scheme != "file" {
		return string(uri)
	}

	path := u.Path

	// On Windows, remove leading slash before drive letter
	if runtime.GOOS == "windows" && len(path) >= 3 && path[0] == '/' && path[2] == ':' {
		path = path[1:]
	}

	return filepath.FromSlash(path)
}

// DetectLanguageID guesses a language identifier from a file path extension.
// Returns "plaintext" when the extension is not recognized.
func DetectLanguageID(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".jsx":
		return "javascriptreact"
	case ".tsx":
		return "typescriptreact"
	case ".rs":
		return "rust"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".cxx", ".hpp":
		return "cpp"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".lua":
		return "lua"
	case ".sh", ".bash":
		return "shellscript"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".md", ".markdown":
		return "markdown"
	default:
		return "plaintext"
	}
}
