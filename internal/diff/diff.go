// Package diff computes line-based structured diffs between current document
// content and proposed replacement content. The suggestion engine consumes
// hunks for staleness filtering, jump targets, and render payloads; it never
// inspects the underlying algorithm.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/nextedit/internal/protocol"
)

// Hunk is one contiguous region of difference. Pos addresses the first
// changed line in the ORIGINAL text (character is always zero; hunks are
// line-granular).
type Hunk struct {
	Pos         protocol.Position
	BeforeLines []string
	AfterLines  []string
}

// Result is a structured diff: the ordered hunks plus the proposed
// after-text in both joined and split form.
type Result struct {
	Hunks []Hunk
	Lines []string
	Text  string
}

// IsEmpty reports whether the diff contains no hunks.
func (r Result) IsEmpty() bool {
	return len(r.Hunks) == 0
}

// Provider computes a structured diff between two texts.
type Provider func(before, after string) Result

// Compute is the default Provider, backed by diffmatchpatch in line mode.
func Compute(before, after string) Result {
	dmp := diffmatchpatch.New()
	c1, c2, lineArr := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(c1, c2, false), lineArr)

	var hunks []Hunk
	var cur *Hunk
	line := 0 // current line in before-text

	flush := func() {
		if cur != nil {
			hunks = append(hunks, *cur)
			cur = nil
		}
	}
	open := func() {
		if cur == nil {
			cur = &Hunk{Pos: protocol.Position{Line: line}}
		}
	}

	for _, d := range diffs {
		ls := chunkLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			line += len(ls)
		case diffmatchpatch.DiffDelete:
			open()
			cur.BeforeLines = append(cur.BeforeLines, ls...)
			line += len(ls)
		case diffmatchpatch.DiffInsert:
			open()
			cur.AfterLines = append(cur.AfterLines, ls...)
		}
	}
	flush()

	return Result{
		Hunks: hunks,
		Lines: strings.Split(after, "\n"),
		Text:  after,
	}
}

// chunkLines splits a diffmatchpatch line-mode chunk into individual lines.
// Chunks carry a trailing newline per line except possibly the last.
func chunkLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
