package document

import (
	"strings"

	"github.com/dshills/nextedit/internal/protocol"
)

// Converter translates between protocol positions (zero-based line plus
// UTF-16 character offset) and byte offsets into a content snapshot.
// Build one per snapshot; it indexes lines once and is immutable afterward.
type Converter struct {
	content string
	lines   []lineInfo
}

// lineInfo caches per-line offsets for conversions.
type lineInfo struct {
	byteOffset int // offset of the first byte of the line
	byteLen    int // length in bytes, excluding the newline
	utf16Len   int // length in UTF-16 code units, excluding the newline
}

// NewConverter indexes content for position conversions.
func NewConverter(content string) *Converter {
	c := &Converter{content: content}

	start := 0
	for {
		idx := strings.IndexByte(content[start:], '\n')
		if idx < 0 {
			line := content[start:]
			c.lines = append(c.lines, lineInfo{
				byteOffset: start,
				byteLen:    len(line),
				utf16Len:   utf16Len(line),
			})
			break
		}
		line := content[start : start+idx]
		c.lines = append(c.lines, lineInfo{
			byteOffset: start,
			byteLen:    len(line),
			utf16Len:   utf16Len(line),
		})
		start += idx + 1
	}

	return c
}

// LineCount returns the number of lines in the content.
// Empty content has one (empty) line.
func (c *Converter) LineCount() int {
	return len(c.lines)
}

// PositionToOffset converts a protocol position to a byte offset.
// Out-of-range positions are clamped to the nearest valid offset.
func (c *Converter) PositionToOffset(pos protocol.Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(c.lines) {
		return len(c.content)
	}

	line := c.lines[pos.Line]
	text := c.content[line.byteOffset : line.byteOffset+line.byteLen]
	return line.byteOffset + utf16ToByteOffset(text, pos.Character)
}

// OffsetToPosition converts a byte offset to a protocol position.
// Out-of-range offsets are clamped.
func (c *Converter) OffsetToPosition(offset int) protocol.Position {
	if offset < 0 {
		return protocol.Position{}
	}
	if offset > len(c.content) {
		offset = len(c.content)
	}

	// Binary search for the containing line.
	lo, hi := 0, len(c.lines)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if c.lines[mid].byteOffset <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	line := c.lines[lo]
	rel := offset - line.byteOffset
	if rel > line.byteLen {
		rel = line.byteLen
	}
	text := c.content[line.byteOffset : line.byteOffset+line.byteLen]
	return protocol.Position{Line: lo, Character: byteToUTF16Offset(text, rel)}
}

// Clamp restricts a position to addressable content: the line is clamped to
// the last line and the character to the line's UTF-16 length.
func (c *Converter) Clamp(pos protocol.Position) protocol.Position {
	if pos.Line < 0 {
		pos.Line = 0
	}
	if pos.Line >= len(c.lines) {
		pos.Line = len(c.lines) - 1
	}
	if pos.Character < 0 {
		pos.Character = 0
	}
	if max := c.lines[pos.Line].utf16Len; pos.Character > max {
		pos.Character = max
	}
	return pos
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

// utf16ToByteOffset converts a UTF-16 code-unit offset within a line to a
// byte offset. Offsets beyond the line clamp to its byte length.
func utf16ToByteOffset(s string, u16 int) int {
	if u16 <= 0 {
		return 0
	}

	units := 0
	for i, r := range s {
		if units >= u16 {
			return i
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return len(s)
}

// byteToUTF16Offset converts a byte offset within a line to a UTF-16
// code-unit offset. Offsets inside a rune round down to its start.
func byteToUTF16Offset(s string, b int) int {
	if b <= 0 {
		return 0
	}

	units := 0
	for i, r := range s {
		if i >= b {
			return units
		}
		if r > 0xFFFF {
			units += 2
		} else {
			units++
		}
	}
	return units
}
