package document

import (
	"testing"

	"github.com/dshills/nextedit/internal/protocol"
)

func TestNewConverter_LineCount(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"", 1},
		{"hello", 1},
		{"hello\n", 2},
		{"a\nb\nc", 3},
		{"\n\n", 3},
	}

	for _, tt := range tests {
		c := NewConverter(tt.content)
		if got := c.LineCount(); got != tt.want {
			t.Errorf("LineCount(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestConverter_PositionToOffset(t *testing.T) {
	c := NewConverter("line1\nline2\nline3")

	tests := []struct {
		line, char int
		want       int
	}{
		{0, 0, 0},
		{0, 5, 5},
		{1, 0, 6},
		{1, 5, 11},
		{2, 0, 12},
		{2, 5, 17},
	}

	for _, tt := range tests {
		got := c.PositionToOffset(protocol.Position{Line: tt.line, Character: tt.char})
		if got != tt.want {
			t.Errorf("PositionToOffset(%d,%d) = %d, want %d", tt.line, tt.char, got, tt.want)
		}
	}
}

func TestConverter_OffsetToPosition(t *testing.T) {
	c := NewConverter("line1\nline2\nline3")

	tests := []struct {
		offset     int
		line, char int
	}{
		{0, 0, 0},
		{5, 0, 5},
		{6, 1, 0},
		{11, 1, 5},
		{12, 2, 0},
		{17, 2, 5},
	}

	for _, tt := range tests {
		pos := c.OffsetToPosition(tt.offset)
		if pos.Line != tt.line || pos.Character != tt.char {
			t.Errorf("OffsetToPosition(%d) = (%d,%d), want (%d,%d)",
				tt.offset, pos.Line, pos.Character, tt.line, tt.char)
		}
	}
}

func TestConverter_OffsetClamping(t *testing.T) {
	c := NewConverter("ab")

	if got := c.PositionToOffset(protocol.Position{Line: 5, Character: 0}); got != 2 {
		t.Errorf("Expected clamp to content end, got %d", got)
	}
	if got := c.PositionToOffset(protocol.Position{Line: -1, Character: 0}); got != 0 {
		t.Errorf("Expected clamp to 0, got %d", got)
	}
	if pos := c.OffsetToPosition(99); pos.Character != 2 {
		t.Errorf("Expected offset clamp to (0,2), got %+v", pos)
	}
}

func TestConverter_UTF16(t *testing.T) {
	// "a" (1 unit, 1 byte), "é" (1 unit, 2 bytes), emoji (2 units, 4 bytes), "b".
	c := NewConverter("aé\U0001F600b\nsecond")

	tests := []struct {
		char int
		want int
	}{
		{0, 0},
		{1, 1}, // after a
		{2, 3}, // after é
		{4, 7}, // after emoji (2 units)
		{5, 8}, // after b
	}

	for _, tt := range tests {
		got := c.PositionToOffset(protocol.Position{Line: 0, Character: tt.char})
		if got != tt.want {
			t.Errorf("PositionToOffset(0,%d) = %d, want %d", tt.char, got, tt.want)
		}
	}

	// Reverse direction.
	pos := c.OffsetToPosition(7)
	if pos.Line != 0 || pos.Character != 4 {
		t.Errorf("OffsetToPosition(7) = %+v, want (0,4)", pos)
	}
}

func TestConverter_Clamp(t *testing.T) {
	c := NewConverter("hello\nhi")

	tests := []struct {
		in   protocol.Position
		want protocol.Position
	}{
		{protocol.Position{Line: 0, Character: 3}, protocol.Position{Line: 0, Character: 3}},
		{protocol.Position{Line: 0, Character: 99}, protocol.Position{Line: 0, Character: 5}},
		{protocol.Position{Line: 9, Character: 0}, protocol.Position{Line: 1, Character: 0}},
		{protocol.Position{Line: 1, Character: 99}, protocol.Position{Line: 1, Character: 2}},
		{protocol.Position{Line: -1, Character: -1}, protocol.Position{Line: 0, Character: 0}},
	}

	for _, tt := range tests {
		if got := c.Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%+v) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestConverter_RoundTrip(t *testing.T) {
	content := "func main() {\n\tfmt.Println(\"hi\")\n}\n"
	c := NewConverter(content)

	for offset := 0; offset <= len(content); offset++ {
		pos := c.OffsetToPosition(offset)
		back := c.PositionToOffset(pos)
		// Offsets inside a rune round down to the rune start; this content
		// is ASCII so the round trip must be exact.
		if back != offset {
			t.Fatalf("Round trip failed at %d: got %d via %+v", offset, back, pos)
		}
	}
}
