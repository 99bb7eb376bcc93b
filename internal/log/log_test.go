package log

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		result := tt.level.String()
		if result != tt.expected {
			t.Errorf("Level(%d).String() = '%s', expected '%s'", tt.level, result, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"unknown", LevelInfo}, // Default
		{"", LevelInfo},        // Default
	}

	for _, tt := range tests {
		result := ParseLevel(tt.input)
		if result != tt.expected {
			t.Errorf("ParseLevel('%s') = %d, expected %d", tt.input, result, tt.expected)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf, Prefix: "test"})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	if strings.Contains(output, "debug message") {
		t.Error("Debug message should be filtered at Warn level")
	}
	if strings.Contains(output, "info message") {
		t.Error("Info message should be filtered at Warn level")
	}
	if !strings.Contains(output, "warn message") {
		t.Error("Warn message missing")
	}
	if !strings.Contains(output, "error message") {
		t.Error("Error message missing")
	}
}

func TestLogger_WithField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf})

	child := logger.WithField("document", "file:///a.py")
	child.Info("updated")

	output := buf.String()
	if !strings.Contains(output, "document=file:///a.py") {
		t.Errorf("Expected field in output, got: %s", output)
	}

	// Parent logger must not gain the field.
	buf.Reset()
	logger.Info("plain")
	if strings.Contains(buf.String(), "document=") {
		t.Error("Parent logger should not carry child fields")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf})

	logger.WithComponent("coordinator").Info("request issued")

	if !strings.Contains(buf.String(), "component=coordinator") {
		t.Errorf("Expected component field, got: %s", buf.String())
	}
}

func TestLogger_FieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf})

	logger.WithField("zeta", 1).WithField("alpha", 2).Info("msg")

	output := buf.String()
	alphaIdx := strings.Index(output, "alpha=")
	zetaIdx := strings.Index(output, "zeta=")
	if alphaIdx < 0 || zetaIdx < 0 || alphaIdx > zetaIdx {
		t.Errorf("Expected sorted field output, got: %s", output)
	}
}

func TestLogger_FormatArgs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf, Prefix: "p"})

	logger.Info("version %d of %s", 3, "a.py")

	if !strings.Contains(buf.String(), "version 3 of a.py") {
		t.Errorf("Expected formatted message, got: %s", buf.String())
	}
}

func TestNop_Discards(t *testing.T) {
	// Must not panic with a nil writer.
	Nop.Info("nothing")
	Nop.Error("still nothing")
}
