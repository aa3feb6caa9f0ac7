package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func capture(t *testing.T, l Level, f string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := GetLevel()
	SetOutput(&buf)
	SetLevel(l)
	SetFormat(f)
	t.Cleanup(func() {
		SetFormat("text")
		SetOutput(nil)
		SetLevel(prev)
	})
	return &buf
}

func TestSetFormat_JSON(t *testing.T) {
	buf := capture(t, LevelInfo, "json")

	Info("read %d rows from %s", 3, "a.csv")

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry); err != nil {
		t.Fatalf("invalid JSON output: %v\nOutput: %s", err, buf.String())
	}
	if _, ok := entry["ts"]; !ok {
		t.Error("missing 'ts' field in JSON log")
	}
	if entry["level"] != "info" {
		t.Errorf("expected level='info', got %v", entry["level"])
	}
	if entry["msg"] != "read 3 rows from a.csv" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
}

func TestSetFormat_Text(t *testing.T) {
	buf := capture(t, LevelInfo, "text")

	Warn("destination %s missing", "staging.csv_df")

	output := buf.String()
	if !strings.Contains(output, "[WARN]") {
		t.Errorf("expected [WARN] in text output: %s", output)
	}
	if !strings.Contains(output, "destination staging.csv_df missing") {
		t.Errorf("expected message in output: %s", output)
	}
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, LevelWarn, "text")

	Debug("hidden")
	Info("hidden")
	Error("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("messages below warn were written: %s", output)
	}
	if !strings.Contains(output, "shown") {
		t.Errorf("error message missing: %s", output)
	}
}

func TestMessageWithoutArgsIsNotFormatted(t *testing.T) {
	buf := capture(t, LevelInfo, "text")

	Info("100% done")

	if !strings.Contains(buf.String(), "100% done") {
		t.Errorf("literal message was mangled: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"DEBUG", LevelDebug, false},
		{"Warning", LevelWarn, false},
		{"", LevelInfo, true},
		{"trace", LevelInfo, true},
		{"INFO ", LevelInfo, true},
		{" info", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseLevel(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("ParseLevel(%q) unexpected error: %v", tt.input, err)
			}
			if level != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, level, tt.expected)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
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
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.level.String(); got != tt.expected {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.expected)
			}
		})
	}
}

func TestIsDebug(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	SetLevel(LevelDebug)
	if !IsDebug() {
		t.Error("IsDebug() = false at debug level")
	}
	SetLevel(LevelInfo)
	if IsDebug() {
		t.Error("IsDebug() = true at info level")
	}
}
