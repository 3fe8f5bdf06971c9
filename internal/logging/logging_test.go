package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	log.Info("dropped")
	log.Warn("kept")
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["msg"] != "kept" || entry["level"] != "warn" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct{ level, format string }{
		{"loud", "json"},
		{"info", "xml"},
	}
	for _, tt := range tests {
		if _, err := New(tt.level, tt.format, &bytes.Buffer{}); err == nil {
			t.Errorf("New(%q, %q) should fail", tt.level, tt.format)
		}
	}
}
