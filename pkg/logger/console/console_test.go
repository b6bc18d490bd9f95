package console

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestConsoleLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{JSON: true, Output: &buf})
	l.Info("Document processed", "document", "ad-1", "chunks", 3)
	l.Debug("hidden below info")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not json: %q", lines[0])
	}
	if entry["msg"] != "Document processed" || entry["document"] != "ad-1" {
		t.Errorf("entry = %v", entry)
	}
}

func TestConsoleLoggerDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Debug: true, Output: &buf})
	l.Debug("chunk boundaries", "units", 4)
	if !strings.Contains(buf.String(), "chunk boundaries") {
		t.Errorf("debug line missing: %q", buf.String())
	}
}
