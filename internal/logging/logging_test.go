package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_JSONToWriter(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "debug", Format: "json", Out: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer.Close()

	log.WithField("op", "GET /api/spaces").Debug("request done")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", buf.String(), err)
	}
	if entry["op"] != "GET /api/spaces" || entry["msg"] != "request done" {
		t.Fatalf("entry=%v", entry)
	}
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, _, err := New(Options{Level: "chatty", Out: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("hidden")
	log.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("output=%q", buf.String())
	}
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sharezone.log")
	log, closer, err := New(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), "to file") {
		t.Fatalf("log file=%q", b)
	}
}
