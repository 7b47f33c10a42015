package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloadTo_DoesNotOverwrite(t *testing.T) {
	p, b, spaceID := loggedInSpace(t, Options{})
	id := b.SeedText(spaceID, "hello")
	dir := t.TempDir()
	ctx := context.Background()

	first, err := p.DownloadTo(ctx, id, dir)
	if err != nil {
		t.Fatalf("first download: %v", err)
	}
	second, err := p.DownloadTo(ctx, id, dir)
	if err != nil {
		t.Fatalf("second download: %v", err)
	}
	if first == second {
		t.Fatalf("second download overwrote %s", first)
	}
	if filepath.Base(first) != "text.txt" || filepath.Base(second) != "text (1).txt" {
		t.Fatalf("paths = %s, %s", first, second)
	}
	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("content = %q", data)
	}
}

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":         "report.pdf",
		"../../etc/passwd":   "passwd",
		"..\\windows\\x.txt": "x.txt",
		"..":                 "",
		"":                   "",
	}
	for in, want := range cases {
		if got := safeFilename(in); got != want {
			t.Fatalf("safeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
