package tui

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"sharezone-cli/internal/session"
)

func TestPasteItems_ExistingPathsBecomeUploads(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "my notes.md")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	items := PasteItems(a + "\n'" + b + "'\n")
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	for i, want := range []string{"a.txt", "my notes.md"} {
		if items[i].Kind != session.PasteFile || items[i].File == nil || items[i].File.Name != want {
			t.Fatalf("item %d = %+v", i, items[i])
		}
	}
}

func TestPasteItems_TextWhenAnyLineIsNotAFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(a, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	in := a + "\nsome words"
	items := PasteItems(in)
	if len(items) != 1 || items[0].Kind != session.PasteString || items[0].Text != in {
		t.Fatalf("items = %+v", items)
	}

	// Directories are not uploads either.
	items = PasteItems(dir)
	if len(items) != 1 || items[0].Kind != session.PasteString {
		t.Fatalf("dir items = %+v", items)
	}
}

func TestSplitShellWords(t *testing.T) {
	cases := map[string][]string{
		"vim":                    {"vim"},
		"code --wait":            {"code", "--wait"},
		`"/opt/My Editor/ed" -n`: {"/opt/My Editor/ed", "-n"},
		`emacs\ client -t`:       {"emacs client", "-t"},
		"  ":                     nil,
	}
	for in, want := range cases {
		if got := splitShellWords(in); !reflect.DeepEqual(got, want) {
			t.Fatalf("splitShellWords(%q) = %#v, want %#v", in, got, want)
		}
	}
}
