package main

import (
	"reflect"
	"testing"
)

func TestRewriteSpaceShortcutArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"sharezone"},
			want: []string{"sharezone"},
		},
		{
			name: "shortcut first token",
			in:   []string{"sharezone", "space-12"},
			want: []string{"sharezone", "files", "list", "--space", "12"},
		},
		{
			name: "shortcut after value flag",
			in:   []string{"sharezone", "--server", "http://localhost:3333", "space-12"},
			want: []string{"sharezone", "--server", "http://localhost:3333", "files", "list", "--space", "12"},
		},
		{
			name: "shortcut after equals flag",
			in:   []string{"sharezone", "--format=text", "space-12"},
			want: []string{"sharezone", "--format=text", "files", "list", "--space", "12"},
		},
		{
			name: "shortcut after bool flag keeps trailing flags",
			in:   []string{"sharezone", "--pretty", "space-12", "--format", "text"},
			want: []string{"sharezone", "--pretty", "files", "list", "--space", "12", "--format", "text"},
		},
		{
			name: "non-numeric id not rewritten",
			in:   []string{"sharezone", "space-notes"},
			want: []string{"sharezone", "space-notes"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"sharezone", "files", "show", "3"},
			want: []string{"sharezone", "files", "show", "3"},
		},
		{
			name: "after double dash not rewritten",
			in:   []string{"sharezone", "--", "space-12"},
			want: []string{"sharezone", "--", "space-12"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteSpaceShortcutArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteSpaceShortcutArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
