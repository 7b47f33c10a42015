package main

import (
	"os"
	"strconv"
	"strings"

	"sharezone-cli/internal/cli"
)

// spaceShortcutID parses "space-<id>".
func spaceShortcutID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "space-") {
		return "", false
	}
	id := strings.TrimPrefix(s, "space-")
	if n, err := strconv.ParseInt(id, 10, 64); err != nil || n <= 0 {
		return "", false
	}
	return id, true
}

func rewriteSpaceShortcutArgs(argv []string) []string {
	// Convenience: `sharezone space-12` works like `sharezone files list --space 12`.
	//
	// Cobra treats the first non-flag token as a subcommand, so we rewrite argv before parsing.
	// Persistent flags may come first (e.g. `sharezone --server ... space-12`), so we look for
	// the first positional token, not just argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--server":    true,
		"--config":    true,
		"--state-dir": true,
		"--log-level": true,
		"--timeout":   true,
		"--space":     true,
		"--format":    true,
	}

	rewrite := func(i int, id string) []string {
		out := make([]string, 0, len(argv)+3)
		out = append(out, argv[:i]...)
		out = append(out, "files", "list", "--space", id)
		out = append(out, argv[i+1:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}
		if id, ok := spaceShortcutID(a); ok {
			return rewrite(i, id)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteSpaceShortcutArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
