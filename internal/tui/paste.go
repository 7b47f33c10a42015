package tui

import (
	"os"
	"path/filepath"
	"strings"

	"sharezone-cli/internal/session"
)

// PasteItems turns pasted terminal text into paste items. Terminals paste a
// dragged file as its path, so when every non-empty line names an existing
// regular file the paste is a file upload; anything else is plain text.
func PasteItems(s string) []session.PasteItem {
	var paths []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if words := splitShellWords(line); len(words) == 1 {
			line = words[0]
		}
		line = strings.TrimPrefix(line, "file://")
		if strings.HasPrefix(line, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				line = filepath.Join(home, line[2:])
			}
		}
		fi, err := os.Stat(line)
		if err != nil || !fi.Mode().IsRegular() {
			paths = nil
			break
		}
		paths = append(paths, line)
	}

	if len(paths) > 0 {
		items := make([]session.PasteItem, 0, len(paths))
		for _, p := range paths {
			u, err := session.UploadFromPath(p)
			if err != nil {
				return []session.PasteItem{session.TextItem(s)}
			}
			items = append(items, session.FileItem(u))
		}
		return items
	}
	return []session.PasteItem{session.TextItem(s)}
}
