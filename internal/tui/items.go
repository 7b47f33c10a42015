package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"sharezone-cli/internal/view"
)

type spaceItem struct {
	view.SpaceItem
}

func (i spaceItem) Title() string {
	if i.Active {
		return "● " + i.Name
	}
	return i.Name
}

func (i spaceItem) Description() string {
	return "created " + i.Created + "   expires " + i.Expires
}

func (i spaceItem) FilterValue() string { return strings.TrimSpace(i.Name) }

type fileItem struct {
	view.FileItem
}

func (i fileItem) Title() string {
	t := i.Icon + " " + i.Summary
	if i.Active {
		t = "● " + t
	}
	return t
}

func (i fileItem) Description() string { return i.Created }

func (i fileItem) FilterValue() string { return strings.TrimSpace(i.Summary) }

func spaceItems(l view.SpaceList) []list.Item {
	items := make([]list.Item, 0, len(l.Items))
	for _, it := range l.Items {
		items = append(items, spaceItem{it})
	}
	return items
}

func fileItems(l view.FileList) []list.Item {
	items := make([]list.Item, 0, len(l.Items))
	for _, it := range l.Items {
		items = append(items, fileItem{it})
	}
	return items
}

func itemID(it list.Item) int64 {
	switch v := it.(type) {
	case spaceItem:
		return v.ID
	case fileItem:
		return v.ID
	}
	return 0
}

// setItemsKeepCursor replaces the items of l and puts the cursor back on
// prefer, or on the item that was under it before, when still present.
func setItemsKeepCursor(l *list.Model, items []list.Item, prefer int64) {
	var prev int64
	if it := l.SelectedItem(); it != nil {
		prev = itemID(it)
	}
	l.SetItems(items)
	for _, want := range []int64{prefer, prev} {
		if want == 0 {
			continue
		}
		for idx, it := range items {
			if itemID(it) == want {
				l.Select(idx)
				return
			}
		}
	}
	if l.Index() >= len(items) && len(items) > 0 {
		l.Select(len(items) - 1)
	}
}

func newList(title string, items []list.Item) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	// The app draws its own header and footer.
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(true)
	// ESC cancels in this app; the list must not quit on it.
	l.KeyMap.Quit.SetKeys("q")
	l.KeyMap.ForceQuit.SetKeys()

	cursorUpKeys := append([]string{}, l.KeyMap.CursorUp.Keys()...)
	cursorUpKeys = append(cursorUpKeys, "ctrl+p")
	l.KeyMap.CursorUp.SetKeys(cursorUpKeys...)

	cursorDownKeys := append([]string{}, l.KeyMap.CursorDown.Keys()...)
	cursorDownKeys = append(cursorDownKeys, "ctrl+n")
	l.KeyMap.CursorDown.SetKeys(cursorDownKeys...)
	return l
}
