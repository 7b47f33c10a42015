package tui

import (
	"context"
	"net/http/cookiejar"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"sharezone-cli/internal/api"
	"sharezone-cli/internal/api/apitest"
	"sharezone-cli/internal/session"
	"sharezone-cli/internal/view"
)

func newTestPage(t *testing.T, b *apitest.Backend) *session.Page {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	c, err := api.New(api.Config{BaseURL: b.URL(), Jar: jar})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	return session.New(c, session.Options{})
}

// newTestModel returns a sized model positioned in a fresh space.
func newTestModel(t *testing.T) (appModel, *apitest.Backend, int64) {
	t.Helper()
	b := apitest.New(t, "secret")
	p := newTestPage(t, b)
	ctx := context.Background()
	if err := p.Login(ctx, "secret"); err != nil {
		t.Fatalf("login: %v", err)
	}
	id := b.SeedSpace("notes", "pw")
	if err := p.OpenSpace(ctx, id); err != nil {
		t.Fatalf("open space: %v", err)
	}

	m := newAppModel(ctx, p, Options{})
	m.cancelAll()
	m.sync()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(appModel), b, id
}

func press(m appModel, k string) (appModel, tea.Cmd) {
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(appModel), cmd
}

// drain runs cmd and feeds every task result back into the model.
func drain(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	var msgs []tea.Msg
	var collect func(tea.Cmd)
	collect = func(c tea.Cmd) {
		if c == nil {
			return
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			for _, sub := range msg {
				collect(sub)
			}
		case taskDoneMsg:
			msgs = append(msgs, msg)
		}
	}
	collect(cmd)
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(appModel)
	}
	return m
}

func TestView_EmptySpaceShowsEmptyState(t *testing.T) {
	m, _, _ := newTestModel(t)
	out := m.View()
	if !strings.Contains(out, view.EmptyFiles) {
		t.Fatalf("expected %q in view:\n%s", view.EmptyFiles, out)
	}
	if !strings.Contains(out, view.PreviewPlaceholder) {
		t.Fatalf("expected placeholder in view:\n%s", out)
	}
}

func TestEnterSelectsFileAndShowsPreview(t *testing.T) {
	m, b, spaceID := newTestModel(t)
	b.SeedText(spaceID, "hello from the terminal")
	load := m.run("Loading files", m.page.LoadFiles)
	m = drain(t, m, load)

	m, cmd := press(m, "enter")
	m = drain(t, m, cmd)

	if m.snap.Preview.Kind != view.PreviewText {
		t.Fatalf("preview = %+v", m.snap.Preview)
	}
	if !strings.Contains(m.View(), "hello from the terminal") {
		t.Fatalf("preview text missing:\n%s", m.View())
	}
}

func TestDeleteAsksFirst(t *testing.T) {
	m, b, spaceID := newTestModel(t)
	b.SeedText(spaceID, "doomed")
	load := m.run("Loading files", m.page.LoadFiles)
	m = drain(t, m, load)

	m, _ = press(m, "x")
	if m.modal != modalConfirmDeleteFile {
		t.Fatalf("modal = %v", m.modal)
	}
	// Declining leaves the file alone.
	m, _ = press(m, "n")
	if m.modal != modalNone || b.FileCount(spaceID) != 1 {
		t.Fatalf("modal = %v, files = %d", m.modal, b.FileCount(spaceID))
	}

	m, _ = press(m, "x")
	m, cmd := press(m, "y")
	m = drain(t, m, cmd)
	if b.FileCount(spaceID) != 0 {
		t.Fatalf("file not deleted")
	}
	if !strings.Contains(m.View(), view.EmptyFiles) {
		t.Fatalf("expected empty list after delete:\n%s", m.View())
	}
}

func TestSubmitTextModal(t *testing.T) {
	m, b, spaceID := newTestModel(t)

	m, _ = press(m, "t")
	if m.modal != modalSubmitText {
		t.Fatalf("modal = %v", m.modal)
	}
	m.textarea.SetValue("a note")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = drain(t, next.(appModel), cmd)

	if got := b.Texts(spaceID); len(got) != 1 || got[0] != "a note" {
		t.Fatalf("texts = %v", got)
	}
	if m.modal != modalNone {
		t.Fatalf("modal still open")
	}
	if len(m.snap.Files.Items) != 1 {
		t.Fatalf("list not refreshed: %+v", m.snap.Files)
	}
}

func TestNeighbourSpaceWraps(t *testing.T) {
	snap := session.State{
		SpaceID: 3,
		Spaces: view.SpaceList{Items: []view.SpaceItem{
			{ID: 1}, {ID: 2}, {ID: 3},
		}},
	}
	if got := neighbourSpace(snap, 1); got != 1 {
		t.Fatalf("next = %d", got)
	}
	if got := neighbourSpace(snap, -1); got != 2 {
		t.Fatalf("prev = %d", got)
	}
	snap.Spaces.Items = snap.Spaces.Items[2:]
	if got := neighbourSpace(snap, 1); got != 0 {
		t.Fatalf("single space = %d", got)
	}
}
