package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"sharezone-cli/internal/session"
	"sharezone-cli/internal/view"
)

const (
	sidebarWidth     = 24
	minSidebarScreen = 100
)

// layout sizes the lists and the preview for the current window.
func (m *appModel) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.help.Width = m.width
	bodyH := m.bodyHeight()

	m.spacesList.SetSize(m.width, bodyH)

	sideW := 0
	if m.width >= minSidebarScreen {
		sideW = sidebarWidth
	}
	rest := m.width - sideW
	listW := rest * 2 / 5
	previewW := rest - listW
	m.filesList.SetSize(listW, bodyH)

	// Pane border (2) plus horizontal padding (2).
	m.preview.Width = max(previewW-4, 10)
	m.preview.Height = max(bodyH-2, 3)

	m.textarea.SetWidth(modalBodyWidth(m.width))
	m.textarea.SetHeight(max(m.height/2-4, 5))
	m.name.Width = modalBodyWidth(m.width) - 4
	m.spacePw.Width = modalBodyWidth(m.width) - 4
	m.password.Width = 40
}

func (m *appModel) bodyHeight() int {
	h := m.height - 1 - 1 - lipgloss.Height(m.help.View(m.keys))
	if h < 3 {
		h = 3
	}
	return h
}

func (m appModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	if m.snap.Route == session.RouteLogin {
		return m.viewLogin()
	}

	var body string
	switch {
	case m.modal != modalNone:
		body = lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, m.viewModal())
	case m.snap.Route == session.RouteSpace:
		body = m.viewSpace()
	default:
		body = m.viewHome()
	}
	return strings.Join([]string{m.viewHeader(), body, m.viewStatus(), m.help.View(m.keys)}, "\n")
}

func (m appModel) viewHeader() string {
	crumb := styleTitle().Render("sharezone")
	crumb += styleChrome().Render(" › Spaces")
	if m.snap.Route == session.RouteSpace {
		name := m.snap.SpaceName
		if name == "" {
			name = fmt.Sprintf("space %d", m.snap.SpaceID)
		}
		crumb += styleChrome().Render(" › ") + lipgloss.NewStyle().Bold(true).Render(name)
	}

	right := styleMuted().Render(m.opts.Server)
	if m.busy() {
		right = m.spin.View() + " " + m.taskLabels()
	}
	gap := m.width - lipgloss.Width(crumb) - lipgloss.Width(right)
	if gap < 1 {
		return ansi.Truncate(crumb+" "+right, m.width, "…")
	}
	return crumb + strings.Repeat(" ", gap) + right
}

func (m appModel) taskLabels() string {
	labels := make([]string, 0, len(m.tasks))
	for id := 1; id <= m.nextTask; id++ {
		if t, ok := m.tasks[id]; ok {
			labels = append(labels, t.label)
		}
	}
	return strings.Join(labels, ", ") + "…"
}

// viewStatus shows the minibuffer while it is fresh, else the page notice.
func (m appModel) viewStatus() string {
	if m.minibuffer != "" && time.Since(m.minibufferAt) < minibufferTTL {
		return ansi.Truncate(styleMuted().Render(m.minibuffer), m.width, "…")
	}
	n := m.snap.Notice
	if n == nil {
		return ""
	}
	st := lipgloss.NewStyle().Foreground(colorAccent)
	switch n.Level {
	case session.LevelSuccess:
		st = lipgloss.NewStyle().Foreground(colorSuccess)
	case session.LevelError:
		st = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	}
	return ansi.Truncate(st.Render(n.Text), m.width, "…")
}

func (m appModel) viewLogin() string {
	lines := []string{
		styleTitle().Render("sharezone"),
		styleMuted().Render(m.opts.Server),
		"",
		"Password",
		m.password.View(),
	}
	if m.snap.LoginError != "" {
		lines = append(lines, "", lipgloss.NewStyle().Foreground(colorError).Render(m.snap.LoginError))
	}
	status := "enter: login   esc: quit"
	if m.busy() {
		status = m.spin.View() + " " + m.taskLabels()
	}
	lines = append(lines, "", styleMuted().Render(status))
	box := stylePane().Padding(1, 3).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m appModel) viewHome() string {
	if m.snap.Spaces.Empty != "" {
		msg := styleMuted().Render(m.snap.Spaces.Empty + "   n: new space   o: enter by password")
		return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, msg)
	}
	return m.spacesList.View()
}

func (m appModel) viewSpace() string {
	bodyH := m.bodyHeight()
	var cols []string
	if m.width >= minSidebarScreen {
		cols = append(cols, renderSidebar(m.snap.Spaces, sidebarWidth, bodyH))
	}

	listW := m.filesList.Width()
	files := m.filesList.View()
	if m.snap.Files.Empty != "" {
		files = lipgloss.Place(listW, bodyH, lipgloss.Center, lipgloss.Center, styleMuted().Render(m.snap.Files.Empty))
	}
	cols = append(cols, lipgloss.NewStyle().Width(listW).Height(bodyH).Render(files))

	preview := stylePane().
		Width(m.preview.Width + 2).
		Height(m.preview.Height).
		Render(m.preview.View())
	cols = append(cols, preview)
	return lipgloss.JoinHorizontal(lipgloss.Top, cols...)
}

func renderSidebar(l view.SpaceList, width, height int) string {
	var b strings.Builder
	b.WriteString(styleChrome().Render("SPACES"))
	b.WriteString("\n")
	if l.Empty != "" {
		b.WriteString(styleMuted().Render(l.Empty))
	}
	for _, it := range l.Items {
		name := ansi.Truncate(it.Name, width-3, "…")
		if it.Active {
			b.WriteString(styleActive().Width(width - 1).Render("› " + name))
		} else {
			b.WriteString("  " + name)
		}
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().Width(width).Height(height).Render(strings.TrimRight(b.String(), "\n"))
}

// previewContent renders the preview pane body for a view model.
func previewContent(vm view.PreviewVM, width int, markdown bool) string {
	muted := styleMuted()
	meta := func(parts ...string) string {
		var kept []string
		for _, p := range parts {
			if strings.TrimSpace(p) != "" {
				kept = append(kept, p)
			}
		}
		return muted.Width(width).Render(strings.Join(kept, " · "))
	}
	wrap := lipgloss.NewStyle().Width(width)

	switch vm.Kind {
	case view.PreviewText:
		body := vm.Content
		if markdown && view.LooksLikeMarkdown(body) {
			body = renderMarkdown(body, width)
		} else {
			body = wrap.Render(body)
		}
		return meta(view.Icon("text")+" Text", vm.Created, vm.Expires) + "\n\n" + body +
			"\n\n" + muted.Render("e: edit   c: copy   d: download")
	case view.PreviewImage:
		return meta(view.Icon("image")+" "+vm.Filename, vm.Created, vm.Expires) + "\n\n" +
			wrap.Render("Images cannot be shown in the terminal.") + "\n\n" +
			muted.Render("d: download")
	case view.PreviewInline:
		return meta(view.Icon("file")+" "+vm.Filename, vm.Created, vm.Expires) + "\n\n" +
			wrap.Render(vm.Content) + "\n\n" + muted.Render("c: copy   d: download")
	case view.PreviewOther:
		lines := []string{
			lipgloss.NewStyle().Bold(true).Render(view.Icon("file") + " " + vm.Filename),
			"",
			"Size     " + vm.Size,
			"Type     " + vm.MimeType,
			"Created  " + vm.Created,
		}
		if vm.Expires != "" {
			lines = append(lines, "Expires  "+vm.Expires)
		}
		return wrap.Render(strings.Join(lines, "\n")) + "\n\n" + muted.Render("d: download")
	}
	placeholder := vm.Placeholder
	if placeholder == "" {
		placeholder = view.PreviewPlaceholder
	}
	return muted.Render(placeholder)
}

func (m appModel) viewModal() string {
	switch m.modal {
	case modalConfirmDeleteFile:
		return renderConfirmModal(m.width, "Delete file", "Delete this file?", "Delete", "Cancel", m.confirmFocus)
	case modalConfirmDeleteSpace:
		body := "Delete this space and everything in it?"
		if m.snap.SpaceName != "" {
			body = fmt.Sprintf("Delete %q and everything in it?", m.snap.SpaceName)
		}
		return renderConfirmModal(m.width, "Delete space", body, "Delete", "Cancel", m.confirmFocus)
	case modalCreateSpace:
		return renderModalBox(m.width, "New space", m.formBody(m.snap.CreateError,
			"Name", m.name.View(), "Password", m.spacePw.View(), "",
			"tab: next field   enter: create   esc: cancel"))
	case modalEnterSpace:
		return renderModalBox(m.width, "Enter space", m.formBody(m.snap.EnterError,
			"Space password", m.spacePw.View(), "",
			"enter: open   esc: cancel"))
	case modalSubmitText:
		return renderModalBox(m.width, "New text", m.formBody("",
			m.textarea.View(), "",
			"ctrl+s: submit   ctrl+e: $EDITOR   esc: cancel"))
	case modalEditText:
		return renderModalBox(m.width, "Edit text", m.formBody("",
			m.textarea.View(), "",
			"ctrl+s: save   ctrl+e: $EDITOR   esc: cancel"))
	case modalPickFile:
		return renderModalBox(m.width, "Upload file", m.formBody("",
			styleMuted().Render(m.picker.CurrentDirectory), "",
			m.picker.View(), "",
			"enter: upload   h: up   esc: cancel"))
	}
	return ""
}

// formBody joins modal lines; the last line is rendered as help and errLine,
// when set, goes right above it.
func (m appModel) formBody(errLine string, lines ...string) string {
	if len(lines) == 0 {
		return ""
	}
	helpLine := lines[len(lines)-1]
	out := append([]string{}, lines[:len(lines)-1]...)
	if errLine != "" {
		out = append(out, lipgloss.NewStyle().Foreground(colorError).Render(errLine), "")
	}
	if m.busy() {
		helpLine = m.spin.View() + " " + m.taskLabels()
	}
	out = append(out, styleMuted().Render(helpLine))
	return strings.Join(out, "\n")
}
