package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"sharezone-cli/internal/session"
)

type modal int

const (
	modalNone modal = iota
	modalCreateSpace
	modalEnterSpace
	modalSubmitText
	modalEditText
	modalPickFile
	modalConfirmDeleteFile
	modalConfirmDeleteSpace
)

// taskDoneMsg reports the end of a background action.
type taskDoneMsg struct {
	id    int
	label string
	err   error
	note  string
}

type runningTask struct {
	label  string
	cancel context.CancelFunc
}

const minibufferTTL = 4 * time.Second

type appModel struct {
	ctx  context.Context
	page *session.Page
	opts Options
	log  logrus.FieldLogger

	width  int
	height int

	keys keyMap
	help help.Model
	spin spinner.Model

	tasks    map[int]runningTask
	nextTask int
	startup  tea.Cmd
	// modalTask is the task whose success closes the open modal.
	modalTask int

	snap session.State

	spacesList list.Model
	filesList  list.Model
	preview    viewport.Model
	previewFor int64
	markdown   bool

	password textinput.Model
	name     textinput.Model
	spacePw  textinput.Model
	textarea textarea.Model
	picker   filepicker.Model
	lastDir  string

	modal        modal
	confirmFocus confirmModalFocus
	pendingFile  int64

	minibuffer   string
	minibufferAt time.Time

	externalEditorPath   string
	externalEditorBefore string
}

func newAppModel(ctx context.Context, page *session.Page, opts Options) appModel {
	log := opts.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	pw := textinput.New()
	pw.Placeholder = "system password"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.Prompt = "› "
	pw.Focus()

	name := textinput.New()
	name.Placeholder = "space name"
	name.Prompt = "› "
	name.CharLimit = 100

	spacePw := textinput.New()
	spacePw.Placeholder = "space password"
	spacePw.EchoMode = textinput.EchoPassword
	spacePw.EchoCharacter = '•'
	spacePw.Prompt = "› "

	ta := textarea.New()
	ta.Placeholder = "Type or paste text…"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(colorAccent)

	h := help.New()

	snap := page.Snapshot()
	m := appModel{
		ctx:        ctx,
		page:       page,
		opts:       opts,
		log:        log,
		keys:       defaultKeyMap(),
		help:       h,
		spin:       sp,
		tasks:      map[int]runningTask{},
		snap:       snap,
		spacesList: newList("Spaces", spaceItems(snap.Spaces)),
		filesList:  newList("Files", fileItems(snap.Files)),
		preview:    viewport.New(0, 0),
		markdown:   true,
		password:   pw,
		name:       name,
		spacePw:    spacePw,
		textarea:   ta,
	}
	m.startup = m.startupTask()
	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.startup)
}

// startupTask checks the stored session, then opens the start space or the
// space list. It is registered at construction since Init cannot mutate the
// model.
func (m *appModel) startupTask() tea.Cmd {
	page, start := m.page, m.opts.StartSpace
	return m.run("Checking session", func(ctx context.Context) error {
		ok, err := page.Verify(ctx)
		if err != nil || !ok {
			return err
		}
		if start > 0 {
			return page.OpenSpace(ctx, start)
		}
		return page.LoadSpaces(ctx)
	})
}

// run starts fn as a cancellable background task. Its completion arrives as a
// taskDoneMsg; esc cancels every task still running.
func (m *appModel) run(label string, fn func(ctx context.Context) error) tea.Cmd {
	m.nextTask++
	id := m.nextTask
	ctx, cancel := context.WithCancel(m.ctx)
	m.tasks[id] = runningTask{label: label, cancel: cancel}
	work := func() tea.Msg {
		return taskDoneMsg{id: id, label: label, err: fn(ctx)}
	}
	if len(m.tasks) == 1 {
		return tea.Batch(work, m.spin.Tick)
	}
	return work
}

// runNote is run for tasks that report a result line instead of a notice.
func (m *appModel) runNote(label string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	m.nextTask++
	id := m.nextTask
	ctx, cancel := context.WithCancel(m.ctx)
	m.tasks[id] = runningTask{label: label, cancel: cancel}
	work := func() tea.Msg {
		note, err := fn(ctx)
		return taskDoneMsg{id: id, label: label, err: err, note: note}
	}
	if len(m.tasks) == 1 {
		return tea.Batch(work, m.spin.Tick)
	}
	return work
}

func (m *appModel) cancelAll() {
	for id, t := range m.tasks {
		t.cancel()
		delete(m.tasks, id)
	}
}

func (m *appModel) busy() bool { return len(m.tasks) > 0 }

func (m *appModel) showMinibuffer(s string) {
	m.minibuffer = s
	m.minibufferAt = time.Now()
}

// sync pulls a fresh snapshot from the page and rebuilds everything derived
// from it.
func (m *appModel) sync() {
	prev := m.snap
	m.snap = m.page.Snapshot()

	if m.snap.SpaceID != 0 && m.snap.SpaceID != prev.SpaceID && m.opts.OnSpace != nil {
		m.opts.OnSpace(m.snap.SpaceID)
	}
	if m.snap.Route == session.RouteLogin && prev.Route != session.RouteLogin {
		m.modal = modalNone
		m.password.Reset()
		m.password.Focus()
	}

	setItemsKeepCursor(&m.spacesList, spaceItems(m.snap.Spaces), m.snap.SpaceID)
	setItemsKeepCursor(&m.filesList, fileItems(m.snap.Files), m.snap.SelectedFileID)
	m.renderPreview()
}

func (m *appModel) renderPreview() {
	w := m.preview.Width
	if w <= 0 {
		w = 40
	}
	id := m.snap.Preview.FileID
	m.preview.SetContent(previewContent(m.snap.Preview, w, m.markdown))
	if id != m.previewFor {
		m.preview.GotoTop()
		m.previewFor = id
	}
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.renderPreview()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case taskDoneMsg:
		return m.finishTask(msg)

	case externalEditorDoneMsg:
		m.applyExternalEditorResult(msg)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancelAll()
			return m, tea.Quit
		}
		if m.modal != modalNone {
			return m.updateModal(msg)
		}
		if m.snap.Route == session.RouteLogin {
			return m.updateLogin(msg)
		}
		return m.updateMain(msg)
	}

	if m.modal == modalPickFile {
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m appModel) finishTask(msg taskDoneMsg) (tea.Model, tea.Cmd) {
	if t, ok := m.tasks[msg.id]; ok {
		t.cancel()
		delete(m.tasks, msg.id)
	}
	m.sync()

	err := msg.err
	switch {
	case err == nil:
		if msg.note != "" {
			m.showMinibuffer(msg.note)
		}
		if msg.id == m.modalTask {
			m.closeModal()
		}
	case errors.Is(err, context.Canceled):
		m.showMinibuffer(msg.label + " cancelled")
	case errors.Is(err, session.ErrNoSpace),
		errors.Is(err, session.ErrNoSelection),
		errors.Is(err, session.ErrNotEditable),
		errors.Is(err, session.ErrPasswordRequired):
		m.showMinibuffer(err.Error())
	default:
		m.log.WithField("task", msg.label).WithError(err).Debug("task finished with error")
	}
	if msg.id == m.modalTask {
		m.modalTask = 0
	}
	return m, nil
}

func (m appModel) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		pw := m.password.Value()
		m.password.Reset()
		return m, m.run("Logging in", func(ctx context.Context) error {
			return m.page.Login(ctx, pw)
		})
	case "esc":
		if m.busy() {
			m.cancelAll()
			return m, nil
		}
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.password, cmd = m.password.Update(msg)
	return m, cmd
}

func (m *appModel) activeList() *list.Model {
	if m.snap.Route == session.RouteSpace {
		return &m.filesList
	}
	return &m.spacesList
}

func (m appModel) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While filtering, the list owns the keyboard.
	if l := m.activeList(); l.FilterState() == list.Filtering {
		var cmd tea.Cmd
		*l, cmd = l.Update(msg)
		return m, cmd
	}

	if msg.Paste {
		return m, m.paste(string(msg.Runes))
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancelAll()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Cancel):
		if m.busy() {
			m.cancelAll()
			return m, nil
		}
		if l := m.activeList(); l.FilterState() == list.FilterApplied {
			l.ResetFilter()
		}
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.layout()
		return m, nil
	case key.Matches(msg, m.keys.Logout):
		return m, m.run("Logging out", m.page.Logout)
	case key.Matches(msg, m.keys.NewSpace):
		m.openModal(modalCreateSpace)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.EnterSpace):
		m.openModal(modalEnterSpace)
		return m, textinput.Blink
	}

	if m.snap.Route == session.RouteSpace {
		if cmd, ok := m.updateSpace(msg); ok {
			return m, cmd
		}
	} else {
		switch {
		case key.Matches(msg, m.keys.Open):
			if it, ok := m.spacesList.SelectedItem().(spaceItem); ok {
				id := it.ID
				return m, m.run("Opening space", func(ctx context.Context) error {
					return m.page.OpenSpace(ctx, id)
				})
			}
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, m.run("Loading spaces", m.page.LoadSpaces)
		}
	}

	var cmd tea.Cmd
	l := m.activeList()
	*l, cmd = l.Update(msg)
	return m, cmd
}

// updateSpace handles keys that only apply inside a space. ok is false when
// the key should fall through to the list.
func (m *appModel) updateSpace(msg tea.KeyMsg) (tea.Cmd, bool) {
	page := m.page
	switch {
	case key.Matches(msg, m.keys.Open):
		it, ok := m.filesList.SelectedItem().(fileItem)
		if !ok {
			return nil, true
		}
		id := it.ID
		return m.run("Loading file", func(ctx context.Context) error {
			return page.SelectFile(ctx, id)
		}), true

	case key.Matches(msg, m.keys.Back):
		return m.run("Loading spaces", page.GoHome), true

	case key.Matches(msg, m.keys.Refresh):
		return m.run("Loading files", func(ctx context.Context) error {
			// Touch failures are logged by the page and never block the refresh.
			_ = page.TouchSpace(ctx)
			return page.LoadFiles(ctx)
		}), true

	case key.Matches(msg, m.keys.PrevSpace), key.Matches(msg, m.keys.NextSpace):
		step := 1
		if key.Matches(msg, m.keys.PrevSpace) {
			step = -1
		}
		id := neighbourSpace(m.snap, step)
		if id == 0 {
			return nil, true
		}
		return m.run("Opening space", func(ctx context.Context) error {
			return page.OpenSpace(ctx, id)
		}), true

	case key.Matches(msg, m.keys.Extend):
		return m.run("Extending space", func(ctx context.Context) error {
			_, err := page.ExtendSpace(ctx, session.DefaultExtendHours)
			return err
		}), true

	case key.Matches(msg, m.keys.DeleteSpace):
		m.openModal(modalConfirmDeleteSpace)
		return nil, true

	case key.Matches(msg, m.keys.Text):
		m.openModal(modalSubmitText)
		return textarea.Blink, true

	case key.Matches(msg, m.keys.Upload):
		return m.openFilePicker(), true

	case key.Matches(msg, m.keys.Paste):
		s, err := readClipboard()
		if err != nil {
			m.showMinibuffer("Clipboard unavailable: " + err.Error())
			return nil, true
		}
		return m.paste(s), true

	case key.Matches(msg, m.keys.Edit):
		if err := page.BeginEdit(); err != nil {
			m.showMinibuffer(err.Error())
			return nil, true
		}
		m.sync()
		m.openModal(modalEditText)
		m.textarea.SetValue(m.snap.Draft)
		return textarea.Blink, true

	case key.Matches(msg, m.keys.Delete):
		it, ok := m.filesList.SelectedItem().(fileItem)
		if !ok {
			return nil, true
		}
		m.pendingFile = it.ID
		m.openModal(modalConfirmDeleteFile)
		return nil, true

	case key.Matches(msg, m.keys.Download):
		id := m.cursorFileID()
		if id == 0 {
			m.showMinibuffer(session.ErrNoSelection.Error())
			return nil, true
		}
		dir := m.opts.DownloadDir
		return m.runNote("Downloading", func(ctx context.Context) (string, error) {
			path, err := page.DownloadTo(ctx, id, dir)
			if err != nil {
				return "", err
			}
			return "Saved " + path, nil
		}), true

	case key.Matches(msg, m.keys.Copy):
		text, ok := page.SelectedText()
		if !ok {
			m.showMinibuffer("Select a text item to copy")
			return nil, true
		}
		if err := copyToClipboard(text); err != nil {
			m.showMinibuffer("Copy failed: " + err.Error())
			return nil, true
		}
		m.showMinibuffer("Copied to clipboard")
		return nil, true

	case key.Matches(msg, m.keys.Markdown):
		m.markdown = !m.markdown
		m.renderPreview()
		if m.markdown {
			m.showMinibuffer("Markdown rendering on")
		} else {
			m.showMinibuffer("Markdown rendering off")
		}
		return nil, true

	case msg.String() == "pgup", msg.String() == "pgdown":
		var cmd tea.Cmd
		m.preview, cmd = m.preview.Update(msg)
		return cmd, true
	}
	return nil, false
}

// cursorFileID prefers the previewed file, then the row under the cursor.
func (m *appModel) cursorFileID() int64 {
	if m.snap.SelectedFileID != 0 {
		return m.snap.SelectedFileID
	}
	if it, ok := m.filesList.SelectedItem().(fileItem); ok {
		return it.ID
	}
	return 0
}

func neighbourSpace(snap session.State, step int) int64 {
	items := snap.Spaces.Items
	if len(items) == 0 {
		return 0
	}
	cur := -1
	for i, it := range items {
		if it.ID == snap.SpaceID {
			cur = i
			break
		}
	}
	next := (cur + step + len(items)) % len(items)
	if cur < 0 && step < 0 {
		next = len(items) - 1
	}
	if items[next].ID == snap.SpaceID {
		return 0
	}
	return items[next].ID
}

func (m *appModel) paste(s string) tea.Cmd {
	if m.snap.Route != session.RouteSpace {
		m.showMinibuffer("Open a space to paste into it")
		return nil
	}
	items := PasteItems(s)
	page := m.page
	return m.runNote("Pasting", func(ctx context.Context) (string, error) {
		res, err := page.HandlePaste(ctx, items)
		switch {
		case res.Uploaded > 1:
			return fmt.Sprintf("Uploaded %d files", res.Uploaded), err
		case !res.TextSubmitted && res.Uploaded == 0 && err == nil:
			return "Nothing to paste", nil
		}
		return "", err
	})
}

func (m *appModel) openModal(md modal) {
	m.page.ClearErrors()
	m.snap = m.page.Snapshot()
	m.modal = md
	m.confirmFocus = confirmFocusCancel
	switch md {
	case modalCreateSpace:
		m.name.Reset()
		m.spacePw.Reset()
		m.name.Focus()
		m.spacePw.Blur()
	case modalEnterSpace:
		m.spacePw.Reset()
		m.spacePw.Focus()
	case modalSubmitText:
		m.textarea.Reset()
		m.textarea.Focus()
	case modalEditText:
		m.textarea.Focus()
	}
	m.layout()
}

func (m *appModel) closeModal() {
	switch m.modal {
	case modalCreateSpace, modalEnterSpace:
		m.name.Blur()
		m.spacePw.Blur()
		m.name.Reset()
		m.spacePw.Reset()
	case modalSubmitText, modalEditText:
		m.textarea.Blur()
	}
	m.modal = modalNone
	m.pendingFile = 0
}

func (m appModel) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := m.page
	switch m.modal {
	case modalConfirmDeleteFile, modalConfirmDeleteSpace:
		switch msg.String() {
		case "tab", "shift+tab", "left", "right", "h", "l":
			m.confirmFocus = m.confirmFocus.toggle()
			return m, nil
		case "esc", "ctrl+g", "n":
			m.closeModal()
			return m, nil
		case "y":
			m.confirmFocus = confirmFocusConfirm
			fallthrough
		case "enter":
			if m.confirmFocus != confirmFocusConfirm {
				m.closeModal()
				return m, nil
			}
			if m.modal == modalConfirmDeleteSpace {
				m.closeModal()
				return m, m.run("Deleting space", page.DeleteSpace)
			}
			id := m.pendingFile
			m.closeModal()
			return m, m.run("Deleting file", func(ctx context.Context) error {
				// Already confirmed in the modal.
				_, err := page.DeleteFile(ctx, id, session.Yes)
				return err
			})
		}
		return m, nil

	case modalCreateSpace:
		switch msg.String() {
		case "esc", "ctrl+g":
			m.closeModal()
			return m, nil
		case "tab", "shift+tab", "down", "up":
			if m.name.Focused() {
				m.name.Blur()
				m.spacePw.Focus()
			} else {
				m.spacePw.Blur()
				m.name.Focus()
			}
			return m, textinput.Blink
		case "enter":
			if m.name.Focused() {
				m.name.Blur()
				m.spacePw.Focus()
				return m, textinput.Blink
			}
			name, pw := m.name.Value(), m.spacePw.Value()
			cmd := m.run("Creating space", func(ctx context.Context) error {
				_, err := page.CreateSpace(ctx, name, pw)
				return err
			})
			m.modalTask = m.nextTask
			return m, cmd
		}
		var cmd tea.Cmd
		if m.name.Focused() {
			m.name, cmd = m.name.Update(msg)
		} else {
			m.spacePw, cmd = m.spacePw.Update(msg)
		}
		return m, cmd

	case modalEnterSpace:
		switch msg.String() {
		case "esc", "ctrl+g":
			m.closeModal()
			return m, nil
		case "enter":
			pw := m.spacePw.Value()
			cmd := m.run("Entering space", func(ctx context.Context) error {
				_, err := page.EnterSpace(ctx, pw)
				return err
			})
			m.modalTask = m.nextTask
			return m, cmd
		}
		var cmd tea.Cmd
		m.spacePw, cmd = m.spacePw.Update(msg)
		return m, cmd

	case modalSubmitText, modalEditText:
		switch msg.String() {
		case "esc", "ctrl+g":
			editing := m.modal == modalEditText
			m.closeModal()
			if editing {
				return m, m.run("Cancelling edit", page.CancelEdit)
			}
			return m, nil
		case "ctrl+e":
			cmd, err := m.openExternalEditorForTextarea()
			if err != nil {
				m.showMinibuffer("Editor failed: " + err.Error())
				return m, nil
			}
			return m, cmd
		case "ctrl+s":
			text := m.textarea.Value()
			if m.modal == modalEditText {
				page.SetDraft(text)
				cmd := m.run("Saving", func(ctx context.Context) error {
					return page.SaveText(ctx, text)
				})
				m.modalTask = m.nextTask
				return m, cmd
			}
			if strings.TrimSpace(text) == "" {
				m.showMinibuffer("Nothing to submit")
				return m, nil
			}
			cmd := m.run("Submitting", func(ctx context.Context) error {
				_, err := page.SubmitText(ctx, text)
				return err
			})
			m.modalTask = m.nextTask
			return m, cmd
		}
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		if m.modal == modalEditText {
			page.SetDraft(m.textarea.Value())
		}
		return m, cmd

	case modalPickFile:
		if msg.String() == "esc" || msg.String() == "ctrl+g" {
			m.closeModal()
			return m, nil
		}
		var cmd tea.Cmd
		m.picker, cmd = m.picker.Update(msg)
		if ok, path := m.picker.DidSelectFile(msg); ok {
			m.lastDir = m.picker.CurrentDirectory
			m.closeModal()
			u, err := session.UploadFromPath(path)
			if err != nil {
				m.showMinibuffer("Upload failed: " + err.Error())
				return m, nil
			}
			return m, tea.Batch(cmd, m.run("Uploading "+u.Name, func(ctx context.Context) error {
				_, err := page.Upload(ctx, u)
				return err
			}))
		}
		return m, cmd
	}
	return m, nil
}

func (m *appModel) openFilePicker() tea.Cmd {
	fp := filepicker.New()
	fp.AllowedTypes = nil
	fp.FileAllowed = true
	fp.DirAllowed = false
	fp.ShowHidden = false
	fp.ShowPermissions = false
	fp.ShowSize = true
	fp.AutoHeight = false
	fp.Height = filePickerHeight(m.height)
	fp.Cursor = "›"
	fp.KeyMap.Back = key.NewBinding(
		key.WithKeys("h", "backspace", "left"),
		key.WithHelp("h", "up"),
	)

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(colorAccent)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(colorAccent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(colorAccent)
	fp.Styles.DisabledFile = styleMuted()
	fp.Styles.DisabledSelected = styleMuted()
	fp.Styles.FileSize = styleMuted().Width(fp.Styles.FileSize.GetWidth()).Align(lipgloss.Right)

	startDir := strings.TrimSpace(m.lastDir)
	if startDir == "" {
		if wd, err := os.Getwd(); err == nil {
			startDir = wd
		}
	}
	if startDir == "" {
		startDir = "."
	}
	fp.CurrentDirectory = startDir

	m.picker = fp
	m.modal = modalPickFile
	return fp.Init()
}

func filePickerHeight(screenH int) int {
	h := screenH - 14
	if h < 5 {
		h = 5
	}
	if h > 20 {
		h = 20
	}
	return h
}
