package tui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type externalEditorDoneMsg struct {
	err error
}

func externalEditorName() string {
	if v := strings.TrimSpace(os.Getenv("VISUAL")); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("EDITOR")); v != "" {
		return v
	}
	return "vi"
}

// editorCommand builds the command that edits path with the user's editor.
func editorCommand(path string) *exec.Cmd {
	args := splitShellWords(externalEditorName())
	if len(args) == 0 {
		args = []string{"vi"}
	}
	return exec.Command(args[0], append(args[1:], path)...)
}

func (m *appModel) openExternalEditorForTextarea() (tea.Cmd, error) {
	f, err := os.CreateTemp("", "sharezone-*.txt")
	if err != nil {
		return nil, err
	}
	path := f.Name()

	if _, err := f.WriteString(m.textarea.Value()); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	_ = f.Close()

	m.externalEditorPath = path
	m.externalEditorBefore = m.textarea.Value()

	return tea.ExecProcess(editorCommand(path), func(err error) tea.Msg {
		return externalEditorDoneMsg{err: err}
	}), nil
}

func (m *appModel) applyExternalEditorResult(msg externalEditorDoneMsg) {
	path := m.externalEditorPath
	before := m.externalEditorBefore

	m.externalEditorPath = ""
	m.externalEditorBefore = ""
	if strings.TrimSpace(path) == "" {
		return
	}
	defer func() { _ = os.Remove(path) }()

	if msg.err != nil {
		m.showMinibuffer("Editor failed: " + msg.err.Error())
		return
	}

	b, err := os.ReadFile(path)
	if err != nil {
		m.showMinibuffer("Editor read failed: " + err.Error())
		return
	}

	after := string(b)
	m.textarea.SetValue(after)

	if strings.TrimSpace(after) == strings.TrimSpace(before) {
		m.showMinibuffer(fmt.Sprintf("No changes from %s", externalEditorName()))
		return
	}
	m.showMinibuffer(fmt.Sprintf("Updated from %s (ctrl+s to save)", externalEditorName()))
}

// EditText opens text in the user's editor on the given terminal streams and
// returns the saved result.
func EditText(text string, stdin io.Reader, stdout, stderr io.Writer) (string, error) {
	f, err := os.CreateTemp("", "sharezone-*.txt")
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := f.WriteString(text); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	c := editorCommand(path)
	c.Stdin, c.Stdout, c.Stderr = stdin, stdout, stderr
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("%s: %w", externalEditorName(), err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// splitShellWords splits an $EDITOR value such as `code --wait` into argv,
// honoring single and double quotes and backslash escapes.
func splitShellWords(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	flush := func() {
		if inWord {
			out = append(out, cur.String())
			cur.Reset()
			inWord = false
		}
	}
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
			inWord = true
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n':
			flush()
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	flush()
	return out
}
