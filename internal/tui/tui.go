// Package tui is the terminal front end: a Bubble Tea program driving a
// session.Page.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"sharezone-cli/internal/session"
)

type Options struct {
	// Server is shown in the header.
	Server string
	// DownloadDir receives files saved with "d". Empty means the working directory.
	DownloadDir string
	// StartSpace opens this space right after the session check (0 for home).
	StartSpace int64
	// OnSpace is called when the viewer enters a space.
	OnSpace func(id int64)
	Logger  logrus.FieldLogger
}

// Run starts the program and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, page *session.Page, opts Options) error {
	applyThemePreference()
	applyColorProfilePreference()

	m := newAppModel(ctx, page, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(appModel); ok {
		fm.cancelAll()
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
