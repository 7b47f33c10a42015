package cli

import (
	"github.com/spf13/cobra"

	"sharezone-cli/internal/tui"
)

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the interactive TUI (default command)",
		Long:  "Start the interactive TUI. It opens --space, or the current space, once the stored session checks out.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app)
		},
	}
}

func runTUI(cmd *cobra.Command, app *App) error {
	e, err := openEnv(cmd, app, envOptions{interactive: true})
	if err != nil {
		return writeErr(cmd, err)
	}
	defer e.Close()

	ctx := commandContext(cmd)
	// A missing current space just starts at home.
	space, _ := e.spaceID(ctx, app)
	e.log.WithField("server", e.cfg.Server).Info("tui started")

	err = tui.Run(ctx, e.page, tui.Options{
		Server:      e.cfg.Server,
		DownloadDir: e.cfg.DownloadDir,
		StartSpace:  space,
		OnSpace: func(id int64) {
			if err := e.state.SetCurrentSpace(ctx, e.cfg.Server, id); err != nil {
				e.log.WithError(err).Warn("remember current space")
			}
		},
		Logger: e.log,
	})
	if err != nil {
		return writeErr(cmd, err)
	}
	return nil
}
