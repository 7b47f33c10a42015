package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sharezone-cli/internal/api"
	"sharezone-cli/internal/config"
	"sharezone-cli/internal/format"
	"sharezone-cli/internal/logging"
	"sharezone-cli/internal/session"
	"sharezone-cli/internal/store"
)

type App struct {
	ConfigPath string
	Server     string
	StateDir   string
	LogLevel   string
	Timeout    time.Duration
	Space      int64
	PrettyJSON bool
	Format     string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "sharezone",
		Short:        "Sharezone CLI + TUI",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  sharezone

  # Scriptable commands
  sharezone auth login < password.txt
  sharezone spaces create --name notes --password hunter2
  echo "hello" | sharezone files submit -

  # List a space directly (shortcut for: sharezone files list --space 12)
  sharezone space-12
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	// Flag defaults stay empty so config defaults apply unless a flag is set.
	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("SHAREZONE_CONFIG", ""), "Config file (default: <state-dir>/config.yaml)")
	cmd.PersistentFlags().StringVar(&app.Server, "server", "", "Backend base URL (default http://127.0.0.1:3333)")
	cmd.PersistentFlags().StringVar(&app.StateDir, "state-dir", "", "Directory for cookies, current space and logs (default ~/.sharezone)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().DurationVar(&app.Timeout, "timeout", 0, "Per-request timeout (default 30s)")
	cmd.PersistentFlags().Int64Var(&app.Space, "space", 0, "Space id (overrides the current space)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("SHAREZONE_FORMAT", "json"), "Output format (json|text)")

	cmd.AddCommand(newAuthCmd(app))
	cmd.AddCommand(newSpacesCmd(app))
	cmd.AddCommand(newFilesCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newWebCmd(app))

	return cmd
}

// env is everything one command invocation needs. Close releases it.
type env struct {
	cfg    *config.Config
	log    *logrus.Logger
	state  *store.State
	client *api.Client
	page   *session.Page

	logCloser io.Closer
}

type envOptions struct {
	// interactive sends logs to <state_dir>/sharezone.log (the TUI owns the
	// terminal) and keeps the "Space deleted" pause.
	interactive bool
}

func openEnv(cmd *cobra.Command, app *App, opts envOptions) (*env, error) {
	cfg, err := config.Load(cmd.Root().PersistentFlags(), app.ConfigPath)
	if err != nil {
		return nil, err
	}

	lo := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: cmd.ErrOrStderr()}
	if opts.interactive {
		lo.File = logFilePath(cfg)
	}
	log, closer, err := logging.New(lo)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, log: log, logCloser: closer}

	ctx := commandContext(cmd)
	st, err := store.Open(ctx, cfg.StateDir, log)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.state = st

	jar, err := st.CookieJar(ctx)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	client, err := api.New(api.Config{BaseURL: cfg.Server, Jar: jar, Logger: log})
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.client = client
	po := session.Options{
		Timeout:        cfg.Timeout,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log,
	}
	if opts.interactive {
		po.DeleteRedirectDelay = cfg.DeleteRedirectDelay
	}
	e.page = session.New(client, po)
	return e, nil
}

func (e *env) Close() error {
	var errs []error
	if e.state != nil {
		errs = append(errs, e.state.Close())
	}
	if e.logCloser != nil {
		errs = append(errs, e.logCloser.Close())
	}
	return errors.Join(errs...)
}

func logFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.StateDir, "sharezone.log")
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// spaceID resolves the space a command works on: --space, then the stored
// current space for this server.
func (e *env) spaceID(ctx context.Context, app *App) (int64, error) {
	if app.Space > 0 {
		return app.Space, nil
	}
	id, ok, err := e.state.CurrentSpace(ctx, e.cfg.Server)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, errNoCurrentSpace
	}
	return id, nil
}

// openSpace opens the resolved space on the page.
func (e *env) openSpace(ctx context.Context, app *App) (int64, error) {
	id, err := e.spaceID(ctx, app)
	if err != nil {
		return 0, err
	}
	if err := e.page.OpenSpace(ctx, id); err != nil {
		return 0, err
	}
	return id, nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// result is the output envelope of every command.
type result struct {
	Data  any      `json:"data"`
	Hints []string `json:"_hints,omitempty"`
}

func (r result) Text() string {
	var b strings.Builder
	if t, ok := r.Data.(format.Texter); ok {
		b.WriteString(strings.TrimRight(t.Text(), "\n"))
	} else {
		out, _ := json.MarshalIndent(r.Data, "", "  ")
		b.Write(out)
	}
	for _, h := range r.Hints {
		b.WriteString("\nhint: " + h)
	}
	return b.String()
}

func writeOut(cmd *cobra.Command, app *App, v any, hints ...string) error {
	return format.Write(cmd.OutOrStdout(), result{Data: v, Hints: hints}, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	err = userError(err)
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
