package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sharezone-cli/internal/api"
	"sharezone-cli/internal/session"
)

func newAuthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Backend session commands",
	}
	cmd.AddCommand(newAuthLoginCmd(app))
	cmd.AddCommand(newAuthLogoutCmd(app))
	cmd.AddCommand(newAuthStatusCmd(app))
	return cmd
}

type authOut struct {
	Server       string `json:"server"`
	LoggedIn     bool   `json:"logged_in"`
	CurrentSpace int64  `json:"current_space,omitempty"`
}

func (o authOut) Text() string {
	if !o.LoggedIn {
		return "Not logged in to " + o.Server
	}
	s := "Logged in to " + o.Server
	if o.CurrentSpace != 0 {
		s += fmt.Sprintf(" (space #%d)", o.CurrentSpace)
	}
	return s
}

func newAuthLoginCmd(app *App) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with the system password",
		Long: strings.TrimSpace(`
Log in with the system password. Without --password the first line of stdin
is used, so the password stays out of shell history:

  sharezone auth login < password.txt
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			if !cmd.Flags().Changed("password") {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				password, err = readLine(cmd.InOrStdin())
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return writeErr(cmd, err)
				}
			}

			ctx := commandContext(cmd)
			if err := e.page.Login(ctx, password); err != nil {
				if errors.Is(err, session.ErrPasswordRequired) {
					return writeErr(cmd, errors.New(session.MsgPasswordRequired))
				}
				if ae, ok := api.AsAppError(err); ok {
					// A rejected password needs no "log in" hint.
					return writeErr(cmd, errors.New(ae.Error()))
				}
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, authOut{Server: e.cfg.Server, LoggedIn: true})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "System password (default: read from stdin)")
	return cmd
}

func newAuthLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			var hints []string
			if err := e.page.Logout(ctx); err != nil {
				// The local session is dropped either way.
				hints = append(hints, "backend logout failed: "+err.Error())
			}
			if err := e.state.Forget(ctx, e.cfg.Server); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.state.ClearCurrentSpace(ctx, e.cfg.Server); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, authOut{Server: e.cfg.Server}, hints...)
		},
	}
}

func newAuthStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the stored session is still valid",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			ok, err := e.page.Verify(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			out := authOut{Server: e.cfg.Server, LoggedIn: ok}
			if ok {
				out.CurrentSpace, _, _ = e.state.CurrentSpace(ctx, e.cfg.Server)
				return writeOut(cmd, app, out)
			}
			return writeOut(cmd, app, out, "run `sharezone auth login`")
		},
	}
}

// readLine reads one line from r without the trailing newline.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
