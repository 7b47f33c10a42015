package cli

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sharezone-cli/internal/web"
)

func newWebCmd(app *App) *cobra.Command {
	var addr string
	var open bool

	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the sharezone pages from a local HTTP server",
		Long: strings.TrimSpace(`
Serve server-rendered sharezone pages from a local HTTP server.

Every browser gets its own backend session, so several people can share one
local front. Pasting into a space page stores the clipboard, like the TUI.
`),
		Example: strings.TrimSpace(`
# Serve on the configured web_addr (default 127.0.0.1:8080)
sharezone web

# Against a remote backend, on another port
sharezone --server https://share.example.com web --addr :3335
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			listenAddr := strings.TrimSpace(addr)
			if !cmd.Flags().Changed("addr") {
				listenAddr = e.cfg.WebAddr
			}
			if listenAddr == "" {
				return writeErr(cmd, errors.New("web: missing --addr"))
			}

			srv, err := web.NewServer(web.ServerConfig{
				Addr:                listenAddr,
				BackendURL:          e.cfg.Server,
				Timeout:             e.cfg.Timeout,
				MaxUploadBytes:      e.cfg.MaxUploadBytes,
				DeleteRedirectDelay: e.cfg.DeleteRedirectDelay,
				Logger:              e.log,
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}

			actualAddr := ln.Addr().String()
			url := "http://" + actualAddr + "/"

			opened := false
			openErr := ""
			if open {
				if err := openPath(url); err != nil {
					openErr = err.Error()
				} else {
					opened = true
				}
			}

			hints := []string{}
			if !opened {
				hints = append(hints, "open "+url)
			}

			_ = writeOut(cmd, app, map[string]any{
				"addr":      actualAddr,
				"url":       url,
				"backend":   e.cfg.Server,
				"opened":    opened,
				"openError": openErr,
				"startedAt": time.Now().UTC().Format(time.RFC3339Nano),
			}, hints...)

			fmt.Fprintf(cmd.ErrOrStderr(), "Sharezone web running at %s (backend=%s)\n", url, e.cfg.Server)
			if openErr != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Failed to open browser: %s\n", openErr)
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
			defer stop()
			if err := srv.Serve(ctx, ln); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port; default: web_addr)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the UI in your default browser")
	return cmd
}

func openPath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("empty path")
	}
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", path).Run()
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path).Run()
	default:
		return exec.Command("xdg-open", path).Run()
	}
}
