package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"sharezone-cli/internal/session"
	"sharezone-cli/internal/tui"
)

func newFilesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "File commands (in the current space)",
	}
	cmd.AddCommand(newFilesListCmd(app))
	cmd.AddCommand(newFilesShowCmd(app))
	cmd.AddCommand(newFilesSubmitCmd(app))
	cmd.AddCommand(newFilesUploadCmd(app))
	cmd.AddCommand(newFilesPasteCmd(app))
	cmd.AddCommand(newFilesEditCmd(app))
	cmd.AddCommand(newFilesDeleteCmd(app))
	cmd.AddCommand(newFilesDownloadCmd(app))
	cmd.AddCommand(newFilesCopyCmd(app))
	return cmd
}

func listFiles(cmd *cobra.Command, app *App, e *env, id int64, hints ...string) error {
	snap := e.page.Snapshot()
	out := filesOut{Space: spaceOutFor(e.page, id), Files: snap.FileRecords}
	return writeOut(cmd, app, out, hints...)
}

func newFilesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List files, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			id, err := e.openSpace(commandContext(cmd), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			return listFiles(cmd, app, e, id)
		},
	}
}

// selectFile loads one file by id into the page.
func selectFile(ctx context.Context, e *env, arg string) (int64, error) {
	id, err := parseID(arg)
	if err != nil {
		return 0, err
	}
	if err := e.page.SelectFile(ctx, id); err != nil {
		return 0, err
	}
	if e.page.Snapshot().Selected == nil {
		return 0, errNotFound("file", id)
	}
	return id, nil
}

func newFilesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <file-id>",
		Short: "Show a file (text content or metadata)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			if _, err := selectFile(commandContext(cmd), e, args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, fileOut{File: *e.page.Snapshot().Selected})
		},
	}
}

type createdOut struct {
	IDs    []int64  `json:"ids"`
	Kind   string   `json:"kind"`
	Failed []string `json:"failed,omitempty"`
}

func (o createdOut) Text() string {
	parts := make([]string, 0, len(o.IDs))
	for _, id := range o.IDs {
		parts = append(parts, fmt.Sprintf("#%d", id))
	}
	s := fmt.Sprintf("Stored %d %s: %s", len(o.IDs), o.Kind, strings.Join(parts, " "))
	for _, f := range o.Failed {
		s += "\nfailed: " + f
	}
	return s
}

func newFilesSubmitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <text|->",
		Short: "Store a text snippet (- reads stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			if text == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return writeErr(cmd, err)
				}
				text = string(b)
			}
			if strings.TrimSpace(text) == "" {
				return writeErr(cmd, errors.New("nothing to submit"))
			}

			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			if _, err := e.openSpace(ctx, app); err != nil {
				return writeErr(cmd, err)
			}
			id, err := e.page.SubmitText(ctx, text)
			if err != nil && id == 0 {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, createdOut{IDs: []int64{id}, Kind: "text"})
		},
	}
}

func newFilesUploadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload files, one after another",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads := make([]session.Upload, 0, len(args))
			for _, path := range args {
				u, err := session.UploadFromPath(path)
				if err != nil {
					return writeErr(cmd, err)
				}
				uploads = append(uploads, u)
			}

			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			if _, err := e.openSpace(ctx, app); err != nil {
				return writeErr(cmd, err)
			}
			out := createdOut{IDs: []int64{}, Kind: "file(s)"}
			var errs []error
			for _, u := range uploads {
				if err := ctx.Err(); err != nil {
					errs = append(errs, err)
					break
				}
				id, err := e.page.Upload(ctx, u)
				if id != 0 {
					out.IDs = append(out.IDs, id)
					continue
				}
				out.Failed = append(out.Failed, u.Name+": "+userError(err).Error())
				errs = append(errs, fmt.Errorf("%s: %w", u.Name, err))
			}
			if len(out.IDs) == 0 {
				return writeErr(cmd, errors.Join(errs...))
			}
			if err := writeOut(cmd, app, out); err != nil {
				return err
			}
			if len(errs) > 0 {
				return writeErr(cmd, errors.Join(errs...))
			}
			return nil
		},
	}
}

type pasteOut struct {
	Uploaded      int  `json:"uploaded"`
	TextSubmitted bool `json:"text_submitted"`
}

func (o pasteOut) Text() string {
	switch {
	case o.Uploaded > 0:
		return fmt.Sprintf("Uploaded %d file(s)", o.Uploaded)
	case o.TextSubmitted:
		return "Text submitted"
	}
	return "Nothing to paste"
}

func newFilesPasteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "paste",
		Short: "Store the clipboard (file paths are uploaded, anything else is text)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := clipboard.ReadAll()
			if err != nil {
				return writeErr(cmd, fmt.Errorf("read clipboard: %w", err))
			}

			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			if _, err := e.openSpace(ctx, app); err != nil {
				return writeErr(cmd, err)
			}
			res, err := e.page.HandlePaste(ctx, tui.PasteItems(s))
			if err != nil && res.Uploaded == 0 {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, pasteOut{Uploaded: res.Uploaded, TextSubmitted: res.TextSubmitted})
		},
	}
}

type savedOut struct {
	ID      int64 `json:"id"`
	Changed bool  `json:"changed"`
}

func (o savedOut) Text() string {
	if !o.Changed {
		return fmt.Sprintf("#%d unchanged", o.ID)
	}
	return fmt.Sprintf("Saved #%d", o.ID)
}

func newFilesEditCmd(app *App) *cobra.Command {
	var content string

	cmd := &cobra.Command{
		Use:   "edit <file-id>",
		Short: "Edit a text file (--content, or $VISUAL/$EDITOR)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			id, err := selectFile(ctx, e, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.page.BeginEdit(); err != nil {
				return writeErr(cmd, err)
			}
			before := e.page.Snapshot().Draft

			after := content
			if !cmd.Flags().Changed("content") {
				after, err = tui.EditText(before, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
				if err != nil {
					return writeErr(cmd, err)
				}
			}
			if after == before {
				return writeOut(cmd, app, savedOut{ID: id})
			}
			if err := e.page.SaveText(ctx, after); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, savedOut{ID: id, Changed: true})
		},
	}

	cmd.Flags().StringVar(&content, "content", "", "New content (skips the editor)")
	return cmd
}

func newFilesDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <file-id>",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			c := session.Yes
			if !yes {
				c = promptConfirmer(cmd)
			}
			deleted, err := e.page.DeleteFile(commandContext(cmd), id, c)
			if err != nil && !deleted {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, deletedOut{ID: id, Deleted: deleted})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

type downloadOut struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

func (o downloadOut) Text() string { return o.Path }

func newFilesDownloadCmd(app *App) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download <file-id>",
		Short: "Save a file; existing files are never overwritten",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			if !cmd.Flags().Changed("output") {
				dir = e.cfg.DownloadDir
			}
			path, err := e.page.DownloadTo(commandContext(cmd), id, dir)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, downloadOut{ID: id, Path: path})
		},
	}

	cmd.Flags().StringVarP(&dir, "output", "o", "", "Directory to save into (default: download_dir)")
	return cmd
}

type copiedOut struct {
	ID    int64 `json:"id"`
	Bytes int   `json:"bytes"`
}

func (o copiedOut) Text() string { return fmt.Sprintf("Copied #%d to the clipboard", o.ID) }

func newFilesCopyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <file-id>",
		Short: "Copy a file's text to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			id, err := selectFile(commandContext(cmd), e, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			text, ok := e.page.SelectedText()
			if !ok {
				return writeErr(cmd, fmt.Errorf("file #%d has no text to copy", id))
			}
			if err := clipboard.WriteAll(text); err != nil {
				return writeErr(cmd, fmt.Errorf("write clipboard: %w", err))
			}
			return writeOut(cmd, app, copiedOut{ID: id, Bytes: len(text)})
		},
	}
}

// promptConfirmer asks on stderr and reads y/yes from stdin. Anything else,
// including EOF, declines.
func promptConfirmer(cmd *cobra.Command) session.Confirmer {
	return session.ConfirmFunc(func(ctx context.Context, prompt string) (bool, error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", prompt)
		line, err := readLine(cmd.InOrStdin())
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	})
}
