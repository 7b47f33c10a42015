package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"sharezone-cli/internal/model"
	"sharezone-cli/internal/session"
)

func newSpacesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spaces",
		Short: "Space commands",
	}
	cmd.AddCommand(newSpacesListCmd(app))
	cmd.AddCommand(newSpacesCreateCmd(app))
	cmd.AddCommand(newSpacesEnterCmd(app))
	cmd.AddCommand(newSpacesUseCmd(app))
	cmd.AddCommand(newSpacesDeleteCmd(app))
	cmd.AddCommand(newSpacesExtendCmd(app))
	cmd.AddCommand(newSpacesTouchCmd(app))
	return cmd
}

func newSpacesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List spaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			if err := e.page.LoadSpaces(ctx); err != nil {
				return writeErr(cmd, err)
			}
			current, _, _ := e.state.CurrentSpace(ctx, e.cfg.Server)
			return writeOut(cmd, app, spacesOut{Current: current, Spaces: e.page.Snapshot().SpaceRecords})
		},
	}
}

// findSpace looks id up in the page's loaded space list.
func findSpace(p *session.Page, id int64) (model.Space, bool) {
	for _, s := range p.Snapshot().SpaceRecords {
		if s.ID == id {
			return s, true
		}
	}
	return model.Space{}, false
}

func spaceOutFor(p *session.Page, id int64) spaceOut {
	out := spaceOut{ID: id, Name: p.Snapshot().SpaceName}
	if s, ok := findSpace(p, id); ok {
		out.Name = s.Name
		out.ExpiresAt = s.ExpiresAt
	}
	return out
}

func newSpacesCreateCmd(app *App) *cobra.Command {
	var name, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a space and make it current",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			id, err := e.page.CreateSpace(ctx, strings.TrimSpace(name), password)
			if err != nil && id == 0 {
				return writeErr(cmd, err)
			}
			if err := e.state.SetCurrentSpace(ctx, e.cfg.Server, id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, spaceOutFor(e.page, id))
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Space name")
	cmd.Flags().StringVar(&password, "password", "", "Space password")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSpacesEnterCmd(app *App) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "enter",
		Short: "Find a space by its password and make it current",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			sp, err := e.page.EnterSpace(ctx, password)
			if err != nil && sp.ID == 0 {
				return writeErr(cmd, err)
			}
			if err := e.state.SetCurrentSpace(ctx, e.cfg.Server, sp.ID); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, spaceOut{ID: sp.ID, Name: sp.Name, ExpiresAt: sp.ExpiresAt})
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "Space password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newSpacesUseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "use <space-id>",
		Short: "Set the current space for file commands",
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

			ctx := commandContext(cmd)
			if err := e.page.LoadSpaces(ctx); err != nil {
				return writeErr(cmd, err)
			}
			sp, ok := findSpace(e.page, id)
			if !ok {
				return writeErr(cmd, errNotFound("space", id))
			}
			if err := e.state.SetCurrentSpace(ctx, e.cfg.Server, id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, spaceOut{ID: sp.ID, Name: sp.Name, ExpiresAt: sp.ExpiresAt})
		},
	}
}

type deletedOut struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

func (o deletedOut) Text() string {
	if o.Deleted {
		return fmt.Sprintf("Deleted #%d", o.ID)
	}
	return fmt.Sprintf("Kept #%d", o.ID)
}

func newSpacesDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete [space-id]",
		Short: "Delete a space and everything in it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			id, err := argOrSpace(ctx, e, app, args)
			if err != nil {
				return writeErr(cmd, err)
			}

			c := session.Yes
			if !yes {
				c = promptConfirmer(cmd)
			}
			ok, err := c.Confirm(ctx, fmt.Sprintf("Delete space #%d and all its files?", id))
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ok {
				return writeOut(cmd, app, deletedOut{ID: id})
			}

			if err := e.page.OpenSpace(ctx, id); err != nil {
				return writeErr(cmd, err)
			}
			if err := e.page.DeleteSpace(ctx); err != nil {
				return writeErr(cmd, err)
			}
			if cur, ok, _ := e.state.CurrentSpace(ctx, e.cfg.Server); ok && cur == id {
				if err := e.state.ClearCurrentSpace(ctx, e.cfg.Server); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, deletedOut{ID: id, Deleted: true})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newSpacesExtendCmd(app *App) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Push the current space's expiry out",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			id, err := e.openSpace(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			exp, err := e.page.ExtendSpace(ctx, hours)
			if err != nil && exp.IsZero() {
				return writeErr(cmd, err)
			}
			out := spaceOutFor(e.page, id)
			out.ExpiresAt = &exp
			return writeOut(cmd, app, out)
		},
	}

	cmd.Flags().IntVar(&hours, "hours", session.DefaultExtendHours, "Hours to add")
	return cmd
}

func newSpacesTouchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "touch",
		Short: "Record an access to the current space",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd, app, envOptions{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer e.Close()

			ctx := commandContext(cmd)
			id, err := e.spaceID(ctx, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := e.client.TouchSpace(ctx, id); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, spaceOut{ID: id})
		},
	}
}

// argOrSpace takes the id from args, falling back to the current space.
func argOrSpace(ctx context.Context, e *env, app *App, args []string) (int64, error) {
	if len(args) > 0 {
		return parseID(args[0])
	}
	return e.spaceID(ctx, app)
}

func parseID(s string) (int64, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
