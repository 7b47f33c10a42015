package session

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"sharezone-cli/internal/model"
	"sharezone-cli/internal/view"
)

// ErrNoSpace is returned by space-scoped actions when no space is open.
var ErrNoSpace = errors.New("no space selected")

// DefaultExtendHours is the backend's default extension.
const DefaultExtendHours = 24

// LoadSpaces re-fetches the space list; the open space (if any) is marked active.
func (p *Page) LoadSpaces(ctx context.Context) error {
	ctx, cancel := p.task(ctx)
	defer cancel()
	spaces, err := p.be.ListSpaces(ctx)
	if err != nil {
		p.fail("Loading spaces", "Loading spaces failed", err, nil)
		return err
	}
	p.update(func(st *State) {
		st.SpaceRecords = spaces
		st.Spaces = view.Spaces(spaces, st.SpaceID, p.now())
	})
	return nil
}

// CreateSpace creates a space and opens it.
func (p *Page) CreateSpace(ctx context.Context, name, password string) (int64, error) {
	tctx, cancel := p.task(ctx)
	id, err := p.be.CreateSpace(tctx, name, password)
	cancel()
	if err != nil {
		p.fail("Create space", "Create space failed", err, func(st *State, msg string) { st.CreateError = msg })
		return 0, err
	}
	p.update(func(st *State) { st.CreateError = "" })
	return id, p.OpenSpace(ctx, id)
}

// EnterSpace resolves a space by password and opens it.
func (p *Page) EnterSpace(ctx context.Context, password string) (model.Space, error) {
	tctx, cancel := p.task(ctx)
	sp, err := p.be.EnterSpace(tctx, password)
	cancel()
	if err != nil {
		p.fail("Enter space", "Enter space failed", err, func(st *State, msg string) { st.EnterError = msg })
		return model.Space{}, err
	}
	p.update(func(st *State) { st.EnterError = "" })
	return sp, p.OpenSpace(ctx, sp.ID)
}

// OpenSpace navigates into a space: the selection is reset, then the file
// list (which carries the space name) and the sidebar are loaded.
func (p *Page) OpenSpace(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrNoSpace
	}
	p.update(func(st *State) {
		if st.SpaceID != id {
			p.resetLocked(st)
		} else {
			p.clearSelectionLocked(st)
		}
		st.SpaceID = id
		st.Route = RouteSpace
	})
	filesErr := p.LoadFiles(ctx)
	spacesErr := p.LoadSpaces(ctx)
	return errors.Join(filesErr, spacesErr)
}

// GoHome leaves the current space and reloads the space list.
func (p *Page) GoHome(ctx context.Context) error {
	p.update(func(st *State) {
		p.resetLocked(st)
		st.Route = RouteHome
	})
	return p.LoadSpaces(ctx)
}

// DeleteSpace deletes the open space, shows the confirmation notice for the
// configured delay and then returns home. Cancelling ctx cuts the delay short.
func (p *Page) DeleteSpace(ctx context.Context) error {
	id := p.Snapshot().SpaceID
	if id == 0 {
		return ErrNoSpace
	}
	tctx, cancel := p.task(ctx)
	err := p.be.DeleteSpace(tctx, id)
	cancel()
	if err != nil {
		p.fail("Delete space", "Delete space failed", err, nil)
		return err
	}
	p.succeed("Space deleted")
	p.log.WithField("space_id", id).Info("space deleted")

	if d := p.opts.DeleteRedirectDelay; d > 0 {
		t := time.NewTimer(d)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}
	if ctx.Err() != nil {
		p.update(func(st *State) {
			p.resetLocked(st)
			st.Route = RouteHome
		})
		return nil
	}
	return p.GoHome(ctx)
}

// TouchSpace records an access to the open space.
func (p *Page) TouchSpace(ctx context.Context) error {
	id := p.Snapshot().SpaceID
	if id == 0 {
		return ErrNoSpace
	}
	ctx, cancel := p.task(ctx)
	defer cancel()
	if err := p.be.TouchSpace(ctx, id); err != nil {
		p.log.WithFields(logrus.Fields{"space_id": id}).WithError(err).Debug("touch space failed")
		return err
	}
	return nil
}

// ExtendSpace pushes the expiry of the open space out by hours (default 24)
// and re-fetches the space list.
func (p *Page) ExtendSpace(ctx context.Context, hours int) (model.Timestamp, error) {
	id := p.Snapshot().SpaceID
	if id == 0 {
		return model.Timestamp{}, ErrNoSpace
	}
	if hours <= 0 {
		hours = DefaultExtendHours
	}
	tctx, cancel := p.task(ctx)
	exp, err := p.be.ExtendSpace(tctx, id, hours)
	cancel()
	if err != nil {
		p.fail("Extend space", "Extend space failed", err, nil)
		return model.Timestamp{}, err
	}
	p.succeed("Space extended, now " + view.Expiry(exp, p.now()))
	return exp, p.LoadSpaces(ctx)
}
