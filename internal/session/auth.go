package session

import (
	"context"
	"errors"

	"sharezone-cli/internal/view"
)

// MsgPasswordRequired is the inline login error for an empty password.
const MsgPasswordRequired = "Please enter the password"

// ErrPasswordRequired is returned by Login for an empty password; no request is sent.
var ErrPasswordRequired = errors.New("password required")

// Login submits the system password. On success the viewer lands on home and
// the space list is loaded.
func (p *Page) Login(ctx context.Context, password string) error {
	if password == "" {
		p.update(func(st *State) { st.LoginError = MsgPasswordRequired })
		return ErrPasswordRequired
	}

	tctx, cancel := p.task(ctx)
	err := p.be.Login(tctx, password)
	cancel()
	if err != nil {
		p.fail("Login", "Login failed", err, func(st *State, msg string) { st.LoginError = msg })
		return err
	}

	p.update(func(st *State) {
		st.LoginError = ""
		st.Route = RouteHome
	})
	return p.LoadSpaces(ctx)
}

// Logout ends the backend session. Failures are only logged.
func (p *Page) Logout(ctx context.Context) error {
	ctx, cancel := p.task(ctx)
	defer cancel()
	if err := p.be.Logout(ctx); err != nil {
		p.log.WithError(err).Warn("logout failed")
		return err
	}
	p.update(func(st *State) {
		p.resetLocked(st)
		st.SpaceRecords = nil
		st.Spaces = view.Spaces(nil, 0, p.now())
		st.Notice = nil
		st.Route = RouteLogin
	})
	return nil
}

// Verify checks the stored session and routes to login when it is gone.
func (p *Page) Verify(ctx context.Context) (bool, error) {
	ctx, cancel := p.task(ctx)
	defer cancel()
	ok, err := p.be.Verify(ctx)
	if err != nil {
		p.fail("Session check", "Session check failed", err, nil)
		return false, err
	}
	p.update(func(st *State) {
		switch {
		case !ok:
			p.resetLocked(st)
			st.Route = RouteLogin
		case st.Route == RouteLogin:
			st.Route = RouteHome
		}
	})
	return ok, nil
}
