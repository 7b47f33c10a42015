package cli

import (
	"errors"
	"fmt"

	"sharezone-cli/internal/api"
	"sharezone-cli/internal/session"
)

var errNoCurrentSpace = errors.New("no space selected; run `sharezone spaces use <id>` or pass --space")

type notFoundError struct {
	kind string
	id   int64
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.kind, e.id)
}

func errNotFound(kind string, id int64) error {
	return notFoundError{kind: kind, id: id}
}

// userError adds the next step to errors a user can act on.
func userError(err error) error {
	switch {
	case err == nil:
		return nil
	case api.IsUnauthorized(err):
		return fmt.Errorf("%w (run `sharezone auth login`)", err)
	case errors.Is(err, session.ErrNoSpace):
		return errNoCurrentSpace
	case api.IsTransport(err) && api.IsCanceled(err):
		return fmt.Errorf("request timed out or was cancelled: %w", err)
	case api.IsTransport(err):
		return fmt.Errorf("backend unreachable: %w", err)
	}
	return err
}
