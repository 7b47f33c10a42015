package session

import "context"

// Confirmer asks the viewer a yes/no question before a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Yes approves every prompt (--yes, or a surface that already asked).
var Yes Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })

// No declines every prompt.
var No Confirmer = ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })
