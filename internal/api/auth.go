package api

import (
	"context"
	"net/http"
)

// Login submits the system password. The backend answers with an auth_token
// cookie which the jar keeps.
func (c *Client) Login(ctx context.Context, password string) error {
	return c.postJSON(ctx, http.MethodPost, "/api/auth/login", map[string]string{"password": password}, nil)
}

// Logout invalidates the current session token.
func (c *Client) Logout(ctx context.Context) error {
	return c.postJSON(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Verify reports whether the stored session is still valid.
func (c *Client) Verify(ctx context.Context) (bool, error) {
	err := c.doJSON(ctx, http.MethodGet, "/api/auth/verify", nil, "", nil)
	if err == nil {
		return true, nil
	}
	if _, ok := AsAppError(err); ok {
		return false, nil
	}
	return false, err
}
