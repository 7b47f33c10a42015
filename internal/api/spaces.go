package api

import (
	"context"
	"net/http"

	"sharezone-cli/internal/model"
)

// ListSpaces returns the spaces this session has visited.
func (c *Client) ListSpaces(ctx context.Context) ([]model.Space, error) {
	var out struct {
		Spaces []model.Space `json:"spaces"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/spaces", nil, "", &out); err != nil {
		return nil, err
	}
	return out.Spaces, nil
}

// CreateSpace creates a space and returns its id.
func (c *Client) CreateSpace(ctx context.Context, name, password string) (int64, error) {
	var out struct {
		SpaceID int64 `json:"space_id"`
	}
	in := map[string]string{"name": name, "password": password}
	if err := c.postJSON(ctx, http.MethodPost, "/api/spaces", in, &out); err != nil {
		return 0, err
	}
	return out.SpaceID, nil
}

// EnterSpace resolves a space by its password.
func (c *Client) EnterSpace(ctx context.Context, password string) (model.Space, error) {
	var out struct {
		Space model.Space `json:"space"`
	}
	if err := c.postJSON(ctx, http.MethodPost, "/api/spaces/enter", map[string]string{"password": password}, &out); err != nil {
		return model.Space{}, err
	}
	return out.Space, nil
}

func (c *Client) DeleteSpace(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, idPath("/api/spaces", id, ""), nil, "", nil)
}

// TouchSpace records an access to the space for this session.
func (c *Client) TouchSpace(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodPut, idPath("/api/spaces", id, "/access"), nil, "", nil)
}

// ExtendSpace pushes the space expiry out by hours and returns the new expiry.
func (c *Client) ExtendSpace(ctx context.Context, id int64, hours int) (model.Timestamp, error) {
	var out struct {
		NewExpiresAt model.Timestamp `json:"new_expires_at"`
	}
	if err := c.postJSON(ctx, http.MethodPost, idPath("/api/spaces", id, "/extend"), map[string]int{"hours": hours}, &out); err != nil {
		return model.Timestamp{}, err
	}
	return out.NewExpiresAt, nil
}
