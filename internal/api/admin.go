package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aviellagerev/shareterm/internal/account"
)

// ListUsers fetches the full user roster. Admin only.
func (c *Client) ListUsers(ctx context.Context) ([]account.User, error) {
	var out []struct {
		ID          int    `json:"id"`
		Username    string `json:"username"`
		Permissions string `json:"permissions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/admin/api/users", nil, "", &out); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]account.User, 0, len(out))
	for _, u := range out {
		users = append(users, account.User{
			ID:         u.ID,
			Username:   u.Username,
			Permission: account.ParsePermission(u.Permissions),
		})
	}
	return users, nil
}

// UpdatePermission changes another user's permission level. The server
// rejects changing your own with 403; the resulting roster change arrives
// through the event stream.
func (c *Client) UpdatePermission(ctx context.Context, userID int, p account.Permission) error {
	body, err := json.Marshal(map[string]any{
		"id":         userID,
		"permission": string(p),
	})
	if err != nil {
		return err
	}
	if err := c.doJSON(ctx, http.MethodPost, "/admin/api/update_permission",
		bytes.NewReader(body), "application/json", nil); err != nil {
		return fmt.Errorf("update permission for user %d: %w", userID, err)
	}
	return nil
}

// DeleteUser removes an account. The roster change arrives through the
// event stream.
func (c *Client) DeleteUser(ctx context.Context, userID int) error {
	path := fmt.Sprintf("/admin/api/delete_user/%d", userID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, "", nil); err != nil {
		return fmt.Errorf("delete user %d: %w", userID, err)
	}
	return nil
}
