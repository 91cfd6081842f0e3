package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aviellagerev/shareterm/internal/account"
)

// Login authenticates with the backend. The server answers both outcomes
// with a redirect: to the file manager on success, back to the login page on
// failure, which maps to ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	location, status, err := c.postForm(ctx, "/login", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if status < 300 || status > 399 {
		return &APIError{StatusCode: status}
	}
	if !strings.HasPrefix(location, "/files") {
		return ErrInvalidCredentials
	}
	return nil
}

// Register submits a new account. The backend reports validation problems
// only through a flash message on the login page, so a redirect here means
// "submitted"; the caller confirms by logging in. Non-redirect statuses are
// real errors.
func (c *Client) Register(ctx context.Context, username, password string) error {
	_, status, err := c.postForm(ctx, "/register", url.Values{
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if status < 300 || status > 399 {
		return &APIError{StatusCode: status}
	}
	return nil
}

// Logout clears the server-side session. The session cookie stays in the
// jar but no longer authenticates anything.
func (c *Client) Logout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

// RefreshSession re-reads the session's permission level from the server.
// Used to reconcile local state after a push-driven permission change.
func (c *Client) RefreshSession(ctx context.Context) (account.Permission, error) {
	var out struct {
		Success     bool   `json:"success"`
		Permissions string `json:"permissions"`
		Error       string `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/refresh_session", nil, "", &out); err != nil {
		return "", fmt.Errorf("refresh session: %w", err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "session refresh rejected"
		}
		return "", fmt.Errorf("refresh session: %s", msg)
	}
	return account.ParsePermission(out.Permissions), nil
}

// postForm submits a form and returns the redirect target (if any) and the
// response status.
func (c *Client) postForm(ctx context.Context, path string, form url.Values) (location string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	_ = resp.Body.Close()
	return resp.Header.Get("Location"), resp.StatusCode, nil
}
