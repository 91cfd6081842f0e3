// Package api implements the HTTP client for the shared-folder backend:
// authentication, file transfer, user administration and the push-event
// stream endpoint. All list-changing responses are advisory; the local
// collection only changes when the corresponding stream event arrives.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// Sentinel errors callers branch on with errors.Is.
var (
	ErrUnauthorized       = errors.New("authentication required")
	ErrForbidden          = errors.New("permission denied")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// APIError is a non-2xx response carrying the server's error payload.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// Config holds the settings for creating a Client.
type Config struct {
	// BaseURL is the root of the backend, e.g. "http://fileshare.local:5000".
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with a 30s
	// timeout is created. A cookie jar is installed either way: the backend
	// keeps the session in a cookie.
	HTTPClient *http.Client
}

// Client is an HTTP client for the backend. It holds the session cookie;
// one Client corresponds to one logged-in session.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client. Redirects are never followed: the
// authentication endpoints signal their outcome through the redirect target,
// which the caller inspects.
func NewClient(config Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: create cookie jar: %w", err)
		}
		httpClient.Jar = jar
	}
	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

// CloseIdleConnections drops pooled connections. Called after a stream
// disconnect so the next request opens a fresh socket instead of reusing a
// poisoned one.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// doJSON performs a request and decodes a JSON response body into out
// (which may be nil). Non-2xx responses become *APIError with the server's
// {"error": ...} message when present.
func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || len(payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("api: decode %s %s response: %w", method, path, err)
		}
		return nil
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(payload),
	}
}

// errorMessage extracts the server's error string from a JSON payload.
func errorMessage(payload []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return ""
}
