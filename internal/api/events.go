package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// OpenEvents establishes the long-lived push-event connection and returns
// its body for the stream reader to consume. The endpoint is receive-only.
//
// The server answers 204 when the session is not (or no longer) logged in;
// that is an authorization failure, not a transport error, so it maps to
// ErrUnauthorized rather than being retried.
func (c *Client) OpenEvents(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events/", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The stream must not be killed by the client timeout: it is expected
	// to stay open for the life of the session. Use a transport without a
	// deadline; cancellation comes from ctx.
	streamClient := &http.Client{
		Transport: c.httpClient.Transport,
		Jar:       c.httpClient.Jar,
	}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open event stream: %w", ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("open event stream: %w",
			&APIError{StatusCode: resp.StatusCode, Message: errorMessage(payload)})
	}
	return resp.Body, nil
}
