package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/aviellagerev/shareterm/internal/api"
	"github.com/aviellagerev/shareterm/internal/event"
	"github.com/aviellagerev/shareterm/internal/reconcile"
)

// Status is the connection lifecycle state of the event stream.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// DefaultReconnectDelay is the pause before reopening a dropped stream.
const DefaultReconnectDelay = 5 * time.Second

// Source opens the server's event stream.
type Source interface {
	OpenEvents(ctx context.Context) (io.ReadCloser, error)
}

// Config wires a Client to its collaborators.
type Config struct {
	Source Source
	// Apply reconciles a decoded event into local state.
	Apply func(event.Event) (reconcile.Change, bool)
	// Publish fans a reconciled change out to consumers. Optional.
	Publish func(reconcile.Change)
	// OnStatus is called on every connection state transition. Optional.
	OnStatus func(Status)
	// ReconnectDelay defaults to DefaultReconnectDelay when zero.
	ReconnectDelay time.Duration
}

// Client consumes the server event stream and keeps local state
// reconciled. It maintains at most one live connection, reconnecting
// after a fixed delay whenever the stream drops.
type Client struct {
	source   Source
	apply    func(event.Event) (reconcile.Change, bool)
	publish  func(reconcile.Change)
	onStatus func(Status)
	delay    time.Duration
}

// New creates a stream client. Config.Source and Config.Apply are required.
func New(cfg Config) (*Client, error) {
	if cfg.Source == nil {
		return nil, errors.New("stream: source is required")
	}
	if cfg.Apply == nil {
		return nil, errors.New("stream: apply func is required")
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Client{
		source:   cfg.Source,
		apply:    cfg.Apply,
		publish:  cfg.Publish,
		onStatus: cfg.OnStatus,
		delay:    delay,
	}, nil
}

// Run connects and consumes events until ctx is cancelled or the
// session is rejected by the server. A dropped connection is reopened
// after the configured delay; any other open failure is retried the
// same way.
func (c *Client) Run(ctx context.Context) error {
	first := true
	for {
		if first {
			c.setStatus(StatusConnecting)
			first = false
		} else {
			c.setStatus(StatusReconnecting)
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				c.setStatus(StatusDisconnected)
				return ctx.Err()
			}
			c.setStatus(StatusConnecting)
		}

		body, err := c.source.OpenEvents(ctx)
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				c.setStatus(StatusDisconnected)
				return fmt.Errorf("event stream rejected: %w", err)
			}
			if ctx.Err() != nil {
				c.setStatus(StatusDisconnected)
				return ctx.Err()
			}
			log.Printf("stream: open failed: %v", err)
			continue
		}

		c.setStatus(StatusConnected)
		err = c.consume(ctx, body)
		body.Close()
		if ctx.Err() != nil {
			c.setStatus(StatusDisconnected)
			return ctx.Err()
		}
		if err != nil {
			log.Printf("stream: connection lost: %v", err)
		}
	}
}

// consume reads the stream line by line until it ends or ctx is
// cancelled. Malformed payloads are logged and dropped; unknown event
// kinds are ignored silently.
func (c *Client) consume(ctx context.Context, body io.ReadCloser) error {
	// Closing the body unblocks the scanner when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			body.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		payload, ok := framePayload(scanner.Text())
		if !ok {
			continue
		}
		e, err := event.Decode([]byte(payload))
		if err != nil {
			log.Printf("stream: dropping malformed event: %v", err)
			continue
		}
		if !e.Kind.Known() {
			continue
		}
		change, applied := c.apply(e)
		if applied && c.publish != nil {
			c.publish(change)
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// framePayload extracts the JSON payload from a stream line. Blank
// lines separate frames and comment lines start with a colon; both
// carry no payload. The "data:" field prefix is optional so plain
// NDJSON streams work too.
func framePayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false
	}
	if rest, ok := strings.CutPrefix(line, "data:"); ok {
		line = strings.TrimPrefix(rest, " ")
	}
	if line == "" {
		return "", false
	}
	return line, true
}

func (c *Client) setStatus(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}
