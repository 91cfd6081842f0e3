package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aviellagerev/shareterm/internal/api"
	"github.com/aviellagerev/shareterm/internal/event"
	"github.com/aviellagerev/shareterm/internal/reconcile"
)

// fakeSource serves a fixed sequence of connections, then blocks.
type fakeSource struct {
	mu    sync.Mutex
	conns []func() (io.ReadCloser, error)
}

func (f *fakeSource) OpenEvents(ctx context.Context) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.conns) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := f.conns[0]
	f.conns = f.conns[1:]
	return next()
}

func textConn(s string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(s)), nil
	}
}

// recorder collects applied events and status transitions.
type recorder struct {
	mu       sync.Mutex
	events   []event.Event
	statuses []Status
}

func (r *recorder) apply(e event.Event) (reconcile.Change, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return reconcile.Change{}, true
}

func (r *recorder) status(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) snapshot() ([]event.Event, []Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...), append([]Status(nil), r.statuses...)
}

func newTestClient(t *testing.T, src Source, rec *recorder, delay time.Duration) *Client {
	t.Helper()
	c, err := New(Config{
		Source:         src,
		Apply:          rec.apply,
		OnStatus:       rec.status,
		ReconnectDelay: delay,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClientDecodesFrames(t *testing.T) {
	stream := "data: {\"type\": \"file_added\", \"file\": {\"filename\": \"a.txt\", \"uploader\": \"bob\", \"size\": 3}}\n" +
		"\n" +
		": keepalive\n" +
		"data: not json at all\n" +
		"{\"type\": \"file_deleted\", \"file\": {\"filename\": \"a.txt\"}}\n"

	src := &fakeSource{conns: []func() (io.ReadCloser, error){textConn(stream)}}
	rec := &recorder{}
	c := newTestClient(t, src, rec, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool { return rec.eventCount() == 2 })
	cancel()
	<-done

	events, _ := rec.snapshot()
	if events[0].Kind != event.KindFileAdded || events[1].Kind != event.KindFileDeleted {
		t.Fatalf("events = %+v", events)
	}
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	src := &fakeSource{conns: []func() (io.ReadCloser, error){
		textConn("data: {\"type\": \"file_added\", \"file\": {\"filename\": \"1\"}}\n"),
		textConn("data: {\"type\": \"file_added\", \"file\": {\"filename\": \"2\"}}\n"),
	}}
	rec := &recorder{}
	c := newTestClient(t, src, rec, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool { return rec.eventCount() == 2 })
	cancel()
	<-done

	_, statuses := rec.snapshot()
	var reconnects, connects int
	for _, s := range statuses {
		switch s {
		case StatusReconnecting:
			reconnects++
		case StatusConnected:
			connects++
		}
	}
	if reconnects < 1 || connects < 2 {
		t.Fatalf("statuses = %v", statuses)
	}
}

func TestClientStopsOnUnauthorized(t *testing.T) {
	src := &fakeSource{conns: []func() (io.ReadCloser, error){
		func() (io.ReadCloser, error) { return nil, api.ErrUnauthorized },
	}}
	rec := &recorder{}
	c := newTestClient(t, src, rec, time.Millisecond)

	err := c.Run(context.Background())
	if !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	_, statuses := rec.snapshot()
	if last := statuses[len(statuses)-1]; last != StatusDisconnected {
		t.Fatalf("final status = %v", last)
	}
}

func TestClientRetriesOtherOpenFailures(t *testing.T) {
	src := &fakeSource{conns: []func() (io.ReadCloser, error){
		func() (io.ReadCloser, error) { return nil, errors.New("connection refused") },
		textConn("data: {\"type\": \"file_added\", \"file\": {\"filename\": \"x\"}}\n"),
	}}
	rec := &recorder{}
	c := newTestClient(t, src, rec, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool { return rec.eventCount() == 1 })
	cancel()
	<-done
}

func TestFramePayload(t *testing.T) {
	cases := []struct {
		line string
		want string
		ok   bool
	}{
		{"data: {\"a\":1}", "{\"a\":1}", true},
		{"data:{\"a\":1}", "{\"a\":1}", true},
		{"{\"a\":1}", "{\"a\":1}", true},
		{"", "", false},
		{": ping", "", false},
		{"data: {\"a\":1}\r", "{\"a\":1}", true},
	}
	for _, tc := range cases {
		got, ok := framePayload(tc.line)
		if got != tc.want || ok != tc.ok {
			t.Errorf("framePayload(%q) = %q, %v", tc.line, got, ok)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
