package ui

import (
	"testing"
	"time"

	"github.com/aviellagerev/shareterm/internal/app"
	"github.com/aviellagerev/shareterm/internal/notify"
)

// After logout the wait commands must return instead of blocking on the
// abandoned subscription, or every login cycle leaks their goroutines.
func TestWaitCommandsReturnAfterLogout(t *testing.T) {
	a := &app.App{Broker: notify.NewBroker()}
	m := &rootModel{app: a, sub: a.Broker.Subscribe("ui")}

	change := m.waitForChange()
	status := m.waitForStatus()
	streamErr := m.waitForStreamErr()

	a.Broker.Unsubscribe(m.sub.ID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if msg := change(); msg != nil {
			t.Errorf("change cmd returned %v", msg)
		}
		if msg := status(); msg != nil {
			t.Errorf("status cmd returned %v", msg)
		}
		if msg := streamErr(); msg != nil {
			t.Errorf("stream err cmd returned %v", msg)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("wait commands still blocked after unsubscribe")
	}
}

func TestWaitCommandsNilWithoutSession(t *testing.T) {
	m := &rootModel{app: &app.App{}}
	if m.waitForChange() != nil || m.waitForStatus() != nil || m.waitForStreamErr() != nil {
		t.Fatal("wait commands must be inert before login")
	}
}
