package notify

import (
	"testing"

	"github.com/aviellagerev/shareterm/internal/reconcile"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	ui := b.Subscribe("ui")
	hooks := b.Subscribe("hooks")

	b.Publish(reconcile.Change{Kind: reconcile.ChangeFileAdded, Filename: "a.txt"})

	for _, sub := range []*Subscriber{ui, hooks} {
		select {
		case c := <-sub.Ch:
			if c.Filename != "a.txt" {
				t.Fatalf("%s got %+v", sub.Name, c)
			}
		default:
			t.Fatalf("%s received nothing", sub.Name)
		}
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe("ui")
	b.Unsubscribe(sub.ID)

	b.Publish(reconcile.Change{Kind: reconcile.ChangeFileAdded})
	select {
	case <-sub.Ch:
		t.Fatal("received after unsubscribe")
	default:
	}
	if b.Count() != 0 {
		t.Fatalf("count = %d", b.Count())
	}
}

func TestBrokerUnsubscribeSignalsDone(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe("ui")

	select {
	case <-sub.Done():
		t.Fatal("done before unsubscribe")
	default:
	}

	b.Unsubscribe(sub.ID)
	select {
	case <-sub.Done():
	default:
		t.Fatal("done not signalled; receivers would block forever")
	}

	// A repeated unsubscribe must not panic on a closed channel.
	b.Unsubscribe(sub.ID)
}

func TestBrokerSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Subscribe("slow")

	// Fill well past the buffer; Publish must never block.
	for i := 0; i < 100; i++ {
		b.Publish(reconcile.Change{Kind: reconcile.ChangeFileAdded})
	}
}
