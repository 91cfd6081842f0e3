package notify

import (
	"log"
	"sync"

	"github.com/aviellagerev/shareterm/internal/reconcile"
)

// Subscriber receives reconciled state changes.
type Subscriber struct {
	ID   int
	Name string
	Ch   chan reconcile.Change

	done chan struct{}
}

// Done is closed when the subscription is removed. Receivers select on it
// rather than waiting for Ch to close: Ch stays open because a publisher
// may still be sending from an already-taken snapshot.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Broker fans reconciled changes out to interested consumers: the UI,
// the event hook runner, the transfer history recorder.
type Broker struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]*Subscriber
}

// NewBroker creates a change broker with no subscribers.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[int]*Subscriber)}
}

// Subscribe registers a named consumer and returns its subscription.
func (b *Broker) Subscribe(name string) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber{
		ID:   b.nextID,
		Name: name,
		Ch:   make(chan reconcile.Change, 32),
		done: make(chan struct{}),
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a consumer and closes its Done channel. Calling it
// again for the same id is a no-op.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subscribers[id]
	if !ok {
		return
	}
	// Don't close Ch here: publishers may have already snapshotted
	// subscribers and will send concurrently.
	delete(b.subscribers, id)
	close(sub.done)
}

// Publish delivers a change to every subscriber. Slow subscribers are
// skipped rather than blocking the stream loop.
func (b *Broker) Publish(c reconcile.Change) {
	b.mu.RLock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.Ch <- c:
		default:
			log.Printf("notify: dropped change for slow subscriber %q", sub.Name)
		}
	}
}

// Count returns the number of active subscribers.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
