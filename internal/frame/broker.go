package frame

import (
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
)

// subscriberBuffer holds a few seconds of frames at typical poll rates.
const subscriberBuffer = 64

// Broker fans frames out to any number of subscribers. A subscriber that
// falls behind loses frames rather than stalling the node.
type Broker struct {
	mu          sync.Mutex
	subscribers map[string]chan Frame
	closed      bool
	dropped     atomic.Int64
}

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[string]chan Frame)}
}

func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new channel. The ID is used to unsubscribe. After
// Close the returned channel is already closed.
func (b *Broker) Subscribe() (string, <-chan Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := randomID()
	ch := make(chan Frame, subscriberBuffer)
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
}

// Emit delivers f to every subscriber without blocking.
func (b *Broker) Emit(f Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- f:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Dropped returns the number of frames not delivered to a full subscriber.
func (b *Broker) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
