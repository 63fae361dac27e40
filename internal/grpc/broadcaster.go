package grpc

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-saferoute/internal/models"
)

// subscriberBuffer bounds how far a subscriber may lag. Past that its oldest
// queued snapshots are dropped.
const subscriberBuffer = 100

type subscriber struct {
	sessionID string
	ch        chan *models.Snapshot
}

// Broadcaster fans session snapshots out to subscribers. A subscriber with
// an empty session id receives every session's snapshots.
type Broadcaster struct {
	subscribers map[uint64]subscriber
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]subscriber),
	}
}

func (b *Broadcaster) Subscribe(sessionID string) (uint64, chan *models.Snapshot) {
	id := b.nextID.Add(1)
	ch := make(chan *models.Snapshot, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = subscriber{sessionID: sessionID, ch: ch}
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

// Publish delivers s to the subscribers of its session. Each subscriber gets
// its own copy. A full subscriber loses its oldest queued snapshot, never s.
func (b *Broadcaster) Publish(s *models.Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.sessionID != "" && sub.sessionID != s.SessionID {
			continue
		}
		deliver(sub.ch, s.Clone())
	}
}

func deliver(ch chan *models.Snapshot, s *models.Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// CloseSession ends every stream following sessionID.
func (b *Broadcaster) CloseSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		if sub.sessionID == sessionID {
			close(sub.ch)
			delete(b.subscribers, id)
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
