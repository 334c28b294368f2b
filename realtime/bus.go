package realtime

import (
	"sync"
	"sync/atomic"

	"github.com/yeremiapane/restaurant-floor-sync/protocol"
)

// Handler receives decoded events in transport order.
type Handler func(msg protocol.Message)

type subscriber struct {
	filter  map[protocol.EventKind]struct{}
	handler Handler
	active  atomic.Bool
}

func (s *subscriber) wants(kind protocol.EventKind) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[kind]
	return ok
}

// Bus fans one incoming event out to every local subscriber.
// Subscribe and unsubscribe are safe while a dispatch is running.
type Bus struct {
	mu   sync.RWMutex
	subs []*subscriber
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for the given kinds; an empty filter means every kind.
// The returned func removes exactly this subscription and may be called more than once.
func (b *Bus) Subscribe(filter []protocol.EventKind, h Handler) (unsubscribe func()) {
	s := &subscriber{handler: h}
	if len(filter) > 0 {
		s.filter = make(map[protocol.EventKind]struct{}, len(filter))
		for _, k := range filter {
			s.filter[k] = struct{}{}
		}
	}
	s.active.Store(true)

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.active.Store(false)
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, existing := range b.subs {
				if existing == s {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Dispatch delivers msg to matching subscribers in subscription order.
// A subscriber removed mid-dispatch is skipped if it has not run yet.
func (b *Bus) Dispatch(msg protocol.Message) {
	b.mu.RLock()
	snapshot := make([]*subscriber, len(b.subs))
	copy(snapshot, b.subs)
	b.mu.RUnlock()

	for _, s := range snapshot {
		if !s.active.Load() || !s.wants(msg.Kind) {
			continue
		}
		s.handler(msg)
	}
}

func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
