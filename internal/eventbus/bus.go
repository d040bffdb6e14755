// Package eventbus fans evaluation status snapshots out to in-process
// subscribers. Every snapshot is complete, so a slow subscriber only ever
// needs the newest one: each subscription buffers a single snapshot and a
// newer publish replaces an unread one.
package eventbus

import (
	"sync"

	"github.com/matthewbaird/acdc/internal/analysis"
	"github.com/matthewbaird/acdc/internal/metrics"
)

// Bus is an in-process status broadcaster.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan analysis.Status
	next    int
	last    analysis.Status
	metrics *metrics.Server
}

// New creates a bus. m may be nil.
func New(m *metrics.Server) *Bus {
	return &Bus{
		subs:    make(map[int]chan analysis.Status),
		metrics: m,
	}
}

// Subscribe registers a subscriber. The returned cancel func removes it and
// closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan analysis.Status, func()) {
	ch := make(chan analysis.Status, 1)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()
	b.metrics.SubscriberDelta(1)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
			b.metrics.SubscriberDelta(-1)
		})
	}
}

// Publish records st as the latest snapshot and delivers it to every
// subscriber without blocking.
func (b *Bus) Publish(st analysis.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = st.Clone()
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- b.last.Clone()
	}
	b.metrics.StatusBroadcast()
}

// Last returns the most recent snapshot, or nil before the first publish.
func (b *Bus) Last() analysis.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last.Clone()
}

// Reset forgets the latest snapshot.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = nil
}
