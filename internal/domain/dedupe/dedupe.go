// Package dedupe remembers client event ids that were already scored so a
// retried submission is answered with the original event instead of being
// recorded twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Deduper maps client event ids to the ledger sequence they were stored at.
type Deduper interface {
	// Lookup returns the sequence recorded for id, if any.
	Lookup(ctx context.Context, id string) (seq int, ok bool)

	// Record binds id to seq. In bounded mode the oldest entry is evicted
	// once the tracker is full.
	Record(ctx context.Context, id string, seq int)

	Size() int64
}

// Key scopes a client event id to its match.
func Key(matchID, eventID string) string {
	return matchID + "/" + eventID
}

type entry struct {
	id  string
	seq int
}

// inMemoryDeduper keeps entries in insertion order for FIFO eviction.
// maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates an in-memory tracker.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 100_000,
		seen:    make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) Lookup(_ context.Context, id string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, ok := d.seen[id]
	if !ok {
		return 0, false
	}
	return el.Value.(*entry).seq, true //nolint:forcetypeassert // only *entry is stored
}

func (d *inMemoryDeduper) Record(_ context.Context, id string, seq int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[id]; ok {
		el.Value.(*entry).seq = seq //nolint:forcetypeassert // only *entry is stored
		return
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(*entry).id) //nolint:forcetypeassert // only *entry is stored
		d.size.Add(-1)
	}
	d.seen[id] = d.order.PushBack(&entry{id: id, seq: seq})
	d.size.Add(1)
}

// Size returns the number of tracked ids.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
