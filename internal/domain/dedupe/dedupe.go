// Package dedupe tracks in-flight keys so a piece of work runs at most once
// at a time. Entries expire after a TTL so a lost release cannot block a key
// forever.
package dedupe

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Deduper records keys for at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key is held and records it if not.
	// Returns true if key was already held.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord releases key so it can be recorded again.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Defaults.
const (
	DefaultMaxSize = 50000
	DefaultTTL     = 5 * time.Minute
)

type lruDeduper struct {
	mu   sync.Mutex // makes check-then-add atomic
	seen *expirable.LRU[string, struct{}]
}

// NewInMemoryDeduper creates a bounded deduper backed by an expirable LRU.
// When full, the least recently recorded key is evicted.
func NewInMemoryDeduper(opts ...Option) Deduper {
	o := options{maxSize: DefaultMaxSize, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return &lruDeduper{seen: expirable.NewLRU[string, struct{}](o.maxSize, nil, o.ttl)}
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen.Peek(key); ok {
		return true
	}
	d.seen.Add(key, struct{}{})
	return false
}

func (d *lruDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen.Remove(key)
}

func (d *lruDeduper) Size() int64 {
	return int64(d.seen.Len())
}
