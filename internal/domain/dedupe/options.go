package dedupe

import "time"

// Option configures the in-memory deduper.
type Option func(*options)

type options struct {
	maxSize int
	ttl     time.Duration
}

// WithMaxSize bounds the number of held keys. Values <= 0 mean unbounded.
func WithMaxSize(maxSize int) Option {
	return func(o *options) {
		if maxSize < 0 {
			maxSize = 0
		}
		o.maxSize = maxSize
	}
}

// WithTTL sets how long a key stays held without being released.
// Values <= 0 keep keys until released or evicted.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl <= 0 {
			ttl = 0
		}
		o.ttl = ttl
	}
}
