package repository

import "github.com/google/uuid"

// Option configures a store.
type Option func(*options)

type options struct {
	newID func() string
}

func defaultOptions(opts []Option) options {
	o := options{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithIDGenerator replaces the UUID generator used for new rows.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}
