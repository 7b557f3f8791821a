package service

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/profilequest/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithGenerator sets the quest and persona generator.
func WithGenerator(g Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.gen = g
		}
	}
}

// WithAvatars sets the avatar source.
func WithAvatars(a Avatars) Option {
	return func(s *Service) {
		if a != nil {
			s.avatars = a
		}
	}
}

// WithRefillThreshold sets the available-quest count below which a
// completion schedules a refill. Zero disables refills.
func WithRefillThreshold(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.refillThreshold = n
		}
	}
}

// WithWorkerCount sets the number of refill workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the refill queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeTTL bounds how long a refill key stays claimed if a job is lost.
func WithDedupeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.dedupeTTL = ttl
		}
	}
}

// WithHistoryLocation sets the zone used when a history request names none.
func WithHistoryLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.historyLoc = loc
		}
	}
}

// WithLookupLimit caps profile lookups.
func WithLookupLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lookupLimit = n
		}
	}
}

// WithClock sets the clock used for completion and history timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
