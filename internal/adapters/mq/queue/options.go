package queue

// Option configures the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets how many jobs may wait at once.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}
