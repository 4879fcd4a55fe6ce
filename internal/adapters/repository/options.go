package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithLimit caps how many records are kept per user.
func WithLimit(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.limit = n
		}
	}
}
