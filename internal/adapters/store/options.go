package store

import (
	"github.com/okian/gridrace/internal/domain/schedule"
)

// Option applies a configuration option to the Memory store.
type Option func(*Memory)

// WithSeedUsers registers the users from the master data file.
func WithSeedUsers(users []schedule.SeedUser) Option {
	return func(m *Memory) {
		m.seedUsers = users
	}
}

// WithGeneratedUsers registers n extra users with generated tokens; the
// tokens are logged at startup. Intended for bootstrap/test runs.
func WithGeneratedUsers(n int) Option {
	return func(m *Memory) {
		if n > 0 {
			m.generate = n
		}
	}
}
