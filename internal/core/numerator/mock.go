package numerator

import (
	"context"
	"sync"
)

// MockGenerator is a test implementation of Generator.
// Without NextFunc it keeps an in-memory counter per scope key.
type MockGenerator struct {
	NextFunc func(ctx context.Context, scope Scope, opts *Options) (string, error)
	SeedFunc func(ctx context.Context, scope Scope, value int64) error

	mu       sync.Mutex
	counters map[string]int64
}

// Next implements Generator.
func (m *MockGenerator) Next(ctx context.Context, scope Scope, opts *Options) (string, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx, scope, opts)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	m.counters[scope.Key()]++
	return scope.Format(m.counters[scope.Key()])
}

// Seed implements Generator.
func (m *MockGenerator) Seed(ctx context.Context, scope Scope, value int64) error {
	if m.SeedFunc != nil {
		return m.SeedFunc(ctx, scope, value)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	if value > m.counters[scope.Key()] {
		m.counters[scope.Key()] = value
	}
	return nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
