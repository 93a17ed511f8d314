package tx

import (
	"context"
	"sync"
)

type fakeTxKey struct{}

// FakeManager is an in-memory Manager for unit tests. It records how many
// top-level transactions were opened, committed and rolled back, and
// reuses the transaction already present in ctx the way a real manager does.
type FakeManager struct {
	mu         sync.Mutex
	Begun      int
	Committed  int
	RolledBack int
	LastOpts   Options
}

// RunInTransaction implements Manager.
func (m *FakeManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWith(ctx, Options{}, fn)
}

// RunInTransactionWith implements Manager.
func (m *FakeManager) RunInTransactionWith(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	if InFakeTx(ctx) {
		return fn(ctx)
	}

	m.mu.Lock()
	m.Begun++
	m.LastOpts = opts
	m.mu.Unlock()

	err := fn(context.WithValue(ctx, fakeTxKey{}, true))

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.RolledBack++
		return err
	}
	m.Committed++
	return nil
}

// InFakeTx reports whether ctx carries a FakeManager transaction.
func InFakeTx(ctx context.Context) bool {
	v, _ := ctx.Value(fakeTxKey{}).(bool)
	return v
}

var _ Manager = (*FakeManager)(nil)
