// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the pgx implementation
// lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Isolation is a transaction isolation level.
type Isolation string

const (
	// IsolationDefault leaves the level chosen by the manager's configuration.
	IsolationDefault        Isolation = ""
	IsolationReadCommitted  Isolation = "read committed"
	IsolationRepeatableRead Isolation = "repeatable read"
	IsolationSerializable   Isolation = "serializable"
)

// Options tune a single top-level transaction.
// They are ignored when the call joins a transaction already in ctx.
type Options struct {
	Isolation Isolation
	ReadOnly  bool
}

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunInTransactionWith is RunInTransaction with explicit options.
	RunInTransactionWith(ctx context.Context, opts Options, fn func(ctx context.Context) error) error
}

// Stronger returns the stricter of two isolation levels.
func Stronger(a, b Isolation) Isolation {
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

func rank(i Isolation) int {
	switch i {
	case IsolationSerializable:
		return 3
	case IsolationRepeatableRead:
		return 2
	case IsolationReadCommitted:
		return 1
	default:
		return 0
	}
}
