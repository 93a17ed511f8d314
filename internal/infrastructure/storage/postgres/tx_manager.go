package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"invoicer/internal/core/tx"
	"invoicer/pkg/logger"
)

var tracer = otel.Tracer("invoicer/tx")

// Compile-time check that TxManager implements tx.Manager interface.
var _ tx.Manager = (*TxManager)(nil)

// TxOptions configures transaction behavior.
type TxOptions struct {
	// IsolationLevel: pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted
	IsolationLevel pgx.TxIsoLevel

	// AccessMode: pgx.ReadWrite, pgx.ReadOnly
	AccessMode pgx.TxAccessMode

	// StatementTimeout protects against long-running queries
	StatementTimeout time.Duration
}

// DefaultTxOptions returns production-safe defaults.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
	}
}

// IsoLevel maps a domain isolation level onto pgx. IsolationDefault maps to fallback.
func IsoLevel(i tx.Isolation, fallback pgx.TxIsoLevel) pgx.TxIsoLevel {
	switch i {
	case tx.IsolationSerializable:
		return pgx.Serializable
	case tx.IsolationRepeatableRead:
		return pgx.RepeatableRead
	case tx.IsolationReadCommitted:
		return pgx.ReadCommitted
	default:
		return fallback
	}
}

// isolationOf is the inverse of IsoLevel.
func isolationOf(level pgx.TxIsoLevel) tx.Isolation {
	switch level {
	case pgx.Serializable:
		return tx.IsolationSerializable
	case pgx.RepeatableRead:
		return tx.IsolationRepeatableRead
	case pgx.ReadCommitted:
		return tx.IsolationReadCommitted
	default:
		return tx.IsolationDefault
	}
}

// mergeIsoLevel picks the stricter of the configured and the requested level.
func mergeIsoLevel(configured pgx.TxIsoLevel, requested tx.Isolation) pgx.TxIsoLevel {
	return IsoLevel(tx.Stronger(isolationOf(configured), requested), configured)
}

// TxManager manages database transactions with support for:
//   - nested calls joining the transaction in ctx
//   - statement timeout protection
//   - distributed tracing
type TxManager struct {
	pool     *pgxpool.Pool
	defaults TxOptions
}

// NewTxManager creates a new transaction manager.
func NewTxManager(pool *Pool, defaults TxOptions) *TxManager {
	return &TxManager{pool: pool.Pool, defaults: defaults}
}

// txKey is the context key for active transaction.
type txKey struct{}

// RunInTransaction executes fn within a transaction using the default options.
// If a transaction already exists in ctx, it will be reused.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunInTransactionWithOptions(ctx, m.defaults, fn)
}

// RunInTransactionWith implements tx.Manager.
// The requested isolation never weakens the configured default.
func (m *TxManager) RunInTransactionWith(ctx context.Context, opts tx.Options, fn func(ctx context.Context) error) error {
	o := m.defaults
	o.IsolationLevel = mergeIsoLevel(m.defaults.IsolationLevel, opts.Isolation)
	if opts.ReadOnly {
		o.AccessMode = pgx.ReadOnly
	}
	return m.RunInTransactionWithOptions(ctx, o, fn)
}

// RunInTransactionWithOptions executes fn with custom transaction options.
func (m *TxManager) RunInTransactionWithOptions(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	if existing := m.GetTx(ctx); existing != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(opts.IsolationLevel)),
			attribute.String("tx.access_mode", string(opts.AccessMode)),
		))
	defer span.End()

	err := m.startNewTransaction(ctx, opts, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (m *TxManager) startNewTransaction(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) error {
	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   opts.IsolationLevel,
		AccessMode: opts.AccessMode,
	})
	if err != nil {
		return ClassifyError(fmt.Errorf("begin transaction: %w", err))
	}

	if opts.StatementTimeout > 0 {
		_, err = pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds()))
		if err != nil {
			_ = pgTx.Rollback(context.Background())
			return ClassifyError(fmt.Errorf("set statement_timeout: %w", err))
		}
	}

	defer func() {
		if p := recover(); p != nil {
			_ = pgTx.Rollback(context.Background())
			panic(p)
		}
	}()

	txCtx := context.WithValue(ctx, txKey{}, pgTx)

	if err := fn(txCtx); err != nil {
		// Background context so the rollback completes after cancellation.
		if rbErr := pgTx.Rollback(context.Background()); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return ClassifyError(fmt.Errorf("commit transaction: %w", err))
	}

	return nil
}

// GetTx returns the current transaction from context, or nil if none.
func (m *TxManager) GetTx(ctx context.Context) pgx.Tx {
	if t, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return t
	}
	return nil
}

// Querier is satisfied by pgx.Tx and *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the transaction in ctx, or the pool outside a transaction.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.pool
}
