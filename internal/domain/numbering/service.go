// Package numbering allocates invoice, item and user numbers.
//
// Every allocation runs inside a transaction. Called from within an
// entity-creating transaction, the allocation joins it, so the number and
// the row that uses it commit or roll back together.
package numbering

import (
	"context"
	"fmt"

	"invoicer/internal/core/apperror"
	"invoicer/internal/core/numerator"
	"invoicer/internal/core/tx"
	"invoicer/pkg/logger"
)

// Config selects a strategy per kind.
type Config struct {
	Strategies       map[numerator.Kind]numerator.Strategy
	AllowUnknownRole bool
}

// Inspector reports the highest stored number of every scope.
type Inspector interface {
	HighWaterMarks(ctx context.Context) ([]numerator.Mark, error)
}

// Service is the sequential number allocator.
type Service struct {
	gen   numerator.Generator
	txm   tx.Manager
	clock numerator.Clock
	cfg   Config
}

// NewService creates the allocator. A nil clock means numerator.SystemClock.
func NewService(gen numerator.Generator, txm tx.Manager, clock numerator.Clock, cfg Config) *Service {
	if clock == nil {
		clock = numerator.SystemClock
	}
	return &Service{gen: gen, txm: txm, clock: clock, cfg: cfg}
}

// Strategy returns the configured strategy of kind.
func (s *Service) Strategy(kind numerator.Kind) numerator.Strategy {
	if st, ok := s.cfg.Strategies[kind]; ok && st != "" {
		return st
	}
	return numerator.StrategyCounter
}

// TxOptions returns the options a transaction allocating a number of kind
// must be opened with. The scan strategy needs SERIALIZABLE.
func (s *Service) TxOptions(kind numerator.Kind) tx.Options {
	if s.Strategy(kind) == numerator.StrategyScan {
		return tx.Options{Isolation: tx.IsolationSerializable}
	}
	return tx.Options{}
}

// InvoiceScope is the current invoice scope.
func (s *Service) InvoiceScope() numerator.Scope {
	return numerator.InvoiceScope(s.clock.Now())
}

// ItemScope is the current item scope.
func (s *Service) ItemScope() numerator.Scope {
	return numerator.ItemScope(s.clock.Now())
}

// UserScope is the scope of role. Unknown roles fail validation unless
// AllowUnknownRole is set.
func (s *Service) UserScope(role string) (numerator.Scope, error) {
	return numerator.UserScope(role, s.cfg.AllowUnknownRole)
}

// AllocateInvoiceNumber returns the next invoice number, e.g. INV2505000007.
func (s *Service) AllocateInvoiceNumber(ctx context.Context) (string, error) {
	return s.Allocate(ctx, s.InvoiceScope())
}

// AllocateItemNumber returns the next item number, e.g. ITM2506000001.
func (s *Service) AllocateItemNumber(ctx context.Context) (string, error) {
	return s.Allocate(ctx, s.ItemScope())
}

// AllocateUserNumber returns the next number for a user of role, e.g. SAD000004.
func (s *Service) AllocateUserNumber(ctx context.Context, role string) (string, error) {
	scope, err := s.UserScope(role)
	if err != nil {
		return "", err
	}
	return s.Allocate(ctx, scope)
}

// Allocate returns the next number of scope inside a transaction.
// It joins the transaction already in ctx, if any.
func (s *Service) Allocate(ctx context.Context, scope numerator.Scope) (string, error) {
	var number string
	err := s.txm.RunInTransactionWith(ctx, s.TxOptions(scope.Kind), func(ctx context.Context) error {
		n, err := s.gen.Next(ctx, scope, &numerator.Options{Strategy: s.Strategy(scope.Kind)})
		if err != nil {
			return err
		}
		number = n
		return nil
	})
	if err != nil {
		if !apperror.IsAppError(err) {
			return "", fmt.Errorf("allocate %s: %w", scope, err)
		}
		return "", err
	}
	return number, nil
}

// SyncCounters raises every counter row to the highest number already stored,
// so switching a scope from scan to counter never reissues a number.
// With dryRun nothing is written.
func (s *Service) SyncCounters(ctx context.Context, inspector Inspector, dryRun bool) ([]numerator.Mark, error) {
	var marks []numerator.Mark
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		marks, err = inspector.HighWaterMarks(ctx)
		if err != nil {
			return err
		}
		for _, m := range marks {
			if dryRun {
				logger.Info(ctx, "would seed sequence", "scope", m.Scope.Key(), "value", m.Sequence, "latest", m.Latest)
				continue
			}
			if err := s.gen.Seed(ctx, m.Scope, m.Sequence); err != nil {
				return fmt.Errorf("seed %s: %w", m.Scope, err)
			}
			logger.Info(ctx, "sequence seeded", "scope", m.Scope.Key(), "value", m.Sequence)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marks, nil
}
