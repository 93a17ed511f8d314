// Package numerator provides the PostgreSQL implementation of sequential numbering.
// It implements core/numerator.Generator.
package numerator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	corenumerator "invoicer/internal/core/numerator"
	"invoicer/internal/infrastructure/storage/postgres"
	"invoicer/pkg/logger"
)

var tracer = otel.Tracer("invoicer/numerator")

// QuerierSource hands out the querier bound to ctx: the active transaction
// when there is one. *postgres.TxManager satisfies it.
type QuerierSource interface {
	GetQuerier(ctx context.Context) postgres.Querier
}

// Target is the table column holding the numbers of one kind.
type Target struct {
	Table  string
	Column string
}

// DefaultTargets are the number columns of the schema.
var DefaultTargets = map[corenumerator.Kind]Target{
	corenumerator.KindInvoice: {Table: "invoices", Column: "invoice_number"},
	corenumerator.KindItem:    {Table: "items", Column: "item_number"},
	corenumerator.KindUser:    {Table: "users", Column: "user_number"},
}

const (
	counterNextSQL = `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE
		SET current_val = sys_sequences.current_val + 1, updated_at = now()
		RETURNING current_val`

	counterSeedSQL = `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE
		SET current_val = GREATEST(sys_sequences.current_val, EXCLUDED.current_val), updated_at = now()`
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Service allocates numbers on the transaction carried by ctx.
type Service struct {
	source  QuerierSource
	targets map[corenumerator.Kind]Target
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator service over the default schema.
func New(source QuerierSource) *Service {
	return &Service{source: source, targets: DefaultTargets}
}

// Next implements corenumerator.Generator.
func (s *Service) Next(ctx context.Context, scope corenumerator.Scope, opts *corenumerator.Options) (string, error) {
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	ctx, span := tracer.Start(ctx, "numerator.Next",
		trace.WithAttributes(
			attribute.String("numerator.kind", string(scope.Kind)),
			attribute.String("numerator.scope", scope.Key()),
			attribute.String("numerator.strategy", string(opts.Strategy)),
		))
	defer span.End()

	var (
		number string
		seq    int64
		err    error
	)
	switch opts.Strategy {
	case corenumerator.StrategyScan:
		number, seq, err = s.nextScan(ctx, scope)
	default:
		number, seq, err = s.nextCounter(ctx, scope)
	}
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	span.SetAttributes(attribute.Int64("numerator.sequence", seq))
	logger.Debug(ctx, "number allocated",
		"scope", scope.Key(),
		"sequence", seq,
		"strategy", opts.Strategy)

	return number, nil
}

// nextCounter bumps the scope's counter row. The row lock is held until the
// surrounding transaction ends, so concurrent callers of the same scope queue.
func (s *Service) nextCounter(ctx context.Context, scope corenumerator.Scope) (string, int64, error) {
	var seq int64
	err := s.source.GetQuerier(ctx).QueryRow(ctx, counterNextSQL, counterKey(scope)).Scan(&seq)
	if err != nil {
		return "", 0, postgres.ClassifyError(fmt.Errorf("bump counter %s: %w", scope.Key(), err))
	}

	number, err := scope.Format(seq)
	if err != nil {
		return "", 0, err
	}
	return number, seq, nil
}

// nextScan reads the latest stored number of the scope and adds one.
// Numbers are fixed width, so the lexicographic maximum is the numeric one.
func (s *Service) nextScan(ctx context.Context, scope corenumerator.Scope) (string, int64, error) {
	target, ok := s.targets[scope.Kind]
	if !ok {
		return "", 0, fmt.Errorf("numerator: no scan target for kind %s", scope.Kind)
	}

	query, args, err := psql.
		Select(target.Column).
		From(target.Table).
		Where(sq.Like{target.Column: scope.Key() + "%"}).
		Where(sq.Eq{"length(" + target.Column + ")": len(scope.Key()) + corenumerator.SequenceWidth}).
		OrderBy(target.Column + " DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return "", 0, fmt.Errorf("build scan query: %w", err)
	}

	var latest string
	err = s.source.GetQuerier(ctx).QueryRow(ctx, query, args...).Scan(&latest)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "", 0, postgres.ClassifyError(fmt.Errorf("scan latest %s: %w", scope.Key(), err))
	}

	return scope.Next(latest)
}

// Seed implements corenumerator.Generator. The counter never moves backwards.
func (s *Service) Seed(ctx context.Context, scope corenumerator.Scope, value int64) error {
	if value < 0 || value > corenumerator.MaxSequence {
		return fmt.Errorf("numerator: seed value %d out of range", value)
	}
	_, err := s.source.GetQuerier(ctx).Exec(ctx, counterSeedSQL, counterKey(scope), value)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("seed counter %s: %w", scope.Key(), err))
	}
	return nil
}

type markRow struct {
	Key    string `db:"key"`
	Latest string `db:"latest"`
}

// HighWaterMarks returns the highest stored number of every scope found in
// the number columns.
func (s *Service) HighWaterMarks(ctx context.Context) ([]corenumerator.Mark, error) {
	var marks []corenumerator.Mark

	for _, kind := range []corenumerator.Kind{corenumerator.KindInvoice, corenumerator.KindItem, corenumerator.KindUser} {
		target, ok := s.targets[kind]
		if !ok {
			continue
		}

		col := target.Column
		query, args, err := psql.
			Select(
				fmt.Sprintf("substr(%s, 1, length(%s) - %d) AS key", col, col, corenumerator.SequenceWidth),
				fmt.Sprintf("max(%s) AS latest", col),
			).
			From(target.Table).
			Where(sq.GtOrEq{"length(" + col + ")": corenumerator.SequenceWidth}).
			GroupBy("1").
			OrderBy("1").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build high-water query: %w", err)
		}

		var rows []markRow
		if err := pgxscan.Select(ctx, s.source.GetQuerier(ctx), &rows, query, args...); err != nil {
			return nil, postgres.ClassifyError(fmt.Errorf("high-water %s: %w", target.Table, err))
		}

		for _, r := range rows {
			scope := scopeFromKey(kind, r.Key)
			seq, err := scope.ParseSequence(r.Latest)
			if err != nil {
				return nil, err
			}
			marks = append(marks, corenumerator.Mark{Scope: scope, Latest: r.Latest, Sequence: seq})
		}
	}

	return marks, nil
}

// counterKey namespaces counter rows by kind so that an empty user prefix
// never collides with another kind.
func counterKey(scope corenumerator.Scope) string {
	return strings.ToLower(string(scope.Kind)) + ":" + scope.Key()
}

func scopeFromKey(kind corenumerator.Kind, key string) corenumerator.Scope {
	switch kind {
	case corenumerator.KindInvoice, corenumerator.KindItem:
		if len(key) > 3 {
			return corenumerator.Scope{Kind: kind, Prefix: key[:3], PeriodKey: key[3:]}
		}
	}
	return corenumerator.Scope{Kind: kind, Prefix: key}
}
