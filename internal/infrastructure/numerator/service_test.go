package numerator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/core/apperror"
	corenumerator "invoicer/internal/core/numerator"
	"invoicer/internal/infrastructure/storage/postgres"
)

// Mock objects

type mockRow struct {
	val any
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	switch ptr := dest[0].(type) {
	case *int64:
		*ptr = m.val.(int64)
	case *string:
		*ptr = m.val.(string)
	}
	return nil
}

// mockQuerier simulates sys_sequences and the latest stored number per query.
type mockQuerier struct {
	mu       sync.Mutex
	counters map[string]int64
	latest   string
	err      error
	lastSQL  string
	lastArgs []any
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{counters: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSQL, m.lastArgs = sql, args

	if m.err != nil {
		return &mockRow{err: m.err}
	}
	if strings.Contains(sql, "sys_sequences") {
		key := args[0].(string)
		m.counters[key]++
		return &mockRow{val: m.counters[key]}
	}
	if m.latest == "" {
		return &mockRow{err: pgx.ErrNoRows}
	}
	return &mockRow{val: m.latest}
}

func (m *mockQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSQL, m.lastArgs = sql, args

	if m.err != nil {
		return pgconn.CommandTag{}, m.err
	}
	key, value := args[0].(string), args[1].(int64)
	if value > m.counters[key] {
		m.counters[key] = value
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported by mock")
}

type staticSource struct{ q postgres.Querier }

func (s staticSource) GetQuerier(ctx context.Context) postgres.Querier { return s.q }

func may2025() time.Time { return time.Date(2025, time.May, 20, 0, 0, 0, 0, time.UTC) }

func scanOpts() *corenumerator.Options {
	return &corenumerator.Options{Strategy: corenumerator.StrategyScan}
}

func TestNext_Counter(t *testing.T) {
	q := newMockQuerier()
	svc := New(staticSource{q})
	ctx := context.Background()
	scope := corenumerator.InvoiceScope(may2025())

	seen := map[string]bool{}
	prev := ""
	for i := 1; i <= 25; i++ {
		num, err := svc.Next(ctx, scope, nil)
		require.NoError(t, err)
		assert.False(t, seen[num])
		assert.Greater(t, num, prev)
		seen[num] = true
		prev = num
	}
	assert.Equal(t, "INV2505000025", prev)
	assert.Equal(t, int64(25), q.counters["invoice:INV2505"])
}

func TestNext_CounterScopesAreIndependent(t *testing.T) {
	q := newMockQuerier()
	svc := New(staticSource{q})
	ctx := context.Background()

	n, err := svc.Next(ctx, corenumerator.ItemScope(may2025()), nil)
	require.NoError(t, err)
	assert.Equal(t, "ITM2505000001", n)

	n, err = svc.Next(ctx, corenumerator.ItemScope(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)), nil)
	require.NoError(t, err)
	assert.Equal(t, "ITM2506000001", n)

	admin, _ := corenumerator.UserScope(corenumerator.RoleAdmin, false)
	n, err = svc.Next(ctx, admin, nil)
	require.NoError(t, err)
	assert.Equal(t, "ADM000001", n)
}

func TestNext_CounterExhausted(t *testing.T) {
	q := newMockQuerier()
	q.counters["item:ITM2505"] = corenumerator.MaxSequence
	svc := New(staticSource{q})

	_, err := svc.Next(context.Background(), corenumerator.ItemScope(may2025()), nil)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeSequenceExhausted))
}

func TestNext_Scan(t *testing.T) {
	tests := []struct {
		name   string
		scope  corenumerator.Scope
		latest string
		want   string
	}{
		{"cold start", corenumerator.InvoiceScope(may2025()), "", "INV2505000001"},
		{"increment", corenumerator.InvoiceScope(may2025()), "INV2505000041", "INV2505000042"},
		{"super admin", corenumerator.Scope{Kind: corenumerator.KindUser, Prefix: "SAD"}, "SAD000003", "SAD000004"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newMockQuerier()
			q.latest = tt.latest
			svc := New(staticSource{q})

			got, err := svc.Next(context.Background(), tt.scope, scanOpts())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, q.lastSQL, "LIKE")
			assert.Contains(t, q.lastSQL, "DESC")
			assert.Equal(t, tt.scope.Key()+"%", q.lastArgs[0])
		})
	}
}

func TestNext_ScanMalformed(t *testing.T) {
	q := newMockQuerier()
	q.latest = "INV25050000AB"
	svc := New(staticSource{q})

	_, err := svc.Next(context.Background(), corenumerator.InvoiceScope(may2025()), scanOpts())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeMalformedNumber))
}

func TestNext_DatastoreErrors(t *testing.T) {
	q := newMockQuerier()
	q.err = &pgconn.PgError{Code: "40001"}
	svc := New(staticSource{q})

	_, err := svc.Next(context.Background(), corenumerator.InvoiceScope(may2025()), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsRetryable(err))

	_, err = svc.Next(context.Background(), corenumerator.InvoiceScope(may2025()), scanOpts())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeTransient))
}

func TestSeed_NeverMovesBackwards(t *testing.T) {
	q := newMockQuerier()
	svc := New(staticSource{q})
	ctx := context.Background()
	scope := corenumerator.InvoiceScope(may2025())

	require.NoError(t, svc.Seed(ctx, scope, 41))
	assert.Contains(t, q.lastSQL, "GREATEST")

	n, err := svc.Next(ctx, scope, nil)
	require.NoError(t, err)
	assert.Equal(t, "INV2505000042", n)

	require.NoError(t, svc.Seed(ctx, scope, 10))
	n, err = svc.Next(ctx, scope, nil)
	require.NoError(t, err)
	assert.Equal(t, "INV2505000043", n)

	assert.Error(t, svc.Seed(ctx, scope, corenumerator.MaxSequence+1))
}

func TestScopeFromKey(t *testing.T) {
	s := scopeFromKey(corenumerator.KindInvoice, "INV2505")
	assert.Equal(t, "INV", s.Prefix)
	assert.Equal(t, "2505", s.PeriodKey)

	s = scopeFromKey(corenumerator.KindUser, "ACC")
	assert.Equal(t, "ACC", s.Prefix)
	assert.Empty(t, s.PeriodKey)
}
