//go:build integration

package numerator_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	corenumerator "invoicer/internal/core/numerator"
	"invoicer/internal/core/retry"
	"invoicer/internal/domain/catalogs/item"
	"invoicer/internal/domain/numbering"
	infranumerator "invoicer/internal/infrastructure/numerator"
	"invoicer/internal/infrastructure/storage/postgres"
	"invoicer/internal/infrastructure/storage/postgres/catalog_repo"
)

type testDB struct {
	pool *postgres.Pool
	txm  *postgres.TxManager
	gen  *infranumerator.Service
}

func newTestDB(t *testing.T) *testDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("invoicer_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := postgres.NewMigrator(dsn)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))
	require.NoError(t, m.Close())

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	txm := postgres.NewTxManager(pool, postgres.DefaultTxOptions())
	return &testDB{pool: pool, txm: txm, gen: infranumerator.New(txm)}
}

func (db *testDB) numbers(strategy corenumerator.Strategy) *numbering.Service {
	clock := corenumerator.FixedClock(time.Date(2025, time.May, 14, 0, 0, 0, 0, time.UTC))
	return numbering.NewService(db.gen, db.txm, clock, numbering.Config{
		Strategies: map[corenumerator.Kind]corenumerator.Strategy{
			corenumerator.KindInvoice: strategy,
			corenumerator.KindItem:    strategy,
			corenumerator.KindUser:    strategy,
		},
	})
}

func retryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 20,
		Delay:       5 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		Backoff:     retry.BackoffExponential,
	}
}

func TestCounter_ConcurrentAllocationsAreUniqueAndGapless(t *testing.T) {
	db := newTestDB(t)
	svc := db.numbers(corenumerator.StrategyCounter)

	const workers = 25
	results := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := retryPolicy().Do(context.Background(), func(ctx context.Context) error {
				n, err := svc.AllocateInvoiceNumber(ctx)
				results[i] = n
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sort.Strings(results)
	assert.Equal(t, "INV2505000001", results[0])
	assert.Equal(t, "INV2505000025", results[workers-1])
	for i := 1; i < workers; i++ {
		assert.NotEqual(t, results[i-1], results[i])
	}
}

func TestCounter_RolledBackAllocationIsReused(t *testing.T) {
	db := newTestDB(t)
	svc := db.numbers(corenumerator.StrategyCounter)
	ctx := context.Background()

	boom := errors.New("insert failed")
	err := db.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := svc.AllocateItemNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, "ITM2505000001", n)
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := svc.AllocateItemNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ITM2505000001", n)
}

func TestScan_ConcurrentItemCreation(t *testing.T) {
	db := newTestDB(t)
	svc := db.numbers(corenumerator.StrategyScan)
	items := item.NewService(catalog_repo.NewItemRepo(db.txm), db.txm, svc, nil)

	const workers = 10
	numbers := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			it := item.NewItem("Consulting hour", decimal.RequireFromString("95.00"), "EUR")
			err := retryPolicy().Do(context.Background(), func(ctx context.Context) error {
				return items.Create(ctx, it)
			})
			assert.NoError(t, err)
			numbers[i] = it.ItemNumber
		}(i)
	}
	wg.Wait()

	sort.Strings(numbers)
	assert.Equal(t, "ITM2505000001", numbers[0])
	assert.Equal(t, "ITM2505000010", numbers[workers-1])
	for i := 1; i < workers; i++ {
		assert.NotEqual(t, numbers[i-1], numbers[i])
	}
}

func TestSyncCounters_AfterScan(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	scan := db.numbers(corenumerator.StrategyScan)
	items := item.NewService(catalog_repo.NewItemRepo(db.txm), db.txm, scan, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, items.Create(ctx, item.NewItem("Widget", decimal.NewFromInt(10), "EUR")))
	}

	counter := db.numbers(corenumerator.StrategyCounter)

	marks, err := counter.SyncCounters(ctx, db.gen, true)
	require.NoError(t, err)
	var itemMark *corenumerator.Mark
	for i := range marks {
		if marks[i].Scope.Kind == corenumerator.KindItem {
			itemMark = &marks[i]
		}
	}
	require.NotNil(t, itemMark)
	assert.Equal(t, "ITM2505000003", itemMark.Latest)
	assert.Equal(t, int64(3), itemMark.Sequence)

	// dry run leaves the counter alone
	var rows int
	require.NoError(t, db.pool.QueryRow(ctx, "SELECT count(*) FROM sys_sequences").Scan(&rows))
	assert.Zero(t, rows)

	_, err = counter.SyncCounters(ctx, db.gen, false)
	require.NoError(t, err)

	n, err := counter.AllocateItemNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ITM2505000004", n)
}
