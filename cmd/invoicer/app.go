package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"invoicer/internal/core/numerator"
	"invoicer/internal/domain/auth"
	"invoicer/internal/domain/numbering"
	infranumerator "invoicer/internal/infrastructure/numerator"
	"invoicer/internal/infrastructure/storage/postgres"
	"invoicer/pkg/config"
	"invoicer/pkg/logger"
)

// app holds the process-wide infrastructure shared by all commands.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	pool      *postgres.Pool
	txManager *postgres.TxManager
	generator *infranumerator.Service
	numbers   *numbering.Service
}

// loadApp reads configuration and sets up logging. The database is opened
// separately so commands that do not need it stay offline.
func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	return &app{cfg: cfg, log: log.WithComponent(cfg.App.Name)}, nil
}

// openDatabase connects the pool and builds the transaction manager and allocator.
func (a *app) openDatabase(ctx context.Context) error {
	poolCfg := postgres.DefaultPoolConfig(a.cfg.Database.URL)
	poolCfg.ApplicationName = a.cfg.App.Name
	poolCfg.MaxConns = a.cfg.Database.MaxConns
	poolCfg.MinConns = a.cfg.Database.MinConns
	poolCfg.MaxConnLifetime = a.cfg.Database.MaxConnLifetime
	poolCfg.MaxConnIdleTime = a.cfg.Database.MaxConnIdleTime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return err
	}
	a.pool = pool

	txDefaults := postgres.DefaultTxOptions()
	txDefaults.IsolationLevel = postgres.IsoLevel(a.cfg.Database.Isolation, pgx.ReadCommitted)
	txDefaults.StatementTimeout = a.cfg.Database.StatementTimeout
	a.txManager = postgres.NewTxManager(pool, txDefaults)

	clock, err := a.cfg.Numbering.Clock()
	if err != nil {
		return err
	}

	a.generator = infranumerator.New(a.txManager)
	a.numbers = numbering.NewService(a.generator, a.txManager, clock, numbering.Config{
		Strategies: map[numerator.Kind]numerator.Strategy{
			numerator.KindInvoice: a.cfg.Numbering.StrategyFor(numerator.KindInvoice),
			numerator.KindItem:    a.cfg.Numbering.StrategyFor(numerator.KindItem),
			numerator.KindUser:    a.cfg.Numbering.StrategyFor(numerator.KindUser),
		},
		AllowUnknownRole: a.cfg.Numbering.AllowUnknownRole,
	})

	a.log.Infow("database connection established",
		"max_conns", poolCfg.MaxConns,
		"isolation", a.cfg.Database.Isolation,
		"invoice_strategy", a.cfg.Numbering.InvoiceStrategy,
		"numbering_timezone", a.cfg.Numbering.Timezone,
	)
	return nil
}

func (a *app) jwtService() *auth.JWTService {
	jwtCfg := auth.DefaultJWTConfig(a.cfg.JWT.Secret)
	if a.cfg.JWT.Issuer != "" {
		jwtCfg.Issuer = a.cfg.JWT.Issuer
	}
	if a.cfg.JWT.TokenTTL > 0 {
		jwtCfg.AccessTokenTTL = a.cfg.JWT.TokenTTL
	}
	return auth.NewJWTService(jwtCfg)
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
	_ = a.log.Sync()
}
