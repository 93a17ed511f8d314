package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"invoicer/internal/domain/catalogs/item"
	"invoicer/internal/domain/catalogs/user"
	"invoicer/internal/domain/documents/invoice"
	"invoicer/internal/domain/vat"
	v1 "invoicer/internal/infrastructure/http/v1"
	"invoicer/internal/infrastructure/storage/postgres"
	"invoicer/internal/infrastructure/storage/postgres/catalog_repo"
	"invoicer/internal/infrastructure/storage/postgres/document_repo"
)

func newServeCommand() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "Apply pending migrations before serving")

	return cmd
}

func runServe(ctx context.Context, migrateFirst bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	log := a.log
	log.Infow("starting invoicer", "env", a.cfg.App.Env, "version", a.cfg.App.Version)

	if a.cfg.JWT.Secret == "" {
		log.Warn("jwt.secret is empty, tokens are signed with an empty key")
	}

	if migrateFirst {
		if err := runMigrations(ctx, a.cfg.Database.URL); err != nil {
			return err
		}
	}

	if err := a.openDatabase(ctx); err != nil {
		return err
	}

	vatCfg, err := vat.ConfigFromFile(a.cfg.VAT.HomeCountry, a.cfg.VAT.RulesFile)
	if err != nil {
		return fmt.Errorf("load vat rules: %w", err)
	}
	vatService, err := vat.NewService(vatCfg)
	if err != nil {
		return fmt.Errorf("init vat: %w", err)
	}

	auditService, err := postgres.NewAuditService(a.txManager)
	if err != nil {
		return err
	}
	outbox := postgres.NewOutboxPublisher(a.txManager)

	itemService := item.NewService(catalog_repo.NewItemRepo(a.txManager), a.txManager, a.numbers, auditService)
	userService := user.NewService(catalog_repo.NewUserRepo(a.txManager), a.txManager, a.numbers, auditService)
	invoiceService := invoice.NewService(invoice.Deps{
		Repo:      document_repo.NewInvoiceRepo(a.txManager),
		TxManager: a.txManager,
		Numbers:   a.numbers,
		Customers: userService,
		Items:     itemService,
		VAT:       vatService,
		Auditor:   auditService,
		Publisher: outbox,
	})

	router := v1.NewRouter(v1.RouterConfig{
		DB:           a.pool,
		AppName:      a.cfg.App.Name,
		Version:      a.cfg.App.Version,
		Logger:       log,
		JWTValidator: a.jwtService(),
		Retry:        a.cfg.Retry.Policy(),
		Numbers:      a.numbers,
		Items:        itemService,
		Users:        userService,
		Invoices:     invoiceService,
		VAT:          vatService,
		Audit:        auditService,
	})

	server := &http.Server{
		Addr:         ":" + a.cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("server starting", "port", a.cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	log.Info("shutting down server...")
	postgres.LogPoolStats(ctx, a.pool)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
