// cmd/ledgerd/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rovshanmuradov/dogenode/internal/config"
	"github.com/rovshanmuradov/dogenode/internal/db"
	"github.com/rovshanmuradov/dogenode/internal/ledgerserver"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	if err := logging.Init(logging.Config(cfg.Log)); err != nil {
		log.Fatalf("Error initializing logging: %v", err)
	}
	defer logging.Sync()

	// Without DATABASE_URL the ledger keeps its data in a local sqlite file.
	driver, dsn := db.DriverSQLite, "ledger.db"
	if cfg.Ledger.DatabaseURL != "" {
		driver, dsn = db.DriverPostgres, cfg.Ledger.DatabaseURL
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gdb, err := db.Open(ctx, driver, dsn)
	if err != nil {
		logging.Error("Error connecting to the database", zap.Error(err))
		os.Exit(1)
	}
	defer db.Close(gdb)

	if cfg.Ledger.MigrationsEnabled {
		if err := db.Migrate(gdb, driver, dsn); err != nil {
			logging.Error("Error running migrations", zap.Error(err))
			os.Exit(1)
		}
	}
	if driver == db.DriverPostgres {
		db.LogTableStructure(gdb, "accounts")
		db.LogTableStructure(gdb, "ledger_entries")
	}

	svc := ledgerserver.NewService(gdb, ledgerserver.Options{
		WithdrawalFee: cfg.Ledger.WithdrawalFee,
		ExplorerURL:   cfg.Ledger.ExplorerURL,
		Price:         cfg.DefaultPrice,
		Chain:         cfg.WithdrawChain,
	}, clockwork.NewRealClock())

	settler, err := ledgerserver.NewSettler(svc, cfg.Ledger.SettleInterval)
	if err != nil {
		logging.Error("Error creating settlement worker", zap.Error(err))
		os.Exit(1)
	}
	settler.Start()

	srv := ledgerserver.NewServer(cfg.Ledger.Addr, cfg.Ledger.CORSOrigins, svc)
	go func() {
		if err := srv.Start(); err != nil {
			logging.Error("Ledger server stopped", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logging.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("Ledger server shutdown failed", zap.Error(err))
	}
	if err := settler.Shutdown(); err != nil {
		logging.Warn("Settlement worker shutdown failed", zap.Error(err))
	}
}
