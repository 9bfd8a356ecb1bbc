// cmd/dogenode/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rovshanmuradov/dogenode/internal/accrual"
	"github.com/rovshanmuradov/dogenode/internal/bot"
	"github.com/rovshanmuradov/dogenode/internal/config"
	"github.com/rovshanmuradov/dogenode/internal/dashboard"
	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/milestone"
	"github.com/rovshanmuradov/dogenode/internal/scheduler"
	"github.com/rovshanmuradov/dogenode/internal/session"
	"github.com/rovshanmuradov/dogenode/internal/store"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := store.Open(ctx, cfg.Store)
	if err != nil {
		logging.Error("Error opening local store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	state := store.NewState(kv, clock)
	defer state.Close()

	hub := events.NewHub()
	client := ledger.NewClient(cfg.APIURL, cfg.APITimeout, cfg.APIRetryAttempts)
	seed := time.Now().UnixNano()

	engine := session.New(session.ConfigFrom(cfg), session.Deps{
		State:     state,
		Ledger:    client,
		Events:    hub,
		Tracker:   milestone.NewTracker(state, hub),
		Amounts:   accrual.NewRandomSource(seed),
		Bandwidth: accrual.NewRandomSource(seed + 1),
		Clock:     clock,
	})
	if err := engine.Run(ctx); err != nil {
		logging.Error("Error starting session engine", zap.Error(err))
		os.Exit(1)
	}
	defer engine.Dispose()

	jobs, err := scheduler.New(engine, scheduler.Intervals{
		Health:         cfg.HealthInterval,
		Price:          cfg.PriceInterval,
		WithdrawalPoll: cfg.WithdrawalPoll,
	})
	if err != nil {
		logging.Error("Error creating scheduler", zap.Error(err))
		os.Exit(1)
	}
	jobs.Start()

	var dash *dashboard.Server
	if cfg.DashboardAddr != "" {
		dash = dashboard.New(cfg.DashboardAddr, engine, hub)
		go func() {
			if err := dash.Start(); err != nil {
				logging.Error("Dashboard stopped", zap.Error(err))
			}
		}()
	}

	var tg *bot.Bot
	if cfg.TelegramToken != "" {
		tg, err = bot.NewBot(cfg.TelegramToken, cfg.TelegramOwnerID, engine, hub)
		if err != nil {
			logging.Error("Error creating bot", zap.Error(err))
		} else {
			go tg.Start()
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logging.Info("Shutting down...")

	if tg != nil {
		tg.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if dash != nil {
		if err := dash.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Dashboard shutdown failed", zap.Error(err))
		}
	}
	if err := jobs.Shutdown(); err != nil {
		logging.Warn("Scheduler shutdown failed", zap.Error(err))
	}
}
