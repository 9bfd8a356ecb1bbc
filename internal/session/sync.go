// internal/session/sync.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// status is the passive backend indicator shown to the user.
type status struct {
	mu       sync.RWMutex
	known    bool
	online   bool
	services map[string]bool
	lastSync time.Time
	price    decimal.Decimal
}

type Status struct {
	Online   bool            `json:"online"`
	Known    bool            `json:"known"`
	Services map[string]bool `json:"services,omitempty"`
	LastSync *time.Time      `json:"lastSync,omitempty"`
	Price    decimal.Decimal `json:"price"`
}

func (e *Engine) Status() Status {
	e.status.mu.RLock()
	defer e.status.mu.RUnlock()

	s := Status{
		Online: e.status.online,
		Known:  e.status.known,
		Price:  e.status.price,
	}
	if len(e.status.services) > 0 {
		s.Services = make(map[string]bool, len(e.status.services))
		for k, v := range e.status.services {
			s.Services[k] = v
		}
	}
	if !e.status.lastSync.IsZero() {
		t := e.status.lastSync
		s.LastSync = &t
	}
	return s
}

func (e *Engine) setOnline(online bool, err error) {
	e.status.mu.Lock()
	changed := !e.status.known || e.status.online != online
	e.status.known = true
	e.status.online = online
	e.status.mu.Unlock()

	if !changed {
		return
	}
	if online {
		logging.Info("Backend connection established")
	} else {
		logging.Warn("Backend unreachable, working offline", zap.Error(err))
	}
	e.events.Publish(events.TypeStatus, e.Status())
}

func (e *Engine) markOnline()           { e.setOnline(true, nil) }
func (e *Engine) markOffline(err error) { e.setOnline(false, err) }

// SyncWithBackend overwrites the cached balance and totals with the ledger's.
// Without a connected wallet it does nothing.
func (e *Engine) SyncWithBackend(ctx context.Context) error {
	w := e.currentWallet()
	if w == nil {
		return nil
	}

	b, err := e.ledger.GetBalance(ctx, w.UserID)
	if err != nil {
		e.markOffline(err)
		return err
	}
	e.markOnline()

	now := e.clock.Now()
	user, err := e.state.UpdateUser(ctx, func(u *models.User) error {
		u.ApplyRemote(b.Balance, b.TotalEarnings, b.TodayEarnings, now)
		return nil
	})
	if err != nil {
		return err
	}

	e.status.mu.Lock()
	e.status.lastSync = now
	e.status.mu.Unlock()

	logging.Debug("Synced with backend", zap.String("userId", w.UserID), zap.String("balance", user.Balance.String()))
	e.events.Publish(events.TypeSync, user)
	return nil
}

func (e *Engine) syncTick(ctx context.Context) {
	if err := e.SyncWithBackend(ctx); err != nil {
		e.logger().Warn("Backend sync failed", zap.Error(err))
	}
}

// LoadUser rolls the day over if needed and, with a wallet connected, pulls
// the remote totals. Sync failures only mark the backend offline.
func (e *Engine) LoadUser(ctx context.Context) (models.User, error) {
	now := e.clock.Now()
	var rolled bool
	user, err := e.state.UpdateUser(ctx, func(u *models.User) error {
		rolled = u.RollDay(now)
		return nil
	})
	if err != nil {
		return user, err
	}
	if rolled {
		logging.Info("New day, today's earnings reset")
	}

	if _, err := e.Wallet(ctx); err != nil {
		return user, err
	}
	if err := e.SyncWithBackend(ctx); err != nil {
		e.logger().Warn("Initial sync failed", zap.Error(err))
		return user, nil
	}
	return e.state.User(ctx)
}

// CheckHealth queries the ledger health endpoint and updates the indicator.
func (e *Engine) CheckHealth(ctx context.Context) error {
	h, err := e.ledger.Health(ctx)
	if err != nil {
		e.markOffline(err)
		return err
	}

	e.status.mu.Lock()
	e.status.services = h.Services
	e.status.mu.Unlock()
	e.markOnline()

	var available []string
	for name, up := range h.Services {
		if up {
			available = append(available, name)
		}
	}
	logging.Debug("Backend healthy", zap.Strings("services", available))
	return nil
}

// RefreshPrice caches the DOGE price, keeping the default when the ledger
// cannot provide one.
func (e *Engine) RefreshPrice(ctx context.Context) decimal.Decimal {
	price, err := e.ledger.GetPrice(ctx)
	if err != nil || !price.IsPositive() {
		logging.Warn("Price refresh failed, using default", zap.String("default", e.cfg.DefaultPrice.String()), zap.Error(err))
		price = e.cfg.DefaultPrice
	}

	e.status.mu.Lock()
	e.status.price = price
	e.status.mu.Unlock()

	e.events.Publish(events.TypePrice, price)
	return price
}
