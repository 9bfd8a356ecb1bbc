// internal/session/wallet.go
package session

import (
	"context"

	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"go.uber.org/zap"
)

type WalletEvent struct {
	Connected bool              `json:"connected"`
	Wallet    *models.WalletRef `json:"wallet,omitempty"`
}

// ConnectWallet validates the address for the configured chain and makes it
// the session's wallet. Switching wallets stops an active session first.
func (e *Engine) ConnectWallet(ctx context.Context, provider, address string) (*models.WalletRef, error) {
	ref, err := wallet.Connect(e.cfg.Chain, provider, address, e.clock.Now())
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return nil, ErrEngineDisposed
	}
	if e.wallet != nil && e.wallet.UserID == ref.UserID {
		existing := e.wallet
		e.mu.Unlock()
		return existing, nil
	}
	if e.wallet != nil && e.active {
		if err := e.stopLocked(ctx); err != nil {
			e.mu.Unlock()
			return nil, err
		}
	}
	if err := e.state.SetWallet(ctx, ref); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.wallet = ref
	e.mu.Unlock()

	if _, err := e.state.UpdateUser(ctx, func(u *models.User) error {
		u.ID = ref.UserID
		return nil
	}); err != nil {
		return nil, err
	}

	e.events.Publish(events.TypeSession, WalletEvent{Connected: true, Wallet: ref})
	if err := e.SyncWithBackend(ctx); err != nil {
		logging.Warn("Sync after wallet connect failed", zap.String("userId", ref.UserID), zap.Error(err))
	}
	return ref, nil
}

// DisconnectWallet stops the session and forgets the wallet.
func (e *Engine) DisconnectWallet(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.stopLocked(ctx); err != nil {
		return err
	}
	if err := e.state.SetWallet(ctx, nil); err != nil {
		return err
	}
	if e.wallet != nil {
		logging.Info("Wallet disconnected", zap.String("userId", e.wallet.UserID))
	}
	e.wallet = nil
	e.events.Publish(events.TypeSession, WalletEvent{Connected: false})
	return nil
}
