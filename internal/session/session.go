// internal/session/session.go
package session

import (
	"context"

	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"go.uber.org/zap"
)

// RestoreSession re-arms the timers when the persisted session is active.
// Absent or malformed state restores as inactive.
func (e *Engine) RestoreSession(ctx context.Context) (models.Session, error) {
	sess, err := e.state.Session(ctx)
	if err != nil {
		return sess, err
	}
	w, err := e.state.Wallet(ctx)
	if err != nil {
		return sess, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return sess, ErrEngineDisposed
	}
	e.wallet = w

	if !sess.IsActive || e.active {
		return sess, nil
	}
	if w == nil {
		logging.Warn("Persisted session is active but no wallet is connected, deactivating")
		return e.state.UpdateSession(ctx, func(s *models.Session) error {
			s.IsActive = false
			return nil
		})
	}

	e.arm()
	logging.Info("Mining session restored",
		zap.String("userId", w.UserID),
		zap.Int64("uptime", sess.UptimeSeconds),
		zap.Float64("bandwidth", sess.BandwidthUnits))
	e.events.Publish(events.TypeSession, sess)
	return sess, nil
}

// Start starts a session for the connected wallet.
func (e *Engine) Start(ctx context.Context) (models.Session, error) {
	w, err := e.Wallet(ctx)
	if err != nil {
		return models.Session{}, err
	}
	return e.StartSession(ctx, w)
}

// StartSession activates mining for w. Starting an active session is a no-op.
func (e *Engine) StartSession(ctx context.Context, w *models.WalletRef) (models.Session, error) {
	if w == nil {
		return models.Session{}, precondition("start session", ErrWalletNotConnected)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return models.Session{}, ErrEngineDisposed
	}
	if e.active {
		return e.state.Session(ctx)
	}

	if e.wallet == nil || *e.wallet != *w {
		if err := e.state.SetWallet(ctx, w); err != nil {
			return models.Session{}, err
		}
		e.wallet = w
	}

	now := e.clock.Now()
	sess, err := e.state.UpdateSession(ctx, func(s *models.Session) error {
		s.IsActive = true
		s.StartedAt = &now
		return nil
	})
	if err != nil {
		return sess, err
	}

	e.arm()
	logging.Info("Mining session started", zap.String("userId", w.UserID))
	e.events.Publish(events.TypeSession, sess)
	return sess, nil
}

// StopSession clears both timers before returning. It is a no-op when the
// session is already stopped.
func (e *Engine) StopSession(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopLocked(ctx)
}

func (e *Engine) stopLocked(ctx context.Context) error {
	e.accrualLoop.Stop()
	e.uptimeLoop.Stop()
	wasActive := e.active
	e.active = false

	var changed bool
	sess, err := e.state.UpdateSession(ctx, func(s *models.Session) error {
		changed = s.IsActive
		s.IsActive = false
		return nil
	})
	if err != nil {
		return err
	}

	if wasActive || changed {
		logging.Info("Mining session stopped", zap.Int64("uptime", sess.UptimeSeconds))
		e.events.Publish(events.TypeSession, sess)
	}
	return nil
}

// arm must be called with e.mu held.
func (e *Engine) arm() {
	e.active = true
	e.accrualLoop.Start(e.runCtx)
	e.uptimeLoop.Start(e.runCtx)
}

func (e *Engine) uptimeTick(ctx context.Context) {
	_, err := e.state.UpdateSession(ctx, func(s *models.Session) error {
		if s.IsActive {
			s.UptimeSeconds++
		}
		return nil
	})
	if err != nil {
		logging.Error("Failed to persist uptime", zap.Error(err))
	}
}
