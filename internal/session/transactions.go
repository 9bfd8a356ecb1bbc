// internal/session/transactions.go
package session

import (
	"context"
	"strings"

	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"go.uber.org/zap"
)

// LoadTransactions returns the newest transactions, from the ledger when it
// has any and from the local history otherwise. remote reports the source.
func (e *Engine) LoadTransactions(ctx context.Context, limit int) (txs []models.Transaction, remote bool, err error) {
	if limit <= 0 {
		limit = e.cfg.TransactionsLimit
	}

	if w := e.currentWallet(); w != nil {
		remoteTxs, remoteErr := e.ledger.GetTransactions(ctx, w.UserID, limit)
		if remoteErr == nil && len(remoteTxs) > 0 {
			if len(remoteTxs) > limit {
				remoteTxs = remoteTxs[:limit]
			}
			return remoteTxs, true, nil
		}
		if remoteErr != nil {
			logging.Warn("Loading remote transactions failed, using local history", zap.Error(remoteErr))
		}
	}

	local, err := e.state.Transactions(ctx)
	if err != nil {
		return nil, false, err
	}
	out := make([]models.Transaction, 0, limit)
	for i := len(local) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, local[i])
	}
	return out, false, nil
}

func (e *Engine) Referrals(ctx context.Context) (models.Referrals, error) {
	return e.state.Referrals(ctx)
}

// ApplyReferral records who referred this user. Only the first code sticks.
func (e *Engine) ApplyReferral(ctx context.Context, code string) (models.Referrals, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return models.Referrals{}, &wallet.ValidationError{Field: "referral code", Message: "code is required"}
	}

	return e.state.UpdateReferrals(ctx, func(r *models.Referrals) error {
		if code == r.Code {
			return &wallet.ValidationError{Field: "referral code", Message: "cannot use your own referral code"}
		}
		if r.ReferredBy == "" {
			r.ReferredBy = code
			logging.Info("Referral applied", zap.String("referredBy", code))
		}
		return nil
	})
}

// ReferralLink appends the user's referral code to base.
func (e *Engine) ReferralLink(ctx context.Context, base string) (string, error) {
	r, err := e.Referrals(ctx)
	if err != nil {
		return "", err
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "ref=" + r.Code, nil
}

// Snapshot is a read-only copy of everything a UI shows.
type Snapshot struct {
	User      models.User       `json:"user"`
	Session   models.Session    `json:"session"`
	Wallet    *models.WalletRef `json:"wallet"`
	Referrals models.Referrals  `json:"referrals"`
	Progress  models.Progress   `json:"progress"`
	Status    Status            `json:"status"`
	Active    bool              `json:"active"`
}

func (e *Engine) Snapshot(ctx context.Context) (*Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	if s.User, err = e.state.User(ctx); err != nil {
		return nil, err
	}
	if s.Session, err = e.state.Session(ctx); err != nil {
		return nil, err
	}
	if s.Wallet, err = e.Wallet(ctx); err != nil {
		return nil, err
	}
	if s.Referrals, err = e.state.Referrals(ctx); err != nil {
		return nil, err
	}
	if s.Progress, err = e.tracker.Progress(ctx); err != nil {
		return nil, err
	}
	s.Status = e.Status()
	s.Active = e.Active()
	return &s, nil
}
