// internal/session/accrual.go
package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Bandwidth is sampled in MB; milestones are GB of 1024 MB.
const mbPerGB = 1024

// AccrualResult describes where an accrual was recorded.
type AccrualResult struct {
	Amount      decimal.Decimal `json:"amount"`
	BandwidthMB float64         `json:"bandwidthMb"`
	Balance     decimal.Decimal `json:"balance"`
	Remote      bool            `json:"remote"`
	Transaction string          `json:"transactionId"`
}

func (e *Engine) accrualTick(ctx context.Context) {
	e.mu.Lock()
	live := e.active && e.wallet != nil
	e.mu.Unlock()
	if !live {
		return
	}

	amount := e.amounts.Next(e.cfg.MinEarning, e.cfg.MaxEarning)
	if _, err := e.RecordAccrual(ctx, amount, SourceMining); err != nil {
		logging.Error("Failed to record accrual", zap.String("amount", amount.String()), zap.Error(err))
	}
}

// RecordAccrual submits the earning to the remote ledger and falls back to a
// local credit when the ledger is unreachable or rejects it. Only local store
// failures are returned.
func (e *Engine) RecordAccrual(ctx context.Context, amount decimal.Decimal, source string) (*AccrualResult, error) {
	if !amount.IsPositive() {
		return nil, &wallet.ValidationError{Field: "amount", Message: "accrual amount must be positive"}
	}

	now := e.clock.Now()
	w := e.currentWallet()
	res := &AccrualResult{Amount: amount}

	var remoteErr error
	if w == nil {
		remoteErr = ErrWalletNotConnected
	} else {
		var receipt *ledger.EarningReceipt
		receipt, remoteErr = e.ledger.SubmitEarning(ctx, w.UserID, amount, source)
		if remoteErr == nil {
			e.markOnline()
			user, err := e.state.UpdateUser(ctx, func(u *models.User) error {
				u.RollDay(now)
				balance := receipt.NewBalance
				if balance.IsNegative() {
					balance = decimal.Zero
				}
				u.Balance = balance
				u.TotalEarnings = u.TotalEarnings.Add(amount)
				u.TodayEarnings = u.TodayEarnings.Add(amount)
				return nil
			})
			if err != nil {
				return nil, err
			}
			res.Remote = true
			res.Balance = user.Balance
			res.Transaction = receipt.TransactionID
		}
	}

	if remoteErr != nil {
		e.logger().Warn("Remote accrual failed, recording locally",
			zap.String("amount", amount.String()),
			zap.Error(remoteErr))
		if ledger.IsUnavailable(remoteErr) {
			e.markOffline(remoteErr)
		}
		user, err := e.state.UpdateUser(ctx, func(u *models.User) error {
			u.Credit(amount, now)
			return nil
		})
		if err != nil {
			return nil, err
		}
		res.Balance = user.Balance
	}

	if res.Transaction == "" {
		res.Transaction = uuid.NewString()
	}
	err := e.state.AppendTransaction(ctx, models.Transaction{
		ID:        res.Transaction,
		Type:      models.TransactionTypeEarning,
		Amount:    amount,
		Status:    models.TransactionStatusCompleted,
		CreatedAt: now,
		Source:    source,
		Local:     !res.Remote,
	})
	if err != nil {
		return nil, err
	}

	res.BandwidthMB = e.bandwidth.Next(e.cfg.MinBandwidthMB, e.cfg.MaxBandwidthMB).InexactFloat64()
	if _, err := e.state.UpdateSession(ctx, func(s *models.Session) error {
		s.BandwidthUnits += res.BandwidthMB
		return nil
	}); err != nil {
		return nil, err
	}
	if _, _, err := e.tracker.Add(ctx, res.BandwidthMB/mbPerGB); err != nil {
		logging.Error("Failed to update milestone progress", zap.Error(err))
	}

	e.events.Publish(events.TypeAccrual, res)
	return res, nil
}
