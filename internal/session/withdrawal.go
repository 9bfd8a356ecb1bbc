// internal/session/withdrawal.go
package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rovshanmuradov/dogenode/internal/events"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (e *Engine) validateWithdrawal(ctx context.Context, amount decimal.Decimal) error {
	user, err := e.state.User(ctx)
	if err != nil {
		return err
	}
	return wallet.ValidateAmount(amount, e.cfg.MinWithdrawal, user.Balance)
}

// RequestWithdrawal validates locally, then asks the ledger. The balance is
// not debited here; the ledger's figure arrives with the next sync.
func (e *Engine) RequestWithdrawal(ctx context.Context, address string, amount decimal.Decimal) (*models.Transaction, error) {
	w := e.currentWallet()
	if w == nil {
		return nil, precondition("request withdrawal", ErrWalletNotConnected)
	}
	if err := wallet.ValidateAddress(e.cfg.Chain, address); err != nil {
		return nil, err
	}
	if err := e.validateWithdrawal(ctx, amount); err != nil {
		return nil, err
	}

	logger := e.logger().With(zap.String("address", address), zap.String("amount", amount.String()))

	receipt, err := e.ledger.RequestWithdrawal(ctx, w.UserID, address, amount)
	if err != nil {
		logger.Error("Withdrawal request failed", zap.Error(err))
		var netErr *ledger.NetworkError
		if errors.As(err, &netErr) {
			e.markOffline(err)
		}
		return nil, err
	}

	status := receipt.Status
	if !status.Valid() {
		status = models.TransactionStatusPending
	}
	id := receipt.TransactionID
	if id == "" {
		id = uuid.NewString()
	}
	tx := models.Transaction{
		ID:        id,
		Type:      models.TransactionTypeWithdrawal,
		Amount:    amount,
		Status:    status,
		CreatedAt: e.clock.Now(),
		Address:   address,
	}
	if err := e.state.AppendTransaction(ctx, tx); err != nil {
		return nil, err
	}

	logger.Info("Withdrawal requested", zap.String("transactionId", id), zap.String("status", string(status)))
	e.events.Publish(events.TypeWithdrawal, tx)
	return &tx, nil
}

// EstimateWithdrawal runs the local amount checks and asks the ledger for fees.
func (e *Engine) EstimateWithdrawal(ctx context.Context, amount decimal.Decimal) (*ledger.Estimate, error) {
	if err := e.validateWithdrawal(ctx, amount); err != nil {
		return nil, err
	}
	return e.ledger.EstimateWithdrawal(ctx, amount)
}

// RefreshWithdrawals polls the ledger for every unfinished withdrawal and
// returns how many changed.
func (e *Engine) RefreshWithdrawals(ctx context.Context) (int, error) {
	txs, err := e.state.Transactions(ctx)
	if err != nil {
		return 0, err
	}

	var (
		updated   int
		completed int
		firstErr  error
	)
	for _, tx := range txs {
		if tx.Type != models.TransactionTypeWithdrawal || tx.Status.Final() || tx.Local {
			continue
		}

		st, err := e.ledger.GetWithdrawalStatus(ctx, tx.ID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !st.Status.Valid() {
			continue
		}

		var (
			changed      bool
			nowCompleted bool
			snapshot     models.Transaction
		)
		_, err = e.state.UpdateTransaction(ctx, tx.ID, func(cur *models.Transaction) bool {
			changed, nowCompleted = false, false
			if cur.Status.Final() {
				return false
			}
			if cur.Status != st.Status {
				nowCompleted = st.Status == models.TransactionStatusCompleted
				cur.Status = st.Status
				changed = true
			}
			if st.TxHash != nil && (cur.TxHash == nil || *cur.TxHash != *st.TxHash) {
				cur.TxHash = st.TxHash
				changed = true
			}
			if st.ExplorerURL != nil && (cur.ExplorerURL == nil || *cur.ExplorerURL != *st.ExplorerURL) {
				cur.ExplorerURL = st.ExplorerURL
				changed = true
			}
			snapshot = *cur
			return changed
		})
		if err != nil {
			return updated, err
		}
		if !changed {
			continue
		}
		updated++

		if nowCompleted {
			completed++
			if _, err := e.state.UpdateUser(ctx, func(u *models.User) error {
				u.TotalWithdrawals++
				return nil
			}); err != nil {
				return updated, err
			}
		}
		logging.Info("Withdrawal status updated", zap.String("transactionId", tx.ID), zap.String("status", string(snapshot.Status)))
		e.events.Publish(events.TypeWithdrawal, snapshot)
	}

	if completed > 0 {
		if err := e.SyncWithBackend(ctx); err != nil {
			e.logger().Warn("Sync after completed withdrawal failed", zap.Error(err))
		}
	}
	return updated, firstErr
}
