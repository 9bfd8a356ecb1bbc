// internal/ledgerserver/service.go
package ledgerserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rovshanmuradov/dogenode/internal/db"
	"github.com/rovshanmuradov/dogenode/internal/ledger"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	dateLayout    = "2006-01-02"
	estimatedTime = "10-30 minutes"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

type Options struct {
	WithdrawalFee decimal.Decimal
	ExplorerURL   string
	Price         decimal.Decimal
	// Chain selects the address format withdrawals are validated against.
	// Empty means DOGE.
	Chain string
}

// Service is the sandbox ledger: balances, earnings and withdrawals in SQL.
type Service struct {
	db    *gorm.DB
	opts  Options
	clock clockwork.Clock
}

func NewService(gdb *gorm.DB, opts Options, clock clockwork.Clock) *Service {
	if opts.Chain == "" {
		opts.Chain = wallet.ChainDoge
	}
	return &Service{db: gdb, opts: opts, clock: clock}
}

// forUpdate locks the account row on postgres. sqlite runs with a single
// connection and has no row locks.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == db.DriverPostgres {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func (s *Service) today() string {
	return s.clock.Now().Format(dateLayout)
}

func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Service) Balance(ctx context.Context, userID string) (*ledger.Balance, error) {
	var acc db.Account
	err := s.db.WithContext(ctx).First(&acc, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ledger.Balance{Balance: decimal.Zero, TotalEarnings: decimal.Zero, TodayEarnings: decimal.Zero}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	today := acc.TodayEarnings
	if acc.LastEarningDate != s.today() {
		today = decimal.Zero
	}
	return &ledger.Balance{Balance: acc.Balance, TotalEarnings: acc.TotalEarnings, TodayEarnings: today}, nil
}

// Credit adds an earning to the account, creating the account on first use.
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal, source string) (*ledger.EarningReceipt, error) {
	if !amount.IsPositive() {
		return nil, &wallet.ValidationError{Field: "amount", Message: "amount must be positive"}
	}

	now := s.clock.Now()
	entry := db.LedgerEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      string(models.TransactionTypeEarning),
		Amount:    amount,
		Fee:       decimal.Zero,
		Status:    string(models.TransactionStatusCompleted),
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var balance decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acc db.Account
		err := forUpdate(tx).First(&acc, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			acc = db.Account{UserID: userID, Balance: decimal.Zero, TotalEarnings: decimal.Zero, TodayEarnings: decimal.Zero}
		} else if err != nil {
			return err
		}

		today := s.today()
		if acc.LastEarningDate != today {
			acc.TodayEarnings = decimal.Zero
			acc.LastEarningDate = today
		}
		acc.Balance = acc.Balance.Add(amount)
		acc.TotalEarnings = acc.TotalEarnings.Add(amount)
		acc.TodayEarnings = acc.TodayEarnings.Add(amount)

		if err := tx.Save(&acc).Error; err != nil {
			return err
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		balance = acc.Balance
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record earning: %w", err)
	}

	logging.Debug("Earning recorded", zap.String("userId", userID), zap.String("amount", amount.String()), zap.String("balance", balance.String()))
	return &ledger.EarningReceipt{NewBalance: balance, TransactionID: entry.ID}, nil
}

func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]models.Transaction, error) {
	var entries []db.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	txs := make([]models.Transaction, 0, len(entries))
	for _, e := range entries {
		txs = append(txs, toTransaction(e))
	}
	return txs, nil
}

func toTransaction(e db.LedgerEntry) models.Transaction {
	return models.Transaction{
		ID:          e.ID,
		Type:        models.TransactionType(e.Type),
		Amount:      e.Amount,
		Status:      models.TransactionStatus(e.Status),
		CreatedAt:   e.CreatedAt,
		TxHash:      e.TxHash,
		ExplorerURL: e.ExplorerURL,
		Source:      e.Source,
		Address:     e.Address,
	}
}

func (s *Service) Estimate(amount decimal.Decimal) (*ledger.Estimate, error) {
	if !amount.IsPositive() {
		return nil, &wallet.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	return &ledger.Estimate{
		Fee:            s.opts.WithdrawalFee,
		TotalAmount:    amount.Add(s.opts.WithdrawalFee),
		YouWillReceive: amount,
		EstimatedTime:  estimatedTime,
	}, nil
}

// RequestWithdrawal reserves amount plus fee from the balance and records a
// pending withdrawal.
func (s *Service) RequestWithdrawal(ctx context.Context, userID, address string, amount decimal.Decimal) (*ledger.WithdrawalReceipt, error) {
	if err := wallet.ValidateAddress(s.opts.Chain, address); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, &wallet.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	total := amount.Add(s.opts.WithdrawalFee)

	now := s.clock.Now()
	entry := db.LedgerEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      string(models.TransactionTypeWithdrawal),
		Amount:    amount,
		Fee:       s.opts.WithdrawalFee,
		Status:    string(models.TransactionStatusPending),
		Address:   address,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var acc db.Account
		err := forUpdate(tx).First(&acc, "user_id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInsufficientBalance
		}
		if err != nil {
			return err
		}
		if acc.Balance.LessThan(total) {
			return ErrInsufficientBalance
		}
		acc.Balance = acc.Balance.Sub(total)
		if err := tx.Save(&acc).Error; err != nil {
			return err
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create withdrawal: %w", err)
	}

	logging.Info("Withdrawal created", zap.String("userId", userID), zap.String("transactionId", entry.ID), zap.String("amount", amount.String()))
	return &ledger.WithdrawalReceipt{TransactionID: entry.ID, Status: models.TransactionStatusPending}, nil
}

func (s *Service) WithdrawalStatus(ctx context.Context, id string) (*ledger.WithdrawalStatus, error) {
	var e db.LedgerEntry
	err := s.db.WithContext(ctx).First(&e, "id = ? AND type = ?", id, string(models.TransactionTypeWithdrawal)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal: %w", err)
	}
	return &ledger.WithdrawalStatus{
		Status:      models.TransactionStatus(e.Status),
		TxHash:      e.TxHash,
		ExplorerURL: e.ExplorerURL,
	}, nil
}

func (s *Service) Price() decimal.Decimal {
	return s.opts.Price
}

// Settle advances every open withdrawal by one step: processing ones are
// completed with a transaction hash, pending ones start processing.
func (s *Service) Settle(ctx context.Context) (int, error) {
	var open []db.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("type = ? AND status IN ?", string(models.TransactionTypeWithdrawal),
			[]string{string(models.TransactionStatusPending), string(models.TransactionStatusProcessing)}).
		Order("created_at asc").
		Find(&open).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load open withdrawals: %w", err)
	}

	settled := 0
	for _, e := range open {
		updates := map[string]interface{}{"updated_at": s.clock.Now()}
		switch models.TransactionStatus(e.Status) {
		case models.TransactionStatusPending:
			updates["status"] = string(models.TransactionStatusProcessing)
		case models.TransactionStatusProcessing:
			hash := strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
			updates["status"] = string(models.TransactionStatusCompleted)
			updates["tx_hash"] = hash
			updates["explorer_url"] = s.opts.ExplorerURL + hash
		}

		res := s.db.WithContext(ctx).Model(&db.LedgerEntry{}).
			Where("id = ? AND status = ?", e.ID, e.Status).
			Updates(updates)
		if res.Error != nil {
			return settled, fmt.Errorf("failed to settle withdrawal %s: %w", e.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			settled++
			logging.Info("Withdrawal advanced", zap.String("transactionId", e.ID), zap.Any("status", updates["status"]))
		}
	}
	return settled, nil
}
