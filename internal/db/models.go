// internal/db/models.go
package db

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a user's balance on the sandbox ledger.
type Account struct {
	UserID          string          `gorm:"primaryKey;size:64"`
	Balance         decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0"`
	TotalEarnings   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0"`
	TodayEarnings   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0"`
	LastEarningDate string          `gorm:"size:10"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// LedgerEntry is one earning or withdrawal. Withdrawals carry a fee and move
// through pending, processing and completed.
type LedgerEntry struct {
	ID          string          `gorm:"primaryKey;size:36"`
	UserID      string          `gorm:"size:64;index;not null"`
	Type        string          `gorm:"size:16;not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	Fee         decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0"`
	Status      string          `gorm:"size:16;index;not null"`
	Source      string          `gorm:"size:32"`
	Address     string          `gorm:"size:128"`
	TxHash      *string         `gorm:"size:128"`
	ExplorerURL *string         `gorm:"size:256"`
	CreatedAt   time.Time       `gorm:"index"`
	UpdatedAt   time.Time
}
