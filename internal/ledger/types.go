// internal/ledger/types.go
package ledger

import (
	"encoding/json"

	"github.com/rovshanmuradov/dogenode/internal/models"
	"github.com/shopspring/decimal"
)

// Response is the envelope every endpoint except /health answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

type Health struct {
	Success  bool            `json:"success"`
	Status   string          `json:"status"`
	Services map[string]bool `json:"services"`
}

type Balance struct {
	Balance       decimal.Decimal `json:"balance"`
	TotalEarnings decimal.Decimal `json:"totalEarnings"`
	TodayEarnings decimal.Decimal `json:"todayEarnings"`
}

type EarningRequest struct {
	UserID string          `json:"userId" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Source string          `json:"source"`
}

type EarningReceipt struct {
	NewBalance    decimal.Decimal `json:"newBalance"`
	TransactionID string          `json:"transactionId,omitempty"`
}

type TransactionList struct {
	Transactions []models.Transaction `json:"transactions"`
}

type EstimateRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type Estimate struct {
	Fee            decimal.Decimal `json:"fee"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	YouWillReceive decimal.Decimal `json:"youWillReceive"`
	EstimatedTime  string          `json:"estimatedTime"`
}

type WithdrawalRequest struct {
	UserID  string          `json:"userId" binding:"required"`
	Address string          `json:"address" binding:"required"`
	Amount  decimal.Decimal `json:"amount"`
}

type WithdrawalReceipt struct {
	TransactionID string                   `json:"transactionId"`
	Status        models.TransactionStatus `json:"status"`
}

type WithdrawalStatus struct {
	Status      models.TransactionStatus `json:"status"`
	TxHash      *string                  `json:"txHash,omitempty"`
	ExplorerURL *string                  `json:"explorerUrl,omitempty"`
}

type Price struct {
	Price decimal.Decimal `json:"price"`
}
