// internal/models/user.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type User struct {
	ID               string          `json:"id"`
	Balance          decimal.Decimal `json:"balance"`
	TotalEarnings    decimal.Decimal `json:"totalEarnings"`
	TodayEarnings    decimal.Decimal `json:"todayEarnings"`
	TotalWithdrawals int             `json:"totalWithdrawals"`
	ReferralCount    int             `json:"referralCount"`
	LastActiveDate   string          `json:"lastActiveDate"`
}

func NewUser(id string, now time.Time) User {
	return User{
		ID:             id,
		Balance:        decimal.Zero,
		TotalEarnings:  decimal.Zero,
		TodayEarnings:  decimal.Zero,
		LastActiveDate: now.Format(dateLayout),
	}
}

// RollDay zeroes TodayEarnings when the last active date is not today and
// stamps today's date. It reports whether a reset happened.
func (u *User) RollDay(now time.Time) bool {
	today := now.Format(dateLayout)
	if u.LastActiveDate == today {
		return false
	}
	reset := u.LastActiveDate != ""
	if reset {
		u.TodayEarnings = decimal.Zero
	}
	u.LastActiveDate = today
	return reset
}

// Credit applies a locally recorded earning.
func (u *User) Credit(amount decimal.Decimal, now time.Time) {
	u.RollDay(now)
	u.Balance = u.Balance.Add(amount)
	u.TotalEarnings = u.TotalEarnings.Add(amount)
	u.TodayEarnings = u.TodayEarnings.Add(amount)
}

// ApplyRemote overwrites the cached totals with the ledger's figures.
// Balance never goes below zero locally.
func (u *User) ApplyRemote(balance, totalEarnings, todayEarnings decimal.Decimal, now time.Time) {
	u.RollDay(now)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	u.Balance = balance
	u.TotalEarnings = totalEarnings
	u.TodayEarnings = todayEarnings
}
