// internal/models/session.go
package models

import "time"

// Session is the persisted mining state. Uptime and bandwidth survive reloads.
type Session struct {
	IsActive       bool       `json:"isActive"`
	StartedAt      *time.Time `json:"startedAt"`
	UptimeSeconds  int64      `json:"uptime"`
	BandwidthUnits float64    `json:"bandwidth"`
}

type WalletRef struct {
	UserID      string    `json:"userId"`
	Address     string    `json:"address"`
	Chain       string    `json:"chain"`
	Provider    string    `json:"provider"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type Referrals struct {
	Code       string `json:"code"`
	ReferredBy string `json:"referredBy,omitempty"`
}
