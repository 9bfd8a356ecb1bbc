package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, 5*time.Second, cfg.AccrualInterval)
	assert.Equal(t, time.Second, cfg.UptimeInterval)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.Equal(t, time.Minute, cfg.PriceInterval)
	assert.Equal(t, 15*time.Second, cfg.WithdrawalPoll)
	assert.True(t, cfg.MinEarning.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, cfg.MaxEarning.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, cfg.MinWithdrawal.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "doge", cfg.WithdrawChain)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.Ledger.CORSOrigins)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("API_URL", "https://ledger.example.com")
	t.Setenv("ACCRUAL_INTERVAL", "2s")
	t.Setenv("MIN_EARNING", "0.2")
	t.Setenv("MAX_EARNING", "0.2")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("TELEGRAM_OWNER_ID", "42")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://ledger.example.com", cfg.APIURL)
	assert.Equal(t, 2*time.Second, cfg.AccrualInterval)
	assert.True(t, cfg.MinEarning.Equal(cfg.MaxEarning))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Ledger.CORSOrigins)
	assert.Equal(t, int64(42), cfg.TelegramOwnerID)
}

func TestLoadConfigAcceptsTONChain(t *testing.T) {
	t.Setenv("WITHDRAW_CHAIN", "ton")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "ton", cfg.WithdrawChain)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Run("invalid decimal", func(t *testing.T) {
		t.Setenv("MIN_WITHDRAWAL", "ten")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("inverted earning range", func(t *testing.T) {
		t.Setenv("MIN_EARNING", "1")
		t.Setenv("MAX_EARNING", "0.5")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("zero interval", func(t *testing.T) {
		t.Setenv("UPTIME_INTERVAL", "0s")
		_, err := LoadConfig()
		assert.Error(t, err)
	})

	t.Run("unknown chain", func(t *testing.T) {
		t.Setenv("WITHDRAW_CHAIN", "dodge")
		_, err := LoadConfig()
		assert.ErrorContains(t, err, "WITHDRAW_CHAIN")
	})
}
