// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rovshanmuradov/dogenode/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	APIURL           string
	APITimeout       time.Duration
	APIRetryAttempts uint

	AccrualInterval time.Duration
	UptimeInterval  time.Duration
	SyncInterval    time.Duration
	HealthInterval  time.Duration
	PriceInterval   time.Duration
	WithdrawalPoll  time.Duration

	MinEarning     decimal.Decimal
	MaxEarning     decimal.Decimal
	MinBandwidthMB decimal.Decimal
	MaxBandwidthMB decimal.Decimal
	MinWithdrawal  decimal.Decimal
	WithdrawChain  string
	DefaultPrice   decimal.Decimal

	Store StoreConfig
	Log   LogConfig

	DashboardAddr   string
	TelegramToken   string
	TelegramOwnerID int64

	Ledger LedgerConfig
}

type StoreConfig struct {
	Driver        string
	DSN           string
	RedisAddr     string
	RedisPassword string
	EncryptionKey string
}

type LogConfig struct {
	Level      string
	Filename   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// LedgerConfig configures the sandbox ledger server (cmd/ledgerd).
type LedgerConfig struct {
	Addr              string
	DatabaseURL       string
	MigrationsEnabled bool
	CORSOrigins       []string
	WithdrawalFee     decimal.Decimal
	SettleInterval    time.Duration
	ExplorerURL       string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("API_URL", "http://localhost:3000")
	v.SetDefault("API_TIMEOUT", "30s")
	v.SetDefault("API_RETRY_ATTEMPTS", 3)

	v.SetDefault("ACCRUAL_INTERVAL", "5s")
	v.SetDefault("UPTIME_INTERVAL", "1s")
	v.SetDefault("SYNC_INTERVAL", "30s")
	v.SetDefault("HEALTH_INTERVAL", "30s")
	v.SetDefault("PRICE_INTERVAL", "60s")
	v.SetDefault("WITHDRAWAL_POLL_INTERVAL", "15s")

	v.SetDefault("MIN_EARNING", "0.1")
	v.SetDefault("MAX_EARNING", "0.5")
	v.SetDefault("MIN_BANDWIDTH_MB", "50")
	v.SetDefault("MAX_BANDWIDTH_MB", "150")
	v.SetDefault("MIN_WITHDRAWAL", "10")
	v.SetDefault("WITHDRAW_CHAIN", "doge")
	v.SetDefault("DEFAULT_PRICE", "0.08")

	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("STORE_DSN", "dogenode.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILENAME", "")
	v.SetDefault("LOG_MAX_SIZE", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("LOG_MAX_AGE", 28)
	v.SetDefault("LOG_COMPRESS", true)

	v.SetDefault("DASHBOARD_ADDR", "127.0.0.1:8420")

	v.SetDefault("LEDGER_ADDR", ":3000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MIGRATIONS_ENABLED", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:8080")
	v.SetDefault("WITHDRAWAL_FEE", "1")
	v.SetDefault("SETTLE_INTERVAL", "15s")
	v.SetDefault("EXPLORER_URL", "https://dogechain.info/tx/")
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIURL:           v.GetString("API_URL"),
		APITimeout:       v.GetDuration("API_TIMEOUT"),
		APIRetryAttempts: v.GetUint("API_RETRY_ATTEMPTS"),

		AccrualInterval: v.GetDuration("ACCRUAL_INTERVAL"),
		UptimeInterval:  v.GetDuration("UPTIME_INTERVAL"),
		SyncInterval:    v.GetDuration("SYNC_INTERVAL"),
		HealthInterval:  v.GetDuration("HEALTH_INTERVAL"),
		PriceInterval:   v.GetDuration("PRICE_INTERVAL"),
		WithdrawalPoll:  v.GetDuration("WITHDRAWAL_POLL_INTERVAL"),

		WithdrawChain: v.GetString("WITHDRAW_CHAIN"),

		Store: StoreConfig{
			Driver:        v.GetString("STORE_DRIVER"),
			DSN:           v.GetString("STORE_DSN"),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			EncryptionKey: v.GetString("STORE_ENCRYPTION_KEY"),
		},
		Log: LogConfig{
			Level:      v.GetString("LOG_LEVEL"),
			Filename:   v.GetString("LOG_FILENAME"),
			MaxSize:    v.GetInt("LOG_MAX_SIZE"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAge:     v.GetInt("LOG_MAX_AGE"),
			Compress:   v.GetBool("LOG_COMPRESS"),
		},

		DashboardAddr:   v.GetString("DASHBOARD_ADDR"),
		TelegramToken:   v.GetString("TELEGRAM_TOKEN"),
		TelegramOwnerID: v.GetInt64("TELEGRAM_OWNER_ID"),

		Ledger: LedgerConfig{
			Addr:              v.GetString("LEDGER_ADDR"),
			DatabaseURL:       v.GetString("DATABASE_URL"),
			MigrationsEnabled: v.GetBool("MIGRATIONS_ENABLED"),
			CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
			SettleInterval:    v.GetDuration("SETTLE_INTERVAL"),
			ExplorerURL:       v.GetString("EXPLORER_URL"),
		},
	}

	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"MIN_EARNING", &cfg.MinEarning},
		{"MAX_EARNING", &cfg.MaxEarning},
		{"MIN_BANDWIDTH_MB", &cfg.MinBandwidthMB},
		{"MAX_BANDWIDTH_MB", &cfg.MaxBandwidthMB},
		{"MIN_WITHDRAWAL", &cfg.MinWithdrawal},
		{"DEFAULT_PRICE", &cfg.DefaultPrice},
		{"WITHDRAWAL_FEE", &cfg.Ledger.WithdrawalFee},
	}
	for _, d := range decimals {
		value, err := decimal.NewFromString(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dst = value
	}

	if cfg.MinEarning.GreaterThan(cfg.MaxEarning) {
		return nil, fmt.Errorf("MIN_EARNING %s is greater than MAX_EARNING %s", cfg.MinEarning, cfg.MaxEarning)
	}
	if cfg.MinBandwidthMB.GreaterThan(cfg.MaxBandwidthMB) {
		return nil, fmt.Errorf("MIN_BANDWIDTH_MB %s is greater than MAX_BANDWIDTH_MB %s", cfg.MinBandwidthMB, cfg.MaxBandwidthMB)
	}
	for name, d := range map[string]time.Duration{
		"ACCRUAL_INTERVAL":         cfg.AccrualInterval,
		"UPTIME_INTERVAL":          cfg.UptimeInterval,
		"SYNC_INTERVAL":            cfg.SyncInterval,
		"HEALTH_INTERVAL":          cfg.HealthInterval,
		"PRICE_INTERVAL":           cfg.PriceInterval,
		"WITHDRAWAL_POLL_INTERVAL": cfg.WithdrawalPoll,
		"SETTLE_INTERVAL":          cfg.Ledger.SettleInterval,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive", name)
		}
	}
	if !wallet.SupportedChain(cfg.WithdrawChain) {
		return nil, fmt.Errorf("unsupported WITHDRAW_CHAIN %q", cfg.WithdrawChain)
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
