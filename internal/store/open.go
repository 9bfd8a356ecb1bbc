// internal/store/open.go
package store

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rovshanmuradov/dogenode/internal/config"
	"github.com/rovshanmuradov/dogenode/internal/db"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"go.uber.org/zap"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Open builds the KV selected by cfg.Driver and wraps it with encryption when
// a key is configured.
func Open(ctx context.Context, cfg config.StoreConfig) (KV, error) {
	var (
		kv  KV
		err error
	)

	switch cfg.Driver {
	case DriverMemory:
		kv = NewMemory()
	case DriverRedis:
		kv, err = NewRedis(ctx, &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, "dogenode:")
	case db.DriverSQLite, db.DriverPostgres:
		gdb, openErr := db.Open(ctx, cfg.Driver, cfg.DSN)
		if openErr != nil {
			return nil, openErr
		}
		kv, err = NewGorm(gdb)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.EncryptionKey != "" {
		enc, err := NewEncrypted(kv, cfg.EncryptionKey)
		if err != nil {
			_ = kv.Close()
			return nil, err
		}
		kv = enc
	}

	logging.Info("Local store opened", zap.String("driver", cfg.Driver), zap.Bool("encrypted", cfg.EncryptionKey != ""))
	return kv, nil
}
