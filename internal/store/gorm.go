// internal/store/gorm.go
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rovshanmuradov/dogenode/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxCASAttempts = 5

// Entry is one row of the local state table.
type Entry struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     []byte
	Version   int64 `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "kv_entries"
}

// Gorm keeps local state in a SQL table (sqlite file by default, postgres optional).
// Writers in one process are serialized; writers in different processes are
// reconciled by a version compare-and-swap.
type Gorm struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_entries: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Get(ctx context.Context, key string) ([]byte, error) {
	var e Entry
	err := g.db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return e.Value, nil
}

func (g *Gorm) Update(ctx context.Context, key string, fn UpdateFunc) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		ok, err := g.tryUpdate(ctx, key, fn)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		logging.Debug("Concurrent write detected, retrying", zap.String("key", key), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("failed to update %q: too many concurrent writers", key)
}

func (g *Gorm) tryUpdate(ctx context.Context, key string, fn UpdateFunc) (bool, error) {
	db := g.db.WithContext(ctx)

	var e Entry
	err := db.Where("key = ?", key).First(&e).Error
	exists := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to read %q: %w", key, err)
	}

	var current []byte
	if exists {
		current = e.Value
	}
	next, err := fn(current)
	if err != nil {
		return false, err
	}

	if !exists {
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&Entry{
			Key:       key,
			Value:     next,
			Version:   1,
			UpdatedAt: time.Now(),
		})
		if res.Error != nil {
			return false, fmt.Errorf("failed to insert %q: %w", key, res.Error)
		}
		return res.RowsAffected == 1, nil
	}

	res := db.Model(&Entry{}).
		Where("key = ? AND version = ?", key, e.Version).
		Updates(map[string]interface{}{
			"value":      next,
			"version":    e.Version + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to write %q: %w", key, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return fmt.Errorf("error getting sql.DB: %w", err)
	}
	return sqlDB.Close()
}
