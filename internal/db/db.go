// internal/db/db.go
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/rovshanmuradov/dogenode/internal/logging"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open connects to the database. Postgres is retried for up to a minute since
// the server is usually started alongside us.
func Open(ctx context.Context, driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	attempts := uint(1)
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
		attempts = 30
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var gdb *gorm.DB
	err := retry.Do(
		func() error {
			var err error
			gdb, err = gorm.Open(dialector, cfg)
			return err
		},
		retry.Attempts(attempts),
		retry.Delay(2*time.Second),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logging.Warn("Database connection attempt failed",
				zap.Uint("attempt", n+1),
				zap.Uint("of", attempts),
				zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database after %d attempts: %w", attempts, err)
	}

	if driver == DriverSQLite {
		// One writer at a time; sqlite serializes anyway and this avoids SQLITE_BUSY.
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("error getting sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}

func Close(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("error getting sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Migrate brings the schema up to date: embedded SQL migrations on postgres,
// AutoMigrate on sqlite.
func Migrate(gdb *gorm.DB, driver, dsn string) error {
	if driver == DriverSQLite {
		if err := gdb.AutoMigrate(&Account{}, &LedgerEntry{}); err != nil {
			return fmt.Errorf("error running auto-migration: %w", err)
		}
		return nil
	}
	return runMigrations(dsn)
}

func runMigrations(databaseURL string) error {
	logging.Info("Starting migrations")

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("error reading embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("error initializing migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error running migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("error reading migration version: %w", err)
	}
	logging.Info("Migrations completed successfully", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}

// LogTableStructure prints the columns of a postgres table. ledgerd calls it
// after migrating so schema drift shows up in the logs.
func LogTableStructure(gdb *gorm.DB, table string) {
	var result []struct {
		ColumnName string
		DataType   string
	}

	if err := gdb.Raw("SELECT column_name, data_type FROM information_schema.columns WHERE table_name = ?", table).Scan(&result).Error; err != nil {
		logging.Error("Error getting table structure", zap.String("table", table), zap.Error(err))
		return
	}
	for _, col := range result {
		logging.Debug("Column info", zap.String("table", table), zap.String("column", col.ColumnName), zap.String("type", col.DataType))
	}
}
