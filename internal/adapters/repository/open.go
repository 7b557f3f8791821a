package repository

import (
	"context"
	"fmt"

	"github.com/okian/profilequest/internal/adapters/database"
	"github.com/okian/profilequest/pkg/logger"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenConfig selects and tunes a backend.
type OpenConfig struct {
	Driver      string
	URL         string
	MaxConns    int
	AutoMigrate bool
}

// Open builds the configured store, applies pending migrations when asked,
// and wraps the result with latency metrics.
func Open(ctx context.Context, cfg OpenConfig, opts ...Option) (Store, error) {
	log := logger.Get().Named("store")

	switch cfg.Driver {
	case DriverMemory:
		return Instrument(cfg.Driver, NewMemoryStore(opts...)), nil

	case DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			m, err := database.NewMigrator(db, database.SQLite)
			if err == nil {
				err = migrate(ctx, log, m)
			}
			if err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return Instrument(cfg.Driver, NewSQLiteStore(db, opts...)), nil

	case DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.URL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			m, closeDB, err := database.NewPostgresMigrator(pool)
			if err == nil {
				err = migrate(ctx, log, m)
				_ = closeDB()
			}
			if err != nil {
				pool.Close()
				return nil, err
			}
		}
		return Instrument(cfg.Driver, NewPostgresStore(pool, opts...)), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func migrate(ctx context.Context, log logger.Logger, m *database.Migrator) error {
	applied, err := m.Up(ctx)
	if err != nil {
		return err
	}
	if len(applied) > 0 {
		log.Info(ctx, "schema migrated", logger.Any("versions", applied))
	}
	return nil
}
