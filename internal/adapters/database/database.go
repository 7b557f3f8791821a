// Package database opens the SQL backends and applies the embedded schema
// migrations with goose.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// Pool settings.
const (
	sqliteMaxOpenConns = 4
	sqliteMaxIdleConns = 2
	connMaxLifetime    = 30 * time.Minute
	connMaxIdleTime    = 5 * time.Minute
	minPoolConns       = 1
)

// OpenSQLite opens (or creates) the database at path in WAL mode. Write
// transactions take the lock immediately so concurrent completions queue on
// busy_timeout instead of failing on lock upgrade.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)" +
		"&_pragma=foreign_keys(1)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	db.SetMaxOpenConns(sqliteMaxOpenConns)
	db.SetMaxIdleConns(sqliteMaxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return db, nil
}

// NewPool creates a PostgreSQL connection pool and verifies it.
func NewPool(ctx context.Context, connString string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("%w: parse connection string: %w", ErrOpen, err)
	}
	if maxConns > math.MaxInt32 {
		maxConns = math.MaxInt32
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MinConns = minPoolConns
	cfg.MaxConnLifetime = connMaxLifetime
	cfg.MaxConnIdleTime = connMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrOpen, err)
	}
	return pool, nil
}

// Dialect names a migration set.
type Dialect string

// Supported dialects.
const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Migrator applies the embedded migrations of one dialect.
type Migrator struct {
	provider *goose.Provider
}

// NewMigrator builds a goose provider over db.
func NewMigrator(db *sql.DB, dialect Dialect) (*Migrator, error) {
	var gd goose.Dialect
	switch dialect {
	case SQLite:
		gd = goose.DialectSQLite3
	case Postgres:
		gd = goose.DialectPostgres
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, dialect)
	}
	fsys, err := fs.Sub(migrations, "migrations/"+string(dialect))
	if err != nil {
		return nil, err
	}
	p, err := goose.NewProvider(gd, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	return &Migrator{provider: p}, nil
}

// NewPostgresMigrator wraps pool in a database/sql handle for goose. The
// handle must be closed with the returned function; the pool stays open.
func NewPostgresMigrator(pool *pgxpool.Pool) (*Migrator, func() error, error) {
	db := stdlib.OpenDBFromPool(pool)
	m, err := NewMigrator(db, Postgres)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return m, db.Close, nil
}

// Up applies every pending migration and returns the applied versions.
func (m *Migrator) Up(ctx context.Context) ([]int64, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	versions := make([]int64, 0, len(results))
	for _, r := range results {
		versions = append(versions, r.Source.Version)
	}
	return versions, nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) (int64, error) {
	r, err := m.provider.Down(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	return r.Source.Version, nil
}

// Status describes one migration.
type Status struct {
	Version int64
	Applied bool
}

// Status lists every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	st, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	out := make([]Status, 0, len(st))
	for _, s := range st {
		out = append(out, Status{Version: s.Source.Version, Applied: s.State == goose.StateApplied})
	}
	return out, nil
}
