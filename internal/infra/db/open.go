// Package db owns the SQLite connection: driver registration, per-connection
// pragmas, and schema migration. Higher layers depend on *sqlx.DB through
// internal/infra/storage, never on this package's driver details directly.
package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
)

// driverName is registered once, wrapping modernc.org/sqlite so every new
// connection gets the pragmas spec §4.1 requires (journal_mode=WAL,
// synchronous=NORMAL, foreign_keys=ON) regardless of which pool connection
// picks it up — pragmas in SQLite are per-connection, not per-database.
const driverName = "kybuzz-sqlite"

var registerOnce sync.Once

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &connectHookDriver{Driver: &sqlite.Driver{}})
	})
}

// connectHookDriver wraps the modernc.org/sqlite driver.Driver to run the
// required pragmas immediately after every Open.
type connectHookDriver struct {
	driver.Driver
}

func (d *connectHookDriver) Open(name string) (driver.Conn, error) {
	conn, err := d.Driver.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}
	execer, ok := conn.(driver.ExecerContext)
	if !ok {
		return conn, nil
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := execer.ExecContext(context.Background(), p, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}
	return conn, nil
}

// ConnectionConfig holds connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConnectionConfig returns conservative defaults appropriate for a
// single-file SQLite database shared by the worker and querydemo binaries.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: time.Hour,
	}
}

// ConnectionConfigFromEnv reads pool sizing from DB_MAX_OPEN_CONNS,
// DB_MAX_IDLE_CONNS, DB_CONN_MAX_LIFETIME, falling back to defaults.
func ConnectionConfigFromEnv() ConnectionConfig {
	cfg := DefaultConnectionConfig()

	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxOpenConns = n
		}
	}
	if v := os.Getenv("DB_MAX_IDLE_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxIdleConns = n
		}
	}
	if v := os.Getenv("DB_CONN_MAX_LIFETIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ConnMaxLifetime = d
		}
	}
	return cfg
}

// Open creates and configures a *sqlx.DB against the SQLite file at path.
func Open(ctx context.Context, path string, cfg ConnectionConfig) (*sqlx.DB, error) {
	registerDriver()

	sqlxDB, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlx.Open: %w", err)
	}

	sqlxDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlxDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("path", path),
		slog.Int("max_open_conns", cfg.MaxOpenConns))

	return sqlxDB, nil
}
