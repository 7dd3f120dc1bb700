// Package repository persists extraction runs and their artifacts through
// ent's SQL runtime. SQLite (modernc, CGO-free) is the default; Postgres
// runs through a pgx pool.
package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/guirra-byte/contracts-extractor/internal/common"
)

// DB bundles the ent SQL driver with the pgx pool behind it (nil for
// SQLite).
type DB struct {
	Driver *entsql.Driver
	pool   *pgxpool.Pool
	log    *slog.Logger
}

// Open connects per cfg.Driver and verifies the connection.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database", "driver", cfg.Driver)

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}

	switch cfg.Driver {
	case "postgres":
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("failed to parse database config", "error", err)
			return nil, err
		}
		pc.MaxConns = cfg.MaxConns
		pc.MinConns = cfg.MinConns
		pc.MaxConnLifetime = cfg.MaxConnLifetime
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		pc.ConnConfig.RuntimeParams["application_name"] = "contracts-extractor"

		pool, err := pgxpool.NewWithConfig(ctx, pc)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return nil, err
		}

		// Wrap pool as *sql.DB for ent
		db := stdlib.OpenDBFromPool(pool)
		drv := entsql.OpenDB(dialect.Postgres, db)
		logger.Info("successfully connected to database")
		return &DB{Driver: drv, pool: pool, log: logger}, nil

	default: // sqlite
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			return nil, err
		}
		// modernc sqlite allows one writer; serialize through the pool.
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			logger.Error("failed to connect to database", "error", err)
			return nil, err
		}
		drv := entsql.OpenDB(dialect.SQLite, db)
		logger.Info("successfully connected to database")
		return &DB{Driver: drv, log: logger}, nil
	}
}

// Close closes the database connections gracefully
func (d *DB) Close() {
	d.log.Info("closing database connections")
	if d.Driver != nil {
		if err := d.Driver.Close(); err != nil {
			d.log.Error("failed to close sql driver", "error", err)
		}
	}
	if d.pool != nil {
		d.pool.Close()
	}
	d.log.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	d.log.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := d.Driver.DB().PingContext(ctx); err != nil {
		return err
	}
	d.log.Debug("database ping successful")
	return nil
}
