package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is an open status store.
type DB struct {
	drv    *entsql.Driver
	pool   *pgxpool.Pool // nil for sqlite
	logger *slog.Logger
}

// IsPostgres reports whether dsn points at a Postgres server.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to Postgres for postgres:// DSNs and to an SQLite file
// otherwise, then creates the documents table if needed.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		db  *DB
		err error
	)
	if IsPostgres(cfg.DSN) {
		db, err = openPostgres(ctx, cfg, logger)
	} else {
		db, err = openSQLite(cfg, logger)
	}
	if err != nil {
		return nil, err
	}
	if err := db.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("successfully connected to database", "dialect", db.drv.Dialect())
	return db, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "docfields"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for the ent SQL driver
	sqlDB := stdlib.OpenDBFromPool(pool)
	return &DB{drv: entsql.OpenDB(dialect.Postgres, sqlDB), pool: pool, logger: logger}, nil
}

func openSQLite(cfg Config, logger *slog.Logger) (*DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	logger.Info("connecting to database", "dialect", dialect.SQLite, "path", dsn)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	// one writer; also keeps a :memory: database alive across calls
	sqlDB.SetMaxOpenConns(1)
	return &DB{drv: entsql.OpenDB(dialect.SQLite, sqlDB), logger: logger}, nil
}

func (d *DB) migrate(ctx context.Context) error {
	ddl := sqliteDDL
	if d.drv.Dialect() == dialect.Postgres {
		ddl = postgresDDL
	}
	for _, stmt := range ddl {
		if _, err := d.drv.DB().ExecContext(ctx, stmt); err != nil {
			d.logger.Error("failed to migrate database", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Documents returns the document repository backed by this store.
func (d *DB) Documents() DocumentRepository {
	return NewDocumentRepository(d.drv, d.logger)
}

// Close closes the database connections gracefully
func (d *DB) Close() {
	d.logger.Info("closing database connections")
	if err := d.drv.Close(); err != nil {
		d.logger.Error("failed to close sql driver", "error", err)
	}
	if d.pool != nil {
		d.pool.Close()
	}
	d.logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	d.logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if d.pool != nil {
		if err := d.pool.Ping(ctx); err != nil {
			return err
		}
	} else if err := d.drv.DB().PingContext(ctx); err != nil {
		return err
	}
	d.logger.Debug("database ping successful")
	return nil
}

var sqliteDDL = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id            TEXT PRIMARY KEY,
		name          TEXT NOT NULL,
		source_path   TEXT NOT NULL,
		schema_name   TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		page_count    INTEGER NOT NULL DEFAULT 0,
		fields        TEXT NOT NULL DEFAULT '{}',
		error_message TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status)`,
}

var postgresDDL = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id            UUID PRIMARY KEY,
		name          TEXT NOT NULL,
		source_path   TEXT NOT NULL,
		schema_name   TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		page_count    INTEGER NOT NULL DEFAULT 0,
		fields        JSONB NOT NULL DEFAULT '{}'::jsonb,
		error_message TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS documents_status_idx ON documents (status)`,
}
