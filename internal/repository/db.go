package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/expense-docs/internal/common"
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

// ConfigFrom maps the application database config.
func ConfigFrom(c common.DatabaseConfig) Config {
	return Config{
		DSN:              c.DSN,
		MaxConns:         c.MaxConns,
		MinConns:         c.MinConns,
		MaxConnLifetime:  c.MaxConnLifetime,
		MaxConnIdleTime:  c.MaxConnIdleTime,
		DialTimeout:      c.DialTimeout,
		StatementTimeout: c.StatementTimeout,
	}
}

// DB is the ent SQL driver plus the pgx pool behind it. Pool is nil for sqlite.
type DB struct {
	Driver *entsql.Driver
	Pool   *pgxpool.Pool
}

func (d *DB) Dialect() string { return d.Driver.Dialect() }

func (d *DB) SQL() *sql.DB { return d.Driver.DB() }

// Open creates a pgx pool and wraps it for ent.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "expense-docs"
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
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}

	// Wrap pool as *sql.DB for ent
	db := stdlib.OpenDBFromPool(pool)
	drv := entsql.OpenDB(dialect.Postgres, db)

	logger.Info("successfully connected to database")
	return &DB{Driver: drv, Pool: pool}, nil
}

// OpenInMemory opens a private in-memory sqlite database.
func OpenInMemory(ctx context.Context, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	logger.Info("opened in-memory database")
	return &DB{Driver: entsql.OpenDB(dialect.SQLite, db)}, nil
}

// Close closes the database connections gracefully.
func (d *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if d.Driver != nil {
		if err := d.Driver.Close(); err != nil {
			logger.Error("failed to close sql driver", "error", err)
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (d *DB) HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	logger.Debug("pinging database")
	var err error
	if d.Pool != nil {
		err = d.Pool.Ping(ctx)
	} else {
		err = d.SQL().PingContext(ctx)
	}
	if err != nil {
		logger.Error("database ping failed", "error", err)
		return fmt.Errorf("%w: %w", common.ErrDatabase, err)
	}
	logger.Debug("database ping successful")
	return nil
}

var schema = map[string][]string{
	dialect.Postgres: {
		`CREATE TABLE IF NOT EXISTS expense_document (
			id               uuid PRIMARY KEY,
			solicitud_id     text NOT NULL,
			numero_operacion text NOT NULL UNIQUE,
			tipo_documento   text NOT NULL,
			fecha            text NULL,
			numero_documento text NOT NULL DEFAULT '',
			ruc              text NULL,
			razon_social     text NOT NULL DEFAULT '',
			total            numeric(12,2) NOT NULL,
			nombre_archivo   text NOT NULL,
			archivo_key      text NOT NULL DEFAULT '',
			mime_type        text NOT NULL DEFAULT '',
			sha256           text NOT NULL DEFAULT '',
			pagina           integer NOT NULL DEFAULT 1,
			creado           timestamptz NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS expense_document_solicitud_idx ON expense_document (solicitud_id, creado)`,
	},
	dialect.SQLite: {
		`CREATE TABLE IF NOT EXISTS expense_document (
			id               TEXT PRIMARY KEY,
			solicitud_id     TEXT NOT NULL,
			numero_operacion TEXT NOT NULL UNIQUE,
			tipo_documento   TEXT NOT NULL,
			fecha            TEXT NULL,
			numero_documento TEXT NOT NULL DEFAULT '',
			ruc              TEXT NULL,
			razon_social     TEXT NOT NULL DEFAULT '',
			total            REAL NOT NULL,
			nombre_archivo   TEXT NOT NULL,
			archivo_key      TEXT NOT NULL DEFAULT '',
			mime_type        TEXT NOT NULL DEFAULT '',
			sha256           TEXT NOT NULL DEFAULT '',
			pagina           INTEGER NOT NULL DEFAULT 1,
			creado           DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS expense_document_solicitud_idx ON expense_document (solicitud_id, creado)`,
	},
}

// EnsureSchema creates the document table when missing.
func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts, ok := schema[d.Dialect()]
	if !ok {
		return fmt.Errorf("no schema for dialect %q", d.Dialect())
	}
	for _, stmt := range stmts {
		if _, err := d.SQL().ExecContext(ctx, stmt); err != nil {
			return common.WrapError(fmt.Errorf("%w: %w", common.ErrDatabase, err), "ensure schema")
		}
	}
	return nil
}
