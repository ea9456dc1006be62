package db

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewPool opens the PostgreSQL pool backing the reading store. The pool is
// checked and the schema migrated when the app starts.
func NewPool(lc fx.Lifecycle, logger *zap.Logger, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] invalid DATABASE_URL %s: %w", redact(dsn), err)
	}

	target := []zap.Field{
		zap.String("host", config.ConnConfig.Host),
		zap.Uint16("port", config.ConnConfig.Port),
		zap.String("database", config.ConnConfig.Database),
		zap.Int32("max_conns", config.MaxConns),
	}
	logger.Info("initializing reading store pool", target...)

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("[DATABASE] failed to create connection pool: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				logger.Error("reading store unreachable", append(target, zap.Error(err))...)
				return fmt.Errorf("[DATABASE CONNECTION FAILED] %s did not answer, check that the database is running and DATABASE_URL points at it: %w", redact(dsn), err)
			}
			if err := RunMigrations(pool); err != nil {
				logger.Error("reading store migration failed", zap.Error(err))
				return fmt.Errorf("[DATABASE MIGRATION FAILED] %w", err)
			}
			logger.Info("reading store ready", target...)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			pool.Close()
			logger.Info("reading store pool closed")
			return nil
		},
	})

	return pool, nil
}

// redact hides the password of a URL-form DSN. Keyword/value DSNs are not
// echoed at all since the password cannot be located reliably.
func redact(dsn string) string {
	if dsn == "" {
		return "<empty>"
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "<unparsed dsn>"
	}
	return u.Redacted()
}
