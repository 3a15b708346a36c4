package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/gatekeeper/core/logger"
)

const component = "db"

// connectTimeout bounds the initial connect and ping.
const connectTimeout = 5 * time.Second

// Connect opens a pooled sqlx handle and verifies it with a ping.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		logger.Error(ctx, component, "db.connect", append(cfg.logAttrs(),
			slog.String("status", "fail"),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	logger.Info(ctx, component, "db.connect", append(cfg.logAttrs(),
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", logger.Took(start)),
	)...)
	return db, nil
}

// WaitForPostgres pings dsn with exponential backoff until the server
// answers or timeout elapses.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(500*time.Millisecond),
		backoff.WithMaxInterval(5*time.Second),
		backoff.WithMaxElapsedTime(timeout),
	), ctx)
	attempt := 0
	ping := func() error {
		attempt++
		return db.PingContext(ctx)
	}
	notify := func(err error, wait time.Duration) {
		logger.Debug(ctx, component, "db.wait",
			slog.String("status", "retry"),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.String("err", err.Error()),
		)
	}
	if err := backoff.RetryNotify(ping, policy, notify); err != nil {
		return fmt.Errorf("database not ready after %s: %w", timeout, err)
	}
	return nil
}

func (c Config) logAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.String("db", c.Name),
	}
}
