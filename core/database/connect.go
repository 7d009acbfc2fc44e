package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/deskbot/core/logger"
)

const (
	attemptTimeout = 5 * time.Second
	retryPause     = 2 * time.Second
)

// Connect opens the pool, retrying until the server answers or
// cfg.ConnectWait elapses. Containers often start the bot before postgres.
func Connect(cfg Config) (*sqlx.DB, error) {
	start := time.Now()
	deadline := start.Add(cfg.ConnectWait())

	var (
		db       *sqlx.DB
		err      error
		attempts int
	)
	for {
		attempts++
		db, err = dialOnce(cfg)
		if err == nil || time.Now().Add(retryPause).After(deadline) {
			break
		}
		logger.DB.Debug("db not ready",
			slog.String("event", "db.connect"),
			slog.Int("attempts", attempts),
			slog.String("err", err.Error()),
		)
		time.Sleep(retryPause)
	}

	attrs := []slog.Attr{
		slog.String("event", "db.connect"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs, slog.String("err", err.Error()))
		logger.DB.LogAttrs(context.Background(), slog.LevelError, "db connect failed", attrs...)
		return nil, fmt.Errorf("db connect after %d attempts: %w", attempts, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(max(1, cfg.MaxConnections/2))
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	attrs = append(attrs, slog.Int("pool_open", cfg.MaxConnections))
	logger.DB.LogAttrs(context.Background(), slog.LevelInfo, "db connected", attrs...)
	return db, nil
}

func dialOnce(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), attemptTimeout)
	defer cancel()
	return sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
}
