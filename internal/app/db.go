package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool creates and validates a pgxpool connection pool. It retries a
// few times to accommodate containers starting up.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				return pool, nil
			} else {
				err = pingErr
			}
			pool.Close()
		}
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

// EnsureSchema creates the tables the service needs if they are missing.
// The CHECK on packages is a last line of defence for the session
// counter invariant; the ledger enforces it under a row lock first.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS clients (
			id                     TEXT PRIMARY KEY,
			name                   TEXT NOT NULL,
			email                  TEXT NOT NULL UNIQUE,
			phone                  TEXT NOT NULL DEFAULT '',
			role                   TEXT NOT NULL DEFAULT 'client',
			password_hash          TEXT NOT NULL,
			reset_token            TEXT,
			reset_token_expires_at TIMESTAMPTZ,
			created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS packages (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			total_sessions   INT NOT NULL,
			used_sessions    INT NOT NULL DEFAULT 0,
			duration_minutes INT NOT NULL DEFAULT 60,
			is_active        BOOLEAN NOT NULL DEFAULT TRUE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			CHECK (used_sessions >= 0 AND used_sessions <= total_sessions)
		)`,
		`CREATE TABLE IF NOT EXISTS package_clients (
			package_id TEXT NOT NULL REFERENCES packages(id),
			client_id  TEXT NOT NULL REFERENCES clients(id),
			PRIMARY KEY (package_id, client_id)
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id              TEXT PRIMARY KEY,
			client_id       TEXT NOT NULL REFERENCES clients(id),
			package_id      TEXT NOT NULL REFERENCES packages(id),
			slot_date       TEXT NOT NULL,
			slot_time       TEXT NOT NULL,
			start_at        TIMESTAMPTZ NOT NULL,
			status          TEXT NOT NULL,
			google_event_id TEXT,
			reminder_sent   BOOLEAN NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS bookings_reminder_idx
			ON bookings (status, reminder_sent, start_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS bookings_confirmed_start_idx
			ON bookings (start_at) WHERE status = 'CONFIRMED'`,
		`CREATE TABLE IF NOT EXISTS google_tokens (
			id            INT PRIMARY KEY DEFAULT 1,
			access_token  TEXT NOT NULL,
			refresh_token TEXT NOT NULL,
			expires_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, q := range ddl {
		if _, err := pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
