package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Session ledger: the used/total counter on a package must move in
// lock-step with a booking status write, inside the caller's
// transaction. Both helpers lock the package row first so concurrent
// reservations against the same package are serialised by Postgres.

// reserveSession consumes one session from the package on behalf of
// clientID. Returns ErrPackageNotFound when the package is missing,
// inactive, or not assigned to the client, and ErrNoSessionsAvailable
// when the counter is exhausted.
func (s *PGStore) reserveSession(ctx context.Context, tx pgx.Tx, packageID, clientID string) error {
	var total, used int
	var active bool
	err := tx.QueryRow(ctx,
		`SELECT total_sessions, used_sessions, is_active
		 FROM packages WHERE id = $1
		 FOR UPDATE`,
		packageID,
	).Scan(&total, &used, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPackageNotFound
		}
		return fmt.Errorf("lock package row: %w", err)
	}
	if !active {
		return ErrPackageNotFound
	}

	var assigned bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM package_clients WHERE package_id = $1 AND client_id = $2
		)`,
		packageID, clientID,
	).Scan(&assigned)
	if err != nil {
		return fmt.Errorf("check package assignment: %w", err)
	}
	if !assigned {
		return ErrPackageNotFound
	}

	if used >= total {
		return ErrNoSessionsAvailable
	}

	if _, err := tx.Exec(ctx,
		`UPDATE packages SET used_sessions = used_sessions + 1 WHERE id = $1`,
		packageID,
	); err != nil {
		return fmt.Errorf("increment used_sessions: %w", err)
	}
	return nil
}

// releaseSession returns one session to the package. A counter already
// at zero means something upstream cancelled a booking that never
// reserved; the cancellation still goes through but the violation is
// logged at error level.
func (s *PGStore) releaseSession(ctx context.Context, tx pgx.Tx, packageID string) error {
	var used int
	err := tx.QueryRow(ctx,
		`SELECT used_sessions FROM packages WHERE id = $1 FOR UPDATE`,
		packageID,
	).Scan(&used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPackageNotFound
		}
		return fmt.Errorf("lock package row: %w", err)
	}

	if used <= 0 {
		s.logger.Error("session ledger underflow, counter already at zero",
			"package_id", packageID)
		return nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE packages SET used_sessions = used_sessions - 1 WHERE id = $1`,
		packageID,
	); err != nil {
		return fmt.Errorf("decrement used_sessions: %w", err)
	}
	return nil
}
