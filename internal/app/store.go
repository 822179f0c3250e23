package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence boundary for the booking core. The two
// *Reserving/*Releasing operations are atomic units: the booking status
// write and the ledger mutation commit together or not at all.
type Store interface {
	CreateClient(ctx context.Context, c *Client) error
	ListClients(ctx context.Context) ([]Client, error)
	ClientByEmail(ctx context.Context, email string) (*Client, error)
	ClientByID(ctx context.Context, id string) (*Client, error)
	SetPasswordResetToken(ctx context.Context, clientID, token string, expires time.Time) error
	ClientByResetToken(ctx context.Context, token string, now time.Time) (*Client, error)
	UpdatePassword(ctx context.Context, clientID, hash string) error

	CreatePackage(ctx context.Context, p *Package) error
	ListPackages(ctx context.Context) ([]Package, error)
	SetPackageActive(ctx context.Context, id string, active bool) error
	PackageForClient(ctx context.Context, packageID, clientID string) (*Package, error)

	CreateBookingReserving(ctx context.Context, b *Booking) error
	ConfirmedBooking(ctx context.Context, id string) (*Booking, error)
	CancelBookingReleasing(ctx context.Context, id string) error
	ListClientBookings(ctx context.Context, clientID string) ([]Booking, error)
	BookingsDueReminder(ctx context.Context, from, to time.Time) ([]Booking, error)
	MarkReminderSent(ctx context.Context, bookingID string) error
}

type PGStore struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewPGStore(db *pgxpool.Pool, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{db: db, logger: logger}
}

func (s *PGStore) CreateClient(ctx context.Context, c *Client) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO clients (id, name, email, phone, role, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Email, c.Phone, c.Role, c.PasswordHash, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (s *PGStore) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, email, phone, role, created_at
		 FROM clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var out []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Role, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) ClientByEmail(ctx context.Context, email string) (*Client, error) {
	return s.scanClient(ctx, `WHERE email = $1`, email)
}

func (s *PGStore) ClientByID(ctx context.Context, id string) (*Client, error) {
	return s.scanClient(ctx, `WHERE id = $1`, id)
}

func (s *PGStore) scanClient(ctx context.Context, where string, arg any) (*Client, error) {
	var c Client
	err := s.db.QueryRow(ctx,
		`SELECT id, name, email, phone, role, password_hash, created_at
		 FROM clients `+where, arg,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Role, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

func (s *PGStore) SetPasswordResetToken(ctx context.Context, clientID, token string, expires time.Time) error {
	res, err := s.db.Exec(ctx,
		`UPDATE clients SET reset_token = $1, reset_token_expires_at = $2 WHERE id = $3`,
		token, expires, clientID)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

// ClientByResetToken resolves a reset token that has not expired yet.
// Unknown and expired tokens are indistinguishable to the caller.
func (s *PGStore) ClientByResetToken(ctx context.Context, token string, now time.Time) (*Client, error) {
	var c Client
	err := s.db.QueryRow(ctx,
		`SELECT id, name, email, phone, role, password_hash, created_at
		 FROM clients
		 WHERE reset_token = $1 AND reset_token_expires_at > $2`,
		token, now,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Role, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("get client by reset token: %w", err)
	}
	return &c, nil
}

// UpdatePassword stores the new hash and burns the reset token.
func (s *PGStore) UpdatePassword(ctx context.Context, clientID, hash string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE clients
		 SET password_hash = $1, reset_token = NULL, reset_token_expires_at = NULL
		 WHERE id = $2`,
		hash, clientID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PGStore) CreatePackage(ctx context.Context, p *Package) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, clientID := range p.ClientIDs {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, clientID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check client: %w", err)
		}
		if !exists {
			return ErrClientNotFound
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO packages (id, name, total_sessions, used_sessions, duration_minutes, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.TotalSessions, p.UsedSessions, p.DurationMinutes, p.IsActive, p.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert package: %w", err)
	}

	for _, clientID := range p.ClientIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO package_clients (package_id, client_id) VALUES ($1, $2)`,
			p.ID, clientID,
		); err != nil {
			return fmt.Errorf("assign package: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PGStore) ListPackages(ctx context.Context) ([]Package, error) {
	rows, err := s.db.Query(ctx,
		`SELECT p.id, p.name, p.total_sessions, p.used_sessions, p.duration_minutes,
		        p.is_active, p.created_at,
		        COALESCE(array_agg(pc.client_id) FILTER (WHERE pc.client_id IS NOT NULL), '{}')
		 FROM packages p
		 LEFT JOIN package_clients pc ON pc.package_id = p.id
		 GROUP BY p.id
		 ORDER BY p.created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var out []Package
	for rows.Next() {
		var p Package
		if err := rows.Scan(&p.ID, &p.Name, &p.TotalSessions, &p.UsedSessions,
			&p.DurationMinutes, &p.IsActive, &p.CreatedAt, &p.ClientIDs); err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) SetPackageActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.Exec(ctx,
		`UPDATE packages SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("update package: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrPackageNotFound
	}
	return nil
}

// PackageForClient loads a package the client is allowed to book
// against: assigned to them and active.
func (s *PGStore) PackageForClient(ctx context.Context, packageID, clientID string) (*Package, error) {
	var p Package
	err := s.db.QueryRow(ctx,
		`SELECT p.id, p.name, p.total_sessions, p.used_sessions, p.duration_minutes,
		        p.is_active, p.created_at
		 FROM packages p
		 JOIN package_clients pc ON pc.package_id = p.id
		 WHERE p.id = $1 AND pc.client_id = $2 AND p.is_active`,
		packageID, clientID,
	).Scan(&p.ID, &p.Name, &p.TotalSessions, &p.UsedSessions,
		&p.DurationMinutes, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("get package: %w", err)
	}
	p.ClientIDs = []string{clientID}
	return &p, nil
}

// CreateBookingReserving inserts the booking as CONFIRMED and consumes
// one session on its package in a single transaction. The up-front slot
// check catches the common conflict; it cannot lock a row that does not
// exist yet, so the partial unique index on confirmed start_at decides
// the race, turning the loser's insert into ErrSlotTaken.
func (s *PGStore) CreateBookingReserving(ctx context.Context, b *Booking) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var existingID string
	err = tx.QueryRow(ctx,
		`SELECT id FROM bookings
		 WHERE start_at = $1 AND status = $2
		 FOR UPDATE`,
		b.StartAt, StatusConfirmed,
	).Scan(&existingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check slot: %w", err)
	}
	if existingID != "" {
		return ErrSlotTaken
	}

	if err := s.reserveSession(ctx, tx, b.PackageID, b.ClientID); err != nil {
		return err
	}

	var eventID *string
	if b.GoogleEventID != "" {
		eventID = &b.GoogleEventID
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO bookings
		 (id, client_id, package_id, slot_date, slot_time, start_at, status, google_event_id, reminder_sent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)`,
		b.ID, b.ClientID, b.PackageID, b.Date, b.Time, b.StartAt, b.Status, eventID, b.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	return tx.Commit(ctx)
}

// ConfirmedBooking loads a booking that is still CONFIRMED. A missing
// or already-cancelled booking is the same ErrBookingNotFound: there is
// no un-cancel, so cancelling twice is rejected.
func (s *PGStore) ConfirmedBooking(ctx context.Context, id string) (*Booking, error) {
	b, err := s.scanBooking(s.db.QueryRow(ctx,
		bookingColumns+` FROM bookings WHERE id = $1 AND status = $2`,
		id, StatusConfirmed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// CancelBookingReleasing flips the booking to CANCELLED and returns its
// session to the package in one transaction. The conditional UPDATE
// catches a concurrent cancel that won the race.
func (s *PGStore) CancelBookingReleasing(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var packageID string
	err = tx.QueryRow(ctx,
		`UPDATE bookings SET status = $1
		 WHERE id = $2 AND status = $3
		 RETURNING package_id`,
		StatusCancelled, id, StatusConfirmed,
	).Scan(&packageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBookingNotFound
		}
		return fmt.Errorf("cancel booking: %w", err)
	}

	if err := s.releaseSession(ctx, tx, packageID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PGStore) ListClientBookings(ctx context.Context, clientID string) ([]Booking, error) {
	rows, err := s.db.Query(ctx,
		bookingColumns+` FROM bookings
		 WHERE client_id = $1 AND status != $2
		 ORDER BY start_at ASC`,
		clientID, StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()
	return s.collectBookings(rows)
}

func (s *PGStore) BookingsDueReminder(ctx context.Context, from, to time.Time) ([]Booking, error) {
	rows, err := s.db.Query(ctx,
		bookingColumns+` FROM bookings
		 WHERE status = $1 AND reminder_sent = FALSE
		   AND start_at >= $2 AND start_at <= $3
		 ORDER BY start_at ASC`,
		StatusConfirmed, from, to)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()
	return s.collectBookings(rows)
}

func (s *PGStore) MarkReminderSent(ctx context.Context, bookingID string) error {
	_, err := s.db.Exec(ctx,
		`UPDATE bookings SET reminder_sent = TRUE WHERE id = $1`, bookingID)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return nil
}

const bookingColumns = `SELECT id, client_id, package_id, slot_date, slot_time, start_at, status, google_event_id, reminder_sent, created_at`

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type pgxRow interface {
	Scan(dest ...any) error
}

func (s *PGStore) scanBooking(row pgxRow) (*Booking, error) {
	var b Booking
	var eventID *string
	if err := row.Scan(&b.ID, &b.ClientID, &b.PackageID, &b.Date, &b.Time,
		&b.StartAt, &b.Status, &eventID, &b.ReminderSent, &b.CreatedAt); err != nil {
		return nil, err
	}
	if eventID != nil {
		b.GoogleEventID = *eventID
	}
	return &b, nil
}

func (s *PGStore) collectBookings(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		b, err := s.scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
