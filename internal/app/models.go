package app

import "time"

const (
	StatusConfirmed = "CONFIRMED"
	StatusCancelled = "CANCELLED"
)

const (
	RoleClient = "client"
	RoleAdmin  = "admin"
)

// Client is a studio member (or the admin) who books sessions.
type Client struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Package is a purchased block of training sessions. A package may be
// shared between several clients; the used/total counter is per package.
type Package struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ClientIDs       []string  `json:"client_ids"`
	TotalSessions   int       `json:"total_sessions"`
	UsedSessions    int       `json:"used_sessions"`
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
}

// Remaining returns the number of sessions left on the package.
func (p *Package) Remaining() int {
	return p.TotalSessions - p.UsedSessions
}

// Booking is one reserved slot consuming one session from a package.
// GoogleEventID is a weak reference: the calendar event may be missing
// and that must never block a booking mutation.
type Booking struct {
	ID            string    `json:"id"`
	ClientID      string    `json:"client_id"`
	PackageID     string    `json:"package_id"`
	Date          string    `json:"date"` // YYYY-MM-DD, studio timezone
	Time          string    `json:"time"` // HH:MM, studio timezone
	StartAt       time.Time `json:"start_at"`
	Status        string    `json:"status"`
	GoogleEventID string    `json:"google_event_id,omitempty"`
	ReminderSent  bool      `json:"reminder_sent"`
	CreatedAt     time.Time `json:"created_at"`
}

// Interval is a busy period on the studio calendar.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
