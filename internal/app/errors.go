package app

import "errors"

// Business-rule violations. Handlers map these to HTTP statuses with
// errors.Is; anything else is reported as a generic internal error.
var (
	ErrPackageNotFound     = errors.New("package not found or not active")
	ErrNoSessionsAvailable = errors.New("no sessions available")
	ErrBookingNotFound     = errors.New("booking not found or already cancelled")
	ErrSlotTaken           = errors.New("slot already booked")
	ErrClientNotFound      = errors.New("client not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")

	// ErrCalendarNotConnected means no Google token has been stored yet.
	// Fatal for slot listing, best-effort for booking sync.
	ErrCalendarNotConnected = errors.New("google calendar not connected")
)
