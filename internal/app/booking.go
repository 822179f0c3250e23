package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Booking lifecycle: {absent} -> CONFIRMED -> CANCELLED, no way back.
// This layer is the only one allowed to decide fatal vs best-effort:
// the store is always fatal, calendar and WhatsApp never are.

// CreateBooking reserves a slot end-to-end:
//  1. the package must be assigned to the client, active, with capacity;
//  2. a calendar event is created best-effort (outage leaves the
//     reference empty and the booking proceeds);
//  3. the CONFIRMED row and the ledger increment commit atomically;
//  4. the confirmation message is sent best-effort after the commit.
//
// dateStr is YYYY-MM-DD and timeStr HH:MM, both in the studio timezone.
func (a *App) CreateBooking(ctx context.Context, clientID, packageID, dateStr, timeStr string) (*Booking, error) {
	day, err := time.ParseInLocation("2006-01-02", dateStr, a.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}
	tod, err := time.Parse("15:04", timeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: %w", timeStr, err)
	}
	startAt := time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, a.loc)

	client, err := a.store.ClientByID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	pkg, err := a.store.PackageForClient(ctx, packageID, clientID)
	if err != nil {
		return nil, err
	}
	if pkg.Remaining() <= 0 {
		return nil, ErrNoSessionsAvailable
	}

	endAt := startAt.Add(time.Duration(pkg.DurationMinutes) * time.Minute)

	var eventID string
	id, err := a.calendar.CreateEvent(ctx,
		fmt.Sprintf("Sessione %s", client.Name),
		fmt.Sprintf("Prenotazione studio - Pacchetto: %s", pkg.Name),
		startAt, endAt)
	if err != nil {
		a.logger.Warn("calendar event creation failed, booking continues without it",
			"client_id", clientID, "start_at", startAt, "error", err)
	} else {
		eventID = id
	}

	b := &Booking{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		PackageID:     packageID,
		Date:          dateStr,
		Time:          timeStr,
		StartAt:       startAt,
		Status:        StatusConfirmed,
		GoogleEventID: eventID,
		CreatedAt:     a.now().UTC(),
	}

	if err := a.store.CreateBookingReserving(ctx, b); err != nil {
		if eventID != "" {
			// The event outlives the failed booking; reconciliation is
			// manual, so leave enough context in the log.
			a.logger.Error("booking transaction failed after calendar event was created",
				"google_event_id", eventID, "client_id", clientID, "start_at", startAt, "error", err)
		}
		return nil, err
	}

	a.logger.Info("booking confirmed",
		"booking_id", b.ID, "client_id", clientID, "package_id", packageID, "start_at", startAt)

	if client.Phone == "" {
		a.logger.Info("client has no phone, skipping confirmation", "booking_id", b.ID)
		return b, nil
	}
	if err := a.notifier.Send(ctx, client.Phone, confirmationMessage(client.Name, startAt, timeStr)); err != nil {
		a.logger.Warn("confirmation message failed", "booking_id", b.ID, "error", err)
	}

	return b, nil
}

// CancelBooking cancels a CONFIRMED booking and returns its session to
// the package. The calendar event is deleted best-effort before the
// transaction; removing the booking wins over calendar cleanup. No
// message is sent on cancellation.
func (a *App) CancelBooking(ctx context.Context, bookingID, actorID string, isAdmin bool) (*Booking, error) {
	b, err := a.store.ConfirmedBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && b.ClientID != actorID {
		// Don't reveal other clients' bookings.
		return nil, ErrBookingNotFound
	}

	if b.GoogleEventID != "" {
		if err := a.calendar.DeleteEvent(ctx, b.GoogleEventID); err != nil {
			a.logger.Warn("calendar event deletion failed, cancelling anyway",
				"booking_id", b.ID, "google_event_id", b.GoogleEventID, "error", err)
		}
	}

	if err := a.store.CancelBookingReleasing(ctx, b.ID); err != nil {
		return nil, err
	}
	b.Status = StatusCancelled

	a.logger.Info("booking cancelled", "booking_id", b.ID, "actor_id", actorID)
	return b, nil
}
