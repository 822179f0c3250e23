package app

import (
	"context"
	"time"
)

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// Per-booking sweep outcomes.
const (
	ReminderSent    = "sent"
	ReminderErrored = "error"
	ReminderSkipped = "skipped"
)

type ReminderResult struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type SweepReport struct {
	Processed int              `json:"processed"`
	Results   []ReminderResult `json:"results"`
}

// SweepReminders sends a WhatsApp reminder for every CONFIRMED,
// unreminded booking starting about one lead time from now. The sweep
// is safe to re-run: a booking is marked only after a successful send,
// so failures are retried by later sweeps while the window lasts, and
// successes drop out of the selection. Clients without a phone are
// skipped. A single failure never aborts the sweep.
func (a *App) SweepReminders(ctx context.Context) (*SweepReport, error) {
	now := a.now()
	lead := minutes(a.cfg.ReminderLeadMinutes)
	tol := minutes(a.cfg.ReminderWindowMinutes) / 2
	from := now.Add(lead - tol)
	to := now.Add(lead + tol)

	due, err := a.store.BookingsDueReminder(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Processed: len(due), Results: []ReminderResult{}}
	for _, b := range due {
		report.Results = append(report.Results, a.remind(ctx, b))
	}
	return report, nil
}

func (a *App) remind(ctx context.Context, b Booking) ReminderResult {
	client, err := a.store.ClientByID(ctx, b.ClientID)
	if err != nil {
		a.logger.Error("reminder client lookup failed", "booking_id", b.ID, "error", err)
		return ReminderResult{BookingID: b.ID, Status: ReminderErrored, Error: err.Error()}
	}
	if client.Phone == "" {
		return ReminderResult{BookingID: b.ID, Status: ReminderSkipped}
	}

	msg := reminderMessage(client.Name, b.StartAt.In(a.loc), b.Time)
	if err := a.notifier.Send(ctx, client.Phone, msg); err != nil {
		a.logger.Warn("reminder send failed, will retry on next sweep",
			"booking_id", b.ID, "error", err)
		return ReminderResult{BookingID: b.ID, Status: ReminderErrored, Error: err.Error()}
	}

	if err := a.store.MarkReminderSent(ctx, b.ID); err != nil {
		// Sent but not recorded: a later sweep may resend. Best-effort
		// at-most-approximately-once, not exactly-once.
		a.logger.Error("reminder sent but not marked", "booking_id", b.ID, "error", err)
		return ReminderResult{BookingID: b.ID, Status: ReminderErrored, Error: err.Error()}
	}

	return ReminderResult{BookingID: b.ID, Status: ReminderSent}
}
