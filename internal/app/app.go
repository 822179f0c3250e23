package app

import (
	"log/slog"
	"time"
)

// App wires the booking core to its collaborators. Handlers are
// methods on App; the calendar and notifier are injected so tests can
// swap in fakes.
type App struct {
	cfg      Config
	store    Store
	calendar Calendar
	google   *GoogleCalendar // nil unless OAuth credentials are configured
	notifier Notifier
	loc      *time.Location
	logger   *slog.Logger

	bookingLimiter *RateLimiter
	loginLimiter   *RateLimiter

	now func() time.Time
}

func New(cfg Config, store Store, google *GoogleCalendar, notifier Notifier, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		cfg:            cfg,
		store:          store,
		google:         google,
		notifier:       notifier,
		loc:            cfg.Location(),
		logger:         logger,
		bookingLimiter: NewRateLimiter(cfg.BookingRateLimit, cfg.BookingRateWindow),
		loginLimiter:   NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow),
		now:            time.Now,
	}
	if google != nil {
		a.calendar = google
	} else {
		a.calendar = disconnectedCalendar{}
	}
	return a
}
