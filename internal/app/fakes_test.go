package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"
)

// In-memory fakes for the Store, Calendar and Notifier boundaries.
// fakeStore mirrors the transactional semantics of PGStore under a
// single mutex, so concurrent bookings exercise the same
// check-then-increment serialisation the row lock provides.

type fakeStore struct {
	mu          sync.Mutex
	clients     map[string]*Client
	packages    map[string]*Package
	bookings    map[string]*Booking
	resetTokens map[string]string // client ID -> token
	resetExpiry map[string]time.Time

	createErr error // injected failure for CreateBookingReserving
	markErr   error // injected failure for MarkReminderSent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients:     map[string]*Client{},
		packages:    map[string]*Package{},
		bookings:    map[string]*Booking{},
		resetTokens: map[string]string{},
		resetExpiry: map[string]time.Time{},
	}
}

func (s *fakeStore) addClient(c Client) {
	s.clients[c.ID] = &c
}

func (s *fakeStore) addPackage(p Package) {
	s.packages[p.ID] = &p
}

func (s *fakeStore) addBooking(b Booking) {
	s.bookings[b.ID] = &b
}

func (s *fakeStore) usedSessions(packageID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packages[packageID].UsedSessions
}

func (s *fakeStore) CreateClient(_ context.Context, c *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.clients {
		if existing.Email == c.Email {
			return ErrEmailTaken
		}
	}
	cp := *c
	s.clients[c.ID] = &cp
	return nil
}

func (s *fakeStore) ListClients(context.Context) ([]Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Client
	for _, c := range s.clients {
		out = append(out, *c)
	}
	return out, nil
}

func (s *fakeStore) ClientByEmail(_ context.Context, email string) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrClientNotFound
}

func (s *fakeStore) ClientByID(_ context.Context, id string) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *fakeStore) SetPasswordResetToken(_ context.Context, clientID, token string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientID]; !ok {
		return ErrClientNotFound
	}
	s.resetTokens[clientID] = token
	s.resetExpiry[clientID] = expires
	return nil
}

func (s *fakeStore) ClientByResetToken(_ context.Context, token string, now time.Time) (*Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.resetTokens {
		if t == token && s.resetExpiry[id].After(now) {
			cp := *s.clients[id]
			return &cp, nil
		}
	}
	return nil, ErrInvalidResetToken
}

func (s *fakeStore) UpdatePassword(_ context.Context, clientID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	c.PasswordHash = hash
	delete(s.resetTokens, clientID)
	delete(s.resetExpiry, clientID)
	return nil
}

func (s *fakeStore) CreatePackage(_ context.Context, p *Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, clientID := range p.ClientIDs {
		if _, ok := s.clients[clientID]; !ok {
			return ErrClientNotFound
		}
	}
	cp := *p
	s.packages[p.ID] = &cp
	return nil
}

func (s *fakeStore) ListPackages(context.Context) ([]Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Package
	for _, p := range s.packages {
		out = append(out, *p)
	}
	return out, nil
}

func (s *fakeStore) SetPackageActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[id]
	if !ok {
		return ErrPackageNotFound
	}
	p.IsActive = active
	return nil
}

func (s *fakeStore) PackageForClient(_ context.Context, packageID, clientID string) (*Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[packageID]
	if !ok || !p.IsActive || !slices.Contains(p.ClientIDs, clientID) {
		return nil, ErrPackageNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) CreateBookingReserving(_ context.Context, b *Booking) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.bookings {
		if existing.Status == StatusConfirmed && existing.StartAt.Equal(b.StartAt) {
			return ErrSlotTaken
		}
	}

	p, ok := s.packages[b.PackageID]
	if !ok || !p.IsActive || !slices.Contains(p.ClientIDs, b.ClientID) {
		return ErrPackageNotFound
	}
	if p.UsedSessions >= p.TotalSessions {
		return ErrNoSessionsAvailable
	}

	p.UsedSessions++
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *fakeStore) ConfirmedBooking(_ context.Context, id string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != StatusConfirmed {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeStore) CancelBookingReleasing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok || b.Status != StatusConfirmed {
		return ErrBookingNotFound
	}
	b.Status = StatusCancelled
	if p, ok := s.packages[b.PackageID]; ok && p.UsedSessions > 0 {
		p.UsedSessions--
	}
	return nil
}

func (s *fakeStore) ListClientBookings(_ context.Context, clientID string) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Booking
	for _, b := range s.bookings {
		if b.ClientID == clientID && b.Status != StatusCancelled {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *fakeStore) BookingsDueReminder(_ context.Context, from, to time.Time) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Booking
	for _, b := range s.bookings {
		if b.Status == StatusConfirmed && !b.ReminderSent &&
			!b.StartAt.Before(from) && !b.StartAt.After(to) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *fakeStore) MarkReminderSent(_ context.Context, bookingID string) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[bookingID]; ok {
		b.ReminderSent = true
	}
	return nil
}

type fakeCalendar struct {
	mu        sync.Mutex
	busy      []Interval
	listErr   error
	createErr error
	deleteErr error
	created   []string
	deleted   []string
	nextID    int
}

func (c *fakeCalendar) ListBusyIntervals(context.Context, time.Time) ([]Interval, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.busy, nil
}

func (c *fakeCalendar) CreateEvent(_ context.Context, _, _ string, _, _ time.Time) (string, error) {
	if c.createErr != nil {
		return "", c.createErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := fmt.Sprintf("evt-%d", c.nextID)
	c.created = append(c.created, id)
	return id, nil
}

func (c *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, eventID)
	return nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []string // phone numbers, in send order
	sendErr error
}

func (n *fakeNotifier) Send(_ context.Context, phone, _ string) error {
	if n.sendErr != nil {
		return n.sendErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, phone)
	return nil
}

func testConfig() Config {
	return Config{
		Timezone:              "UTC",
		MinHour:               8,
		MaxHour:               20,
		SlotMinutes:           30,
		ReminderLeadMinutes:   60,
		ReminderWindowMinutes: 10,
		JWTSecret:             "test-secret",
		JWTExpireMin:          60,
		CronSecret:            "cron-secret",
		SchedulerHeader:       "X-Scheduler",
		BookingRateLimit:      1000,
		BookingRateWindow:     time.Minute,
		LoginRateLimit:        1000,
		LoginRateWindow:       time.Minute,
	}
}

func newTestApp(store Store, cal Calendar, notifier Notifier) *App {
	cfg := testConfig()
	return &App{
		cfg:            cfg,
		store:          store,
		calendar:       cal,
		notifier:       notifier,
		loc:            time.UTC,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		bookingLimiter: NewRateLimiter(cfg.BookingRateLimit, cfg.BookingRateWindow),
		loginLimiter:   NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow),
		now:            time.Now,
	}
}
