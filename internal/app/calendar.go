package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// Calendar is the external calendar capability the booking core
// depends on. The Google implementation owns token refresh internally;
// tests inject fakes.
type Calendar interface {
	ListBusyIntervals(ctx context.Context, day time.Time) ([]Interval, error)
	CreateEvent(ctx context.Context, title, description string, start, end time.Time) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// disconnectedCalendar stands in when OAuth credentials are absent.
type disconnectedCalendar struct{}

func (disconnectedCalendar) ListBusyIntervals(context.Context, time.Time) ([]Interval, error) {
	return nil, ErrCalendarNotConnected
}
func (disconnectedCalendar) CreateEvent(context.Context, string, string, time.Time, time.Time) (string, error) {
	return "", ErrCalendarNotConnected
}
func (disconnectedCalendar) DeleteEvent(context.Context, string) error {
	return ErrCalendarNotConnected
}

// GoogleCalendar talks to the studio's Google Calendar using an OAuth
// token persisted in Postgres. The admin authorises once through
// /api/calendar/connect; after that tokens refresh automatically and
// the refreshed token is written back.
type GoogleCalendar struct {
	oauth      *oauth2.Config
	db         *pgxpool.Pool
	calendarID string
	loc        *time.Location
	logger     *slog.Logger
}

// NewGoogleCalendar returns nil when the OAuth credentials are not
// configured; callers fall back to a disconnected adapter.
func NewGoogleCalendar(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *GoogleCalendar {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" || cfg.GoogleRedirectURL == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleCalendar{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		},
		db:         db,
		calendarID: cfg.GoogleCalendarID,
		loc:        cfg.Location(),
		logger:     logger,
	}
}

func (g *GoogleCalendar) ListBusyIntervals(ctx context.Context, day time.Time) ([]Interval, error) {
	srv, err := g.service(ctx)
	if err != nil {
		return nil, err
	}

	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, g.loc)
	endOfDay := startOfDay.Add(24 * time.Hour)

	events, err := srv.Events.List(g.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(startOfDay.Format(time.RFC3339)).
		TimeMax(endOfDay.Format(time.RFC3339)).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}

	var busy []Interval
	for _, item := range events.Items {
		// All-day events carry only a date; they have no concrete start
		// time and do not occupy a slot.
		if item.Start == nil || item.Start.DateTime == "" {
			continue
		}
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			continue
		}
		end := start
		if item.End != nil && item.End.DateTime != "" {
			if parsed, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil {
				end = parsed
			}
		}
		busy = append(busy, Interval{Start: start, End: end})
	}
	return busy, nil
}

func (g *GoogleCalendar) CreateEvent(ctx context.Context, title, description string, start, end time.Time) (string, error) {
	srv, err := g.service(ctx)
	if err != nil {
		return "", err
	}

	event := &calendar.Event{
		Summary:     title,
		Description: description,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: g.loc.String(),
		},
	}

	created, err := srv.Events.Insert(g.calendarID, event).Do()
	if err != nil {
		return "", fmt.Errorf("insert calendar event: %w", err)
	}
	return created.Id, nil
}

func (g *GoogleCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	srv, err := g.service(ctx)
	if err != nil {
		return err
	}
	if err := srv.Events.Delete(g.calendarID, eventID).Do(); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}

// service builds a Calendar API client from the stored token,
// refreshing and persisting it when expired.
func (g *GoogleCalendar) service(ctx context.Context) (*calendar.Service, error) {
	token, err := g.loadToken(ctx)
	if err != nil {
		return nil, err
	}

	if !token.Valid() {
		refreshed, err := g.oauth.TokenSource(ctx, token).Token()
		if err != nil {
			return nil, fmt.Errorf("refresh google token: %w", err)
		}
		if refreshed.RefreshToken == "" {
			refreshed.RefreshToken = token.RefreshToken
		}
		if err := g.saveToken(ctx, refreshed); err != nil {
			g.logger.Warn("refreshed google token not persisted", "error", err)
		}
		token = refreshed
	}

	client := g.oauth.Client(ctx, token)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return srv, nil
}

func (g *GoogleCalendar) loadToken(ctx context.Context) (*oauth2.Token, error) {
	var token oauth2.Token
	err := g.db.QueryRow(ctx,
		`SELECT access_token, refresh_token, expires_at FROM google_tokens WHERE id = 1`,
	).Scan(&token.AccessToken, &token.RefreshToken, &token.Expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCalendarNotConnected
		}
		return nil, fmt.Errorf("load google token: %w", err)
	}
	return &token, nil
}

func (g *GoogleCalendar) saveToken(ctx context.Context, token *oauth2.Token) error {
	_, err := g.db.Exec(ctx,
		`INSERT INTO google_tokens (id, access_token, refresh_token, expires_at, updated_at)
		 VALUES (1, $1, $2, $3, now())
		 ON CONFLICT (id) DO UPDATE
		 SET access_token = $1, refresh_token = $2, expires_at = $3, updated_at = now()`,
		token.AccessToken, token.RefreshToken, token.Expiry)
	if err != nil {
		return fmt.Errorf("save google token: %w", err)
	}
	return nil
}

// GET /api/calendar/connect - starts the one-time OAuth flow (admin).
func (a *App) ConnectCalendarHandler(c *gin.Context) {
	if a.google == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "google calendar not configured"})
		return
	}
	state := fmt.Sprintf("studio_%d", a.now().Unix())
	url := a.google.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	c.JSON(http.StatusOK, gin.H{"auth_url": url, "state": state})
}

// GET /oauth2callback - completes the OAuth flow and stores the token.
func (a *App) OAuth2CallbackHandler(c *gin.Context) {
	if a.google == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "google calendar not configured"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization code required"})
		return
	}

	token, err := a.google.oauth.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to exchange code for token"})
		return
	}
	if err := a.google.saveToken(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store token"})
		return
	}

	a.logger.Info("google calendar connected")
	c.JSON(http.StatusOK, gin.H{"message": "calendar connected"})
}
