package app

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, loaded from the environment.
type Config struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Booking grid: slots from MinHour to MaxHour (exclusive) stepped by
	// SlotMinutes, all in the studio timezone.
	Timezone    string `envconfig:"STUDIO_TIMEZONE" default:"Europe/Rome"`
	MinHour     int    `envconfig:"BOOKING_MIN_HOUR" default:"8"`
	MaxHour     int    `envconfig:"BOOKING_MAX_HOUR" default:"20"`
	SlotMinutes int    `envconfig:"BOOKING_SLOT_MINUTES" default:"30"`

	// Reminders go out ReminderLeadMinutes before a session, with a
	// ReminderWindowMinutes-wide tolerance around that instant.
	ReminderLeadMinutes   int `envconfig:"REMINDER_LEAD_MINUTES" default:"60"`
	ReminderWindowMinutes int `envconfig:"REMINDER_WINDOW_MINUTES" default:"10"`

	JWTSecret       string `envconfig:"JWT_HMAC_SECRET" required:"true"`
	JWTExpireMin    int    `envconfig:"JWT_EXPIRE_MIN" default:"720"`
	CronSecret      string `envconfig:"CRON_SECRET"`
	SchedulerHeader string `envconfig:"SCHEDULER_HEADER" default:"X-Scheduler"`

	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL"`
	GoogleCalendarID   string `envconfig:"GOOGLE_CALENDAR_ID" default:"primary"`

	TwilioAccountSID   string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom string `envconfig:"TWILIO_WHATSAPP_FROM"`

	BookingRateLimit  int           `envconfig:"BOOKING_RATE_LIMIT" default:"10"`
	BookingRateWindow time.Duration `envconfig:"BOOKING_RATE_WINDOW" default:"1m"`
	LoginRateLimit    int           `envconfig:"LOGIN_RATE_LIMIT" default:"5"`
	LoginRateWindow   time.Duration `envconfig:"LOGIN_RATE_WINDOW" default:"15m"`
}

func LoadConfig() (Config, error) {
	var c Config
	err := envconfig.Process("", &c)
	return c, err
}

// Location resolves the studio timezone, falling back to UTC when the
// zone database does not know the configured name.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
