package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"studio-booking/internal/app"
	"studio-booking/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx := context.Background()

	pool, err := app.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer pool.Close()

	if err := app.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	store := app.NewPGStore(pool, logger)

	google := app.NewGoogleCalendar(cfg, pool, logger)
	if google == nil {
		logger.Warn("google calendar credentials missing, slot listing will fail until configured")
	}

	var notifier app.Notifier
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioWhatsAppFrom != "" {
		notifier = app.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom, logger)
	} else {
		logger.Warn("twilio credentials missing, messages go to the log")
		notifier = app.NewLogNotifier(logger)
	}

	appInstance := app.New(cfg, store, google, notifier, logger)

	router := gin.Default()

	router.GET("/health", appInstance.HealthHandler)
	router.POST("/api/login", appInstance.LoginHandler)
	router.POST("/api/auth/forgot-password", appInstance.ForgotPasswordHandler)
	router.POST("/api/auth/reset-password", appInstance.ResetPasswordHandler)

	// OAuth2 callback and the cron-triggered sweep carry their own auth.
	router.GET("/oauth2callback", appInstance.OAuth2CallbackHandler)
	router.GET("/api/reminders/sweep", appInstance.SweepRemindersHandler)

	api := router.Group("/api", appInstance.AuthMiddleware())
	{
		api.GET("/available-slots", appInstance.GetAvailableSlotsHandler)
		api.GET("/bookings", appInstance.ListBookingsHandler)
		api.POST("/bookings", appInstance.CreateBookingHandler)
		api.DELETE("/bookings/:id", appInstance.CancelBookingHandler)

		admin := api.Group("/admin", appInstance.RequireAdmin())
		{
			admin.POST("/clients", appInstance.CreateClientHandler)
			admin.GET("/clients", appInstance.ListClientsHandler)
			admin.POST("/packages", appInstance.CreatePackageHandler)
			admin.GET("/packages", appInstance.ListPackagesHandler)
			admin.PATCH("/packages/:id", appInstance.UpdatePackageHandler)
			admin.GET("/calendar/connect", appInstance.ConnectCalendarHandler)
		}
	}

	if err := server.Run(router, cfg.Port, logger); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func level(v string) slog.Level {
	switch v {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
