package app

import (
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var timeRe = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):[0-5][0-9]$`)

// GET /health
func (a *App) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /api/available-slots?date=YYYY-MM-DD
func (a *App) GetAvailableSlotsHandler(c *gin.Context) {
	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date required (YYYY-MM-DD)"})
		return
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, a.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date"})
		return
	}

	slots, err := a.AvailableSlots(c.Request.Context(), day)
	if err != nil {
		a.logger.Error("available slots lookup failed", "date", dateStr, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to load available slots"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

type createBookingReq struct {
	PackageID string `json:"package_id" binding:"required"`
	Date      string `json:"date" binding:"required"`
	Time      string `json:"time" binding:"required"`
}

// POST /api/bookings
func (a *App) CreateBookingHandler(c *gin.Context) {
	clientID := c.GetString("client_id")

	if res := a.bookingLimiter.Check(clientID); !res.Allowed {
		c.Header("Retry-After", res.Reset.UTC().Format(http.TimeFormat))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many booking requests"})
		return
	}

	var req createBookingReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !timeRe.MatchString(req.Time) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time must be HH:MM"})
		return
	}
	day, err := time.ParseInLocation("2006-01-02", req.Date, a.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	if day.Add(24 * time.Hour).Before(a.now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is in the past"})
		return
	}

	booking, err := a.CreateBooking(c.Request.Context(), clientID, req.PackageID, req.Date, req.Time)
	if err != nil {
		switch {
		case errors.Is(err, ErrPackageNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": ErrPackageNotFound.Error()})
		case errors.Is(err, ErrNoSessionsAvailable):
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrNoSessionsAvailable.Error()})
		case errors.Is(err, ErrSlotTaken):
			c.JSON(http.StatusConflict, gin.H{"error": ErrSlotTaken.Error()})
		default:
			a.logger.Error("booking creation failed", "client_id", clientID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusCreated, booking)
}

// GET /api/bookings - the caller's non-cancelled bookings.
func (a *App) ListBookingsHandler(c *gin.Context) {
	bookings, err := a.store.ListClientBookings(c.Request.Context(), c.GetString("client_id"))
	if err != nil {
		a.logger.Error("booking list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if bookings == nil {
		bookings = []Booking{}
	}
	c.JSON(http.StatusOK, bookings)
}

// DELETE /api/bookings/:id - owner or admin.
func (a *App) CancelBookingHandler(c *gin.Context) {
	actorID := c.GetString("client_id")
	isAdmin := c.GetString("role") == RoleAdmin

	_, err := a.CancelBooking(c.Request.Context(), c.Param("id"), actorID, isAdmin)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": ErrBookingNotFound.Error()})
			return
		}
		a.logger.Error("booking cancellation failed", "booking_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/reminders/sweep - invoked by the external scheduler.
func (a *App) SweepRemindersHandler(c *gin.Context) {
	if !a.sweepAuthorized(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	report, err := a.SweepReminders(c.Request.Context())
	if err != nil {
		a.logger.Error("reminder sweep failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, report)
}

type createClientReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=8"`
}

// POST /api/admin/clients
func (a *App) CreateClientHandler(c *gin.Context) {
	var req createClientReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// Stored lowercase so login's normalized lookup always matches.
	client := &Client{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        normalizeEmail(req.Email),
		Phone:        req.Phone,
		Role:         RoleClient,
		PasswordHash: string(hash),
		CreatedAt:    a.now().UTC(),
	}
	if err := a.store.CreateClient(c.Request.Context(), client); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": ErrEmailTaken.Error()})
			return
		}
		a.logger.Error("client creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, client)
}

// GET /api/admin/clients
func (a *App) ListClientsHandler(c *gin.Context) {
	clients, err := a.store.ListClients(c.Request.Context())
	if err != nil {
		a.logger.Error("client list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if clients == nil {
		clients = []Client{}
	}
	c.JSON(http.StatusOK, clients)
}

type createPackageReq struct {
	ClientIDs       []string `json:"client_ids" binding:"required,min=1"`
	Name            string   `json:"name" binding:"required"`
	TotalSessions   int      `json:"total_sessions" binding:"required,gt=0"`
	DurationMinutes int      `json:"duration_minutes"`
}

// POST /api/admin/packages
func (a *App) CreatePackageHandler(c *gin.Context) {
	var req createPackageReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 60
	}

	pkg := &Package{
		ID:              uuid.NewString(),
		Name:            req.Name,
		ClientIDs:       req.ClientIDs,
		TotalSessions:   req.TotalSessions,
		UsedSessions:    0,
		DurationMinutes: req.DurationMinutes,
		IsActive:        true,
		CreatedAt:       a.now().UTC(),
	}
	if err := a.store.CreatePackage(c.Request.Context(), pkg); err != nil {
		if errors.Is(err, ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": ErrClientNotFound.Error()})
			return
		}
		a.logger.Error("package creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, pkg)
}

// GET /api/admin/packages
func (a *App) ListPackagesHandler(c *gin.Context) {
	packages, err := a.store.ListPackages(c.Request.Context())
	if err != nil {
		a.logger.Error("package list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if packages == nil {
		packages = []Package{}
	}
	c.JSON(http.StatusOK, packages)
}

type updatePackageReq struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// PATCH /api/admin/packages/:id
func (a *App) UpdatePackageHandler(c *gin.Context) {
	var req updatePackageReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := a.store.SetPackageActive(c.Request.Context(), c.Param("id"), *req.IsActive); err != nil {
		if errors.Is(err, ErrPackageNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": ErrPackageNotFound.Error()})
			return
		}
		a.logger.Error("package update failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
