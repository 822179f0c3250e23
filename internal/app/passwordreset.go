package app

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const resetTokenTTL = time.Hour

type forgotPasswordReq struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /api/auth/forgot-password - stores a one-hour reset token and
// delivers it over WhatsApp. The response is identical whether or not
// the email is registered.
func (a *App) ForgotPasswordHandler(c *gin.Context) {
	if res := a.loginLimiter.Check(c.ClientIP()); !res.Allowed {
		c.Header("Retry-After", res.Reset.UTC().Format(http.TimeFormat))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		return
	}

	var req forgotPasswordReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply := gin.H{"message": "if the email is registered, reset instructions have been sent"}

	client, err := a.store.ClientByEmail(c.Request.Context(), normalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, ErrClientNotFound) {
			a.logger.Error("password reset lookup failed", "error", err)
		}
		c.JSON(http.StatusOK, reply)
		return
	}

	token, err := newResetToken()
	if err != nil {
		a.logger.Error("reset token generation failed", "client_id", client.ID, "error", err)
		c.JSON(http.StatusOK, reply)
		return
	}
	if err := a.store.SetPasswordResetToken(c.Request.Context(), client.ID, token, a.now().Add(resetTokenTTL)); err != nil {
		a.logger.Error("reset token not stored", "client_id", client.ID, "error", err)
		c.JSON(http.StatusOK, reply)
		return
	}

	if client.Phone == "" {
		a.logger.Info("client has no phone, reset token stored but undeliverable", "client_id", client.ID)
	} else if err := a.notifier.Send(c.Request.Context(), client.Phone, resetMessage(client.Name, token)); err != nil {
		a.logger.Warn("reset message failed", "client_id", client.ID, "error", err)
	}

	c.JSON(http.StatusOK, reply)
}

type resetPasswordReq struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// POST /api/auth/reset-password - completes the flow; the token is
// single-use and invalid once expired.
func (a *App) ResetPasswordHandler(c *gin.Context) {
	var req resetPasswordReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := a.store.ClientByResetToken(c.Request.Context(), req.Token, a.now())
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": ErrInvalidResetToken.Error()})
			return
		}
		a.logger.Error("reset token lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if err := a.store.UpdatePassword(c.Request.Context(), client.ID, string(hash)); err != nil {
		a.logger.Error("password update failed", "client_id", client.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	a.logger.Info("password reset completed", "client_id", client.ID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
