package app

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type authClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// POST /api/login
func (a *App) LoginHandler(c *gin.Context) {
	if res := a.loginLimiter.Check(c.ClientIP()); !res.Allowed {
		c.Header("Retry-After", res.Reset.UTC().Format(http.TimeFormat))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts"})
		return
	}

	var req loginReq
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client, err := a.store.ClientByEmail(c.Request.Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(client.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidCredentials.Error()})
		return
	}

	now := a.now()
	claims := authClaims{
		Role: client.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   client.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(a.cfg.JWTExpireMin) * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": signed, "client": client})
}

// AuthMiddleware validates the bearer token and stores the caller's
// identity in the request context.
func (a *App) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}

		claims := &authClaims{}
		_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenMalformed
			}
			return []byte(a.cfg.JWTSecret), nil
		}, jwt.WithLeeway(5*time.Second))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("client_id", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireAdmin guards admin-only routes; it runs after AuthMiddleware.
func (a *App) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// sweepAuthorized accepts either the shared cron secret as a bearer
// token or the trusted scheduler header.
func (a *App) sweepAuthorized(c *gin.Context) bool {
	if c.GetHeader(a.cfg.SchedulerHeader) == "1" {
		return true
	}
	if a.cfg.CronSecret == "" {
		return false
	}
	return c.GetHeader("Authorization") == "Bearer "+a.cfg.CronSecret
}
