package httpserver

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/dbhealth"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
	middleware "github.com/Skotchmaster/handmade_shop/pkg/middleware/auth"
	"github.com/Skotchmaster/handmade_shop/pkg/tokens"
)

const AccessTTL = 12 * time.Hour

type AdminHTTP struct {
	DB           *gorm.DB
	Username     string
	PasswordHash string
	JWTSecret    []byte
	Now          func() time.Time
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AdminHTTP) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *AdminHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_error", "status", 400, "reason", "invalid body", "error", err)
		return httpError(http.StatusBadRequest, "invalid body", err)
	}
	if err := c.Validate(&req); err != nil {
		l.Warn("login_error", "status", 400, "reason", "missing credentials")
		return httpError(http.StatusBadRequest, "username and password are required", nil)
	}

	if h.PasswordHash == "" {
		l.Error("login_error", "status", 503, "reason", "admin password not configured")
		return httpError(http.StatusServiceUnavailable, "admin login disabled", nil)
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(h.PasswordHash), []byte(req.Password))
	if !userOK || passErr != nil {
		l.Warn("login_failed", "status", 401)
		return httpError(http.StatusUnauthorized, "invalid username or password", nil)
	}

	exp := h.now().Add(AccessTTL)
	token, err := tokens.NewAccessToken(req.Username, middleware.RoleAdmin, exp, h.JWTSecret)
	if err != nil {
		l.Error("login_error", "status", 500, "reason", "cannot sign token", "error", err)
		return httpError(http.StatusInternalServerError, "internal error", err)
	}
	c.SetCookie(tokens.CreateCookie(middleware.AccessCookie, token, "/", exp))

	l.Info("login_successful")
	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": token,
		"expiresAt":   exp.UTC().Format(time.RFC3339),
	})
}

func (h *AdminHTTP) Logout(c echo.Context) error {
	c.SetCookie(tokens.DeleteCookie(middleware.AccessCookie, "/"))
	return c.NoContent(http.StatusNoContent)
}

// Ready pings the database.
func (h *AdminHTTP) Ready(c echo.Context) error {
	ctx := c.Request().Context()
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("ready_error", "status", 503, "error", err)
		return httpError(http.StatusServiceUnavailable, "database unavailable", err)
	}
	return c.NoContent(http.StatusOK)
}

func (h *AdminHTTP) DBHealth(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.db_health")

	rep, err := dbhealth.Check(ctx, h.DB)
	if err != nil {
		l.Error("db_health_error", "status", 500, "reason", "cannot inspect database", "error", err)
		return httpError(http.StatusInternalServerError, "failed to inspect database", err)
	}
	return c.JSON(http.StatusOK, rep)
}
