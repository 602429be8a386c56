package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/handmade_shop/internal/displayid"
	"github.com/Skotchmaster/handmade_shop/internal/orders"
	"github.com/Skotchmaster/handmade_shop/internal/schema"
)

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Error         string   `json:"error"`
	Detail        string   `json:"detail,omitempty"`
	MissingTables []string `json:"missingTables,omitempty"`
	Retryable     bool     `json:"retryable,omitempty"`
}

func httpError(code int, msg string, err error) *echo.HTTPError {
	body := ErrorBody{Error: msg}
	if err != nil {
		body.Detail = err.Error()
	}
	return echo.NewHTTPError(code, body)
}

// storeError maps datastore failures shared by the order and display-id
// endpoints.
func storeError(l *slog.Logger, op string, err error) *echo.HTTPError {
	var schemaErr *schema.SchemaError
	var allocErr *displayid.AllocationTransactionError
	switch {
	case errors.As(err, &schemaErr):
		l.Error(op+"_error", "status", 500, "reason", "schema not migrated", "missing", schemaErr.Missing)
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorBody{
			Error:         "database schema is missing required tables",
			Detail:        err.Error(),
			MissingTables: schemaErr.Missing,
		})
	case errors.Is(err, orders.ErrTimeout):
		l.Warn(op+"_error", "status", 504, "reason", "datastore timeout", "error", err)
		return echo.NewHTTPError(http.StatusGatewayTimeout, ErrorBody{
			Error:     "database timed out",
			Detail:    err.Error(),
			Retryable: true,
		})
	case errors.Is(err, schema.ErrUnreachable):
		l.Error(op+"_error", "status", 503, "reason", "database unreachable", "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrorBody{
			Error:     "database unavailable",
			Detail:    err.Error(),
			Retryable: true,
		})
	case errors.As(err, &allocErr) && allocErr.Retryable:
		l.Warn(op+"_error", "status", 503, "reason", "serialization failure", "stage", allocErr.Stage, "error", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrorBody{
			Error:     "display id allocation conflicted, retry",
			Detail:    err.Error(),
			Retryable: true,
		})
	case errors.As(err, &allocErr):
		l.Error(op+"_error", "status", 500, "reason", "allocation failed", "stage", allocErr.Stage, "error", err)
		return httpError(http.StatusInternalServerError, "display id allocation failed", err)
	default:
		l.Error(op+"_error", "status", 500, "reason", "internal error", "error", err)
		return httpError(http.StatusInternalServerError, "internal error", err)
	}
}
