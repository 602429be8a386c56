package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/handmade_shop/internal/invoices"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

type InvoicesHTTP struct {
	Svc *invoices.Service
}

func (h *InvoicesHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "invoices.create")

	var req invoices.Input
	if err := c.Bind(&req); err != nil {
		l.Warn("invoice_create_error", "status", 400, "reason", "invalid body", "error", err)
		return httpError(http.StatusBadRequest, "Invalid JSON body", err)
	}

	out, err := h.Svc.Create(ctx, req)
	var invalid *invoices.InvalidError
	switch {
	case err == nil:
	case errors.As(err, &invalid):
		l.Warn("invoice_create_error", "status", 400, "reason", "validation", "field", invalid.Field)
		return httpError(http.StatusBadRequest, invalid.Msg, nil)
	case errors.Is(err, invoices.ErrNotify):
		l.Error("invoice_create_error", "status", 500, "reason", "customer not emailed", "invoice_id", out.InvoiceID, "error", err)
		return httpError(http.StatusInternalServerError, "Invoice created but email failed to send.", err)
	default:
		l.Error("invoice_create_error", "status", 500, "reason", "cannot save invoice", "error", err)
		return httpError(http.StatusInternalServerError, "Failed to create invoice", err)
	}

	l.Info("invoice_create_success", "invoice_id", out.InvoiceID)
	return c.JSON(http.StatusCreated, out)
}

func (h *InvoicesHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "invoices.list")

	list, err := h.Svc.List(ctx)
	if err != nil {
		l.Error("invoice_list_error", "status", 500, "reason", "cannot load invoices", "error", err)
		return httpError(http.StatusInternalServerError, "failed to load invoices", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"invoices": list})
}

// Get is the public invoice page's data source.
func (h *InvoicesHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "invoices.get")

	id := c.Param("id")
	view, err := h.Svc.Get(ctx, id)
	if errors.Is(err, invoices.ErrNotFound) {
		l.Warn("invoice_get_error", "status", 404, "reason", "invoice not found", "invoice_id", id)
		return httpError(http.StatusNotFound, "Invoice not found", nil)
	}
	if err != nil {
		l.Error("invoice_get_error", "status", 500, "reason", "cannot load invoice", "error", err)
		return httpError(http.StatusInternalServerError, "Server error", err)
	}
	return c.JSON(http.StatusOK, view)
}
