package httpserver

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/handmade_shop/internal/checkout"
	"github.com/Skotchmaster/handmade_shop/internal/orders"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

const (
	SignatureHeader = "Stripe-Signature"
	maxWebhookBody  = 1 << 20
)

type CheckoutHTTP struct {
	Intake *checkout.Intake
	Orders *orders.Service
}

func (h *CheckoutHTTP) Webhook(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.webhook")

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		l.Warn("webhook_error", "status", 400, "reason", "unreadable body", "error", err)
		return httpError(http.StatusBadRequest, "invalid body", err)
	}

	if err := h.Intake.Verify(payload, c.Request().Header.Get(SignatureHeader)); err != nil {
		l.Warn("webhook_error", "status", 400, "reason", "bad signature", "error", err)
		return httpError(http.StatusBadRequest, "invalid signature", err)
	}

	ev, err := checkout.ParseEvent(payload)
	if err != nil {
		l.Warn("webhook_error", "status", 400, "reason", "invalid event", "error", err)
		return httpError(http.StatusBadRequest, "invalid event", err)
	}

	out, err := h.Intake.Handle(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, checkout.ErrNotPaid):
		l.Info("webhook_skipped", "reason", "session not paid", "event_id", ev.ID)
		return c.JSON(http.StatusOK, echo.Map{"ignored": true, "reason": "not paid"})
	case errors.Is(err, checkout.ErrBadEvent), errors.Is(err, checkout.ErrInvalidSession):
		l.Warn("webhook_error", "status", 400, "reason", "invalid session", "error", err)
		return httpError(http.StatusBadRequest, "invalid checkout session", err)
	default:
		return storeError(l, "webhook", err)
	}

	l.Info("webhook_success", "order_id", out.OrderID, "created", out.Created, "ignored", out.Ignored)
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHTTP) Session(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "checkout.session")

	id := c.Param("id")
	if id == "" {
		l.Warn("checkout_session_error", "status", 400, "reason", "empty id")
		return httpError(http.StatusBadRequest, "session id is required", nil)
	}

	view, err := h.Orders.GetOrderByCheckoutSession(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		l.Info("checkout_session_error", "status", 404, "reason", "order not recorded yet", "session_id", id)
		return httpError(http.StatusNotFound, "order not found", nil)
	}
	if err != nil {
		return storeError(l, "checkout_session", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"order": view})
}
