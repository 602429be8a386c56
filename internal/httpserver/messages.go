package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/handmade_shop/internal/messages"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

type MessagesHTTP struct {
	Svc *messages.Service
}

func (h *MessagesHTTP) Submit(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "messages.submit")

	var req messages.Input
	if err := c.Bind(&req); err != nil {
		l.Warn("message_submit_error", "status", 400, "reason", "invalid body", "error", err)
		return httpError(http.StatusBadRequest, "invalid body", err)
	}

	msg, err := h.Svc.Submit(ctx, req)
	var invalid *messages.InvalidError
	switch {
	case err == nil:
	case errors.As(err, &invalid):
		l.Warn("message_submit_error", "status", 400, "reason", "validation", "field", invalid.Field)
		return httpError(http.StatusBadRequest, invalid.Msg, nil)
	case errors.Is(err, messages.ErrNotify):
		l.Error("message_submit_error", "status", 500, "reason", "owner not notified", "message_id", msg.ID, "error", err)
		return httpError(http.StatusInternalServerError, "failed to send email", err)
	default:
		l.Error("message_submit_error", "status", 500, "reason", "cannot save message", "error", err)
		return httpError(http.StatusInternalServerError, "failed to save message", err)
	}

	l.Info("message_submit_success", "message_id", msg.ID)
	return c.JSON(http.StatusCreated, echo.Map{"message": msg})
}

func (h *MessagesHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "messages.list")

	list, err := h.Svc.List(ctx)
	if err != nil {
		l.Error("message_list_error", "status", 500, "reason", "cannot load messages", "error", err)
		return httpError(http.StatusInternalServerError, "failed to load messages", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"messages": list})
}

func (h *MessagesHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "messages.delete")

	id := c.Param("id")
	err := h.Svc.Delete(ctx, id)
	if errors.Is(err, messages.ErrNotFound) {
		l.Warn("message_delete_error", "status", 404, "reason", "message not found", "message_id", id)
		return httpError(http.StatusNotFound, "message not found", nil)
	}
	if err != nil {
		l.Error("message_delete_error", "status", 500, "reason", "cannot delete message", "error", err)
		return httpError(http.StatusInternalServerError, "failed to delete message", err)
	}

	l.Info("message_delete_success", "message_id", id)
	return c.NoContent(http.StatusNoContent)
}
