package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/handmade_shop/internal/displayid"
	"github.com/Skotchmaster/handmade_shop/internal/orders"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

type OrdersHTTP struct {
	Svc       *orders.Service
	Allocator *displayid.Allocator
}

func (h *OrdersHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.list_orders")

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			l.Warn("list_orders_error", "status", 400, "reason", "limit is not a number", "error", err)
			return httpError(http.StatusBadRequest, "limit must be a number", err)
		}
		limit = n
	}

	views, err := h.Svc.ListRecentOrders(ctx, limit)
	if err != nil {
		return storeError(l, "list_orders", err)
	}

	l.Info("list_orders_success", "count", len(views))
	return c.JSON(http.StatusOK, echo.Map{"orders": views})
}

func (h *OrdersHTTP) Backfill(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.backfill_display_ids")

	res, err := h.Allocator.Backfill(ctx)
	if err != nil {
		return storeError(l, "backfill_display_ids", err)
	}
	// the allocator may have added display_order_id
	if h.Svc.Schema != nil {
		h.Svc.Schema.Invalidate()
	}
	if res.Assigned == nil {
		res.Assigned = []displayid.Assignment{}
	}
	if res.Counters == nil {
		res.Counters = map[int]int{}
	}

	l.Info("backfill_display_ids_success", "assigned", len(res.Assigned))
	return c.JSON(http.StatusOK, res)
}
