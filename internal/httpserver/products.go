package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/handmade_shop/internal/catalog"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

type ProductsHTTP struct {
	Searcher *catalog.Search
}

func parseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func (h *ProductsHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "products.search")

	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		l.Warn("search_error", "status", 400, "reason", "empty query")
		return httpError(http.StatusBadRequest, "query is required", nil)
	}
	if h.Searcher == nil || h.Searcher.ES == nil {
		l.Warn("search_error", "status", 503, "reason", "search not configured")
		return httpError(http.StatusServiceUnavailable, "search unavailable", nil)
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	from, size := catalog.Calculate(page, parseIntDefault(c.QueryParam("size"), 10))

	total, docs, err := h.Searcher.Query(ctx, q, from, size)
	if err != nil {
		l.Error("search_error", "status", 503, "reason", "search backend failed", "error", err)
		return httpError(http.StatusServiceUnavailable, "search unavailable", err)
	}

	if page < 1 {
		page = 1
	}
	return c.JSON(http.StatusOK, echo.Map{
		"data": docs,
		"meta": echo.Map{
			"page":        page,
			"size":        size,
			"total":       total,
			"total_pages": (total + int64(size) - 1) / int64(size),
			"has_prev":    page > 1,
			"has_next":    int64(from+size) < total,
		},
	})
}
