package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/handmade_shop/internal/gallery"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

type GalleryHTTP struct {
	Svc *gallery.Service
}

func (h *GalleryHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "gallery.list")

	images, err := h.Svc.List(ctx)
	if err != nil {
		l.Error("gallery_list_error", "status", 500, "reason", "cannot load gallery", "error", err)
		return httpError(http.StatusInternalServerError, "failed to load gallery", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"images": images})
}

func (h *GalleryHTTP) Save(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "gallery.save")

	var req struct {
		Images []gallery.Input `json:"images"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("gallery_save_error", "status", 400, "reason", "invalid body", "error", err)
		return httpError(http.StatusBadRequest, "invalid body", err)
	}

	images, err := h.Svc.Save(ctx, req.Images)
	if err != nil {
		l.Error("gallery_save_error", "status", 500, "reason", "cannot save gallery", "error", err)
		return httpError(http.StatusInternalServerError, "failed to save gallery", err)
	}

	l.Info("gallery_save_success", "count", len(images))
	return c.JSON(http.StatusOK, echo.Map{"images": images})
}
