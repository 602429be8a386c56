package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	middleware "github.com/Skotchmaster/handmade_shop/pkg/middleware/auth"
)

type Deps struct {
	Orders   *OrdersHTTP
	Checkout *CheckoutHTTP
	Gallery  *GalleryHTTP
	Messages *MessagesHTTP
	Invoices *InvoicesHTTP
	Products *ProductsHTTP
	Admin    *AdminHTTP

	JWTSecret []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", d.Admin.Ready)

	authMW := middleware.NewAdminMiddleware(d.JWTSecret)

	api := e.Group("/api")
	api.GET("/gallery", d.Gallery.List)
	api.POST("/messages", d.Messages.Submit)
	api.GET("/products/search", d.Products.Search)
	api.POST("/checkout/webhook", d.Checkout.Webhook)
	api.GET("/checkout/session/:id", d.Checkout.Session)
	api.GET("/custom-invoices/:id", d.Invoices.Get)
	api.POST("/admin/login", d.Admin.Login)

	admin := api.Group("/admin", authMW.RequireAdmin)
	admin.POST("/logout", d.Admin.Logout)
	admin.GET("/orders", d.Orders.List)
	admin.POST("/orders/display-ids/backfill", d.Orders.Backfill)
	admin.GET("/db-health", d.Admin.DBHealth)
	admin.PUT("/gallery", d.Gallery.Save)
	admin.POST("/gallery", d.Gallery.Save)
	admin.GET("/messages", d.Messages.List)
	admin.DELETE("/messages/:id", d.Messages.Delete)
	admin.GET("/custom-invoices", d.Invoices.List)
	admin.POST("/custom-invoices", d.Invoices.Create)
}
