package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/handmade_shop/internal/app"
	"github.com/Skotchmaster/handmade_shop/internal/checkout"
	"github.com/Skotchmaster/handmade_shop/internal/gallery"
	"github.com/Skotchmaster/handmade_shop/internal/httpserver"
	"github.com/Skotchmaster/handmade_shop/internal/invoices"
	"github.com/Skotchmaster/handmade_shop/internal/messages"
	"github.com/Skotchmaster/handmade_shop/pkg/config"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
	loggingmw "github.com/Skotchmaster/handmade_shop/pkg/middleware/logging"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTAccessSecret, "JWT_SECRET")
	config.MustOneOf(cfg.DBDriver, "DB_DRIVER", "postgres", "sqlite")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	if cfg.WebhookSecret == "" {
		logger.Warn("webhook_signature_disabled", "reason", "CHECKOUT_WEBHOOK_SECRET is empty")
	}

	v := validator.New()
	invoiceSvc := invoices.NewService(a.DB, v, a.Notifier, a.Events, cfg.PublicSiteURL)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpserver.NewValidator(v)
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger, "/health/"))
	e.Use(echomw.CORS())

	httpserver.Register(e, &httpserver.Deps{
		Orders: &httpserver.OrdersHTTP{Svc: a.Orders, Allocator: a.Allocator},
		Checkout: &httpserver.CheckoutHTTP{
			Orders: a.Orders,
			Intake: &checkout.Intake{
				Orders:    a.Orders,
				Invoices:  invoiceSvc,
				Events:    a.Events,
				Notifier:  a.Notifier,
				Secret:    cfg.WebhookSecret,
				Tolerance: cfg.WebhookTolerance,
				Now:       time.Now,
			},
		},
		Gallery:  &httpserver.GalleryHTTP{Svc: gallery.NewService(a.DB, a.Events)},
		Messages: &httpserver.MessagesHTTP{Svc: messages.NewService(a.DB, v, a.Notifier, a.Events)},
		Invoices: &httpserver.InvoicesHTTP{Svc: invoiceSvc},
		Products: &httpserver.ProductsHTTP{Searcher: a.Search},
		Admin: &httpserver.AdminHTTP{
			DB:           a.DB,
			Username:     cfg.AdminUsername,
			PasswordHash: cfg.AdminPasswordHash,
			JWTSecret:    cfg.JWTAccessSecret,
		},
		JWTSecret: cfg.JWTAccessSecret,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		logger.Info("server_listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if err := a.Close(); err != nil {
		logger.Warn("close_error", "error", err)
	}

	logger.Info("server_stopped")
}
