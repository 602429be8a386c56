// Package app wires configuration into the shop's services. Optional
// backends (Kafka, RabbitMQ, Redis, Elasticsearch) fall back to in-process
// stand-ins when they are not configured or not reachable.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/catalog"
	"github.com/Skotchmaster/handmade_shop/internal/displayid"
	"github.com/Skotchmaster/handmade_shop/internal/events"
	"github.com/Skotchmaster/handmade_shop/internal/notify"
	"github.com/Skotchmaster/handmade_shop/internal/orders"
	"github.com/Skotchmaster/handmade_shop/internal/schema"
	"github.com/Skotchmaster/handmade_shop/pkg/config"
	pkgdb "github.com/Skotchmaster/handmade_shop/pkg/db"
)

type App struct {
	Config config.Config
	DB     *gorm.DB

	Events    events.Publisher
	Mailer    notify.Mailer
	Notifier  *notify.Notifier
	Schema    *schema.Inspector
	Catalog   catalog.Lookup
	Cache     *catalog.CachedLookup
	Search    *catalog.Search
	Orders    *orders.Service
	Allocator *displayid.Allocator

	closers []func() error
}

// New opens the database and every configured backend.
func New(ctx context.Context, cfg config.Config, l *slog.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := pkgdb.Open(initCtx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db}
	a.closers = append(a.closers, func() error { return pkgdb.Close(db) })

	a.Events = events.Discard{}
	if len(cfg.KafkaBrokers) > 0 {
		p := events.NewProducer(cfg.KafkaBrokers)
		a.Events = p
		a.closers = append(a.closers, p.Close)
		l.Info("events_enabled", "brokers", cfg.KafkaBrokers)
	}

	a.Mailer = notify.LogMailer{}
	if cfg.RabbitMQURL != "" {
		pool, err := notify.NewChannelPool(cfg.RabbitMQURL, cfg.EmailQueue, cfg.ChannelPool)
		if err != nil {
			l.Warn("mail_queue_unavailable", "error", err)
		} else {
			a.Mailer = notify.NewQueue(pool, cfg.EmailQueue)
			a.closers = append(a.closers, func() error { pool.Close(); return nil })
		}
	}
	a.Notifier = &notify.Notifier{
		Mailer: a.Mailer,
		Owner: notify.Owner{
			Email:    cfg.OwnerEmail,
			TextTo:   cfg.OwnerTextTo,
			TextOn:   cfg.OwnerTextOn,
			SiteURL:  cfg.PublicSiteURL,
			ShopName: cfg.ServiceName,
		},
	}

	a.Schema = schema.NewInspector(db, cfg.SchemaCacheTTL)
	var lookup catalog.Lookup = &catalog.GormLookup{DB: db, Schema: a.Schema}
	if cfg.RedisAddr != "" {
		rdb, err := catalog.ConnectRedis(initCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			l.Warn("catalog_cache_unavailable", "error", err)
		} else {
			a.Cache = catalog.NewCachedLookup(lookup, rdb)
			lookup = a.Cache
			a.closers = append(a.closers, rdb.Close)
		}
	}
	a.Catalog = lookup

	a.Search = &catalog.Search{Index: cfg.ESIndex}
	if cfg.ESURL != "" {
		es, err := catalog.NewESClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			l.Warn("search_unavailable", "error", err)
		} else {
			a.Search.ES = es
		}
	}

	a.Orders = orders.NewService(orders.NewRepo(db), a.Schema, &orders.Reconciler{Catalog: lookup}, cfg.AdminQueryTimeout)
	a.Orders.DefaultLimit = cfg.OrdersPageLimit
	a.Allocator = displayid.NewAllocator(db, a.Events)
	return a, nil
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
