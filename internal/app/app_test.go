package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/handmade_shop/internal/catalog"
	"github.com/Skotchmaster/handmade_shop/internal/events"
	"github.com/Skotchmaster/handmade_shop/internal/notify"
	"github.com/Skotchmaster/handmade_shop/pkg/config"
)

func TestNew_FallsBackWithoutBackends(t *testing.T) {
	cfg := config.Config{
		ServiceName:     "Test Shop",
		DBDriver:        "sqlite",
		DatabaseURL:     filepath.Join(t.TempDir(), "app.db"),
		OwnerEmail:      "owner@shop.test",
		ESIndex:         "products",
		OrdersPageLimit: 25,
	}
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	assert.IsType(t, events.Discard{}, a.Events)
	assert.IsType(t, notify.LogMailer{}, a.Mailer)
	assert.IsType(t, &catalog.GormLookup{}, a.Catalog)
	assert.Nil(t, a.Search.ES)
	assert.Equal(t, 25, a.Orders.DefaultLimit)
	assert.Equal(t, "owner@shop.test", a.Notifier.Owner.Email)
}

func TestNew_RedisDownKeepsDirectLookup(t *testing.T) {
	cfg := config.Config{
		DBDriver:    "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "app.db"),
		RedisAddr:   "127.0.0.1:1",
	}
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, &catalog.GormLookup{}, a.Catalog)
}

func TestNew_BadDriver(t *testing.T) {
	_, err := New(context.Background(), config.Config{DBDriver: "mysql", DatabaseURL: "x"}, slog.Default())
	require.Error(t, err)
}
