package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/catalog"
	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/internal/schema"
	"github.com/Skotchmaster/handmade_shop/internal/testdb"
	pkgdb "github.com/Skotchmaster/handmade_shop/pkg/db"
)

func newService(t *testing.T, gdb *gorm.DB) *Service {
	t.Helper()
	insp := schema.NewInspector(gdb, 0)
	rec := &Reconciler{Catalog: &catalog.GormLookup{DB: gdb, Schema: insp}}
	return NewService(NewRepo(gdb), insp, rec, 5*time.Second)
}

func TestClampLimit(t *testing.T) {
	t.Parallel()
	tests := []struct{ in, def, want int }{
		{0, 50, 50},
		{-3, 50, 50},
		{10, 50, 10},
		{1000, 50, MaxLimit},
		{0, 0, DefaultLimit},
		{0, 500, MaxLimit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampLimit(tt.in, tt.def), "in=%d def=%d", tt.in, tt.def)
	}
}

func TestService_RecordAndList(t *testing.T) {
	gdb := testdb.Open(t)
	ctx := context.Background()
	require.NoError(t, schema.Migrate(ctx, gdb))
	svc := newService(t, gdb)

	require.NoError(t, gdb.Create(&models.Product{ID: "p1", StripeProductID: ptr("prod_A"), Name: "Blue Mug"}).Error)

	older := &models.Order{
		StripeCheckoutSessionID: ptr("cs_1"),
		TotalCents:              5500,
		Currency:                "usd",
		CustomerEmail:           ptr("buyer@example.com"),
		CreatedAt:               "2025-03-01T10:00:00.000Z",
		Items: []models.OrderItem{
			{ProductID: "prod_A", Quantity: 2, PriceCents: 2500, ProductName: ptr("Mug")},
			{ProductID: "shipping", Quantity: 1, PriceCents: 500, ProductName: ptr("Flat rate"), LineType: ptr("shipping")},
		},
	}
	newer := &models.Order{
		StripeCheckoutSessionID: ptr("cs_2"),
		TotalCents:              1800,
		ShippingCents:           ptr(int64(300)),
		Currency:                "usd",
		CreatedAt:               "2025-03-02T10:00:00.000Z",
		Items:                   []models.OrderItem{{ProductID: "p9", Quantity: 1, PriceCents: 1500}},
	}

	id1, created, err := svc.RecordOrder(ctx, older)
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = svc.RecordOrder(ctx, newer)
	require.NoError(t, err)
	assert.True(t, created)

	views, err := svc.ListRecentOrders(ctx, 0)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "cs_2", *mustOrder(t, gdb, views[0].ID).StripeCheckoutSessionID)
	assert.Equal(t, int64(300), views[0].ShippingCents)
	assert.Equal(t, int64(1500), views[0].SubtotalCents)

	v := views[1]
	assert.Equal(t, id1, v.ID)
	assert.Equal(t, int64(500), v.ShippingCents)
	assert.Equal(t, int64(5000), v.SubtotalCents)
	assert.Equal(t, "buyer@example.com", *v.CustomerEmail)
	assert.Nil(t, v.DisplayOrderID)
	assert.Equal(t, Label(id1, nil), v.OrderLabel)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "Blue Mug", *v.Items[0].ProductName)

	limited, err := svc.ListRecentOrders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, views[0].ID, limited[0].ID)
}

func mustOrder(t *testing.T, gdb *gorm.DB, id string) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, gdb.First(&o, "id = ?", id).Error)
	return o
}

func TestService_RecordOrderIsIdempotent(t *testing.T) {
	gdb := testdb.Open(t)
	ctx := context.Background()
	require.NoError(t, schema.Migrate(ctx, gdb))
	svc := newService(t, gdb)

	first := &models.Order{StripeCheckoutSessionID: ptr("cs_same"), TotalCents: 100, Currency: "usd",
		Items: []models.OrderItem{{ProductID: "p", Quantity: 1, PriceCents: 100}}}
	id, created, err := svc.RecordOrder(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	again := &models.Order{StripeCheckoutSessionID: ptr("cs_same"), TotalCents: 100, Currency: "usd",
		Items: []models.OrderItem{{ProductID: "p", Quantity: 1, PriceCents: 100}}}
	id2, created, err := svc.RecordOrder(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, id2)

	var n int64
	require.NoError(t, gdb.Model(&models.OrderItem{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestService_LegacySchema(t *testing.T) {
	gdb := testdb.Open(t)
	testdb.Exec(t, gdb, testdb.LegacyOrdersSchema...)
	testdb.Exec(t, gdb,
		`INSERT INTO products (id, name, image_url) VALUES ('p1', 'Vase', 'https://img/vase.jpg')`,
		`INSERT INTO orders (id, total_cents, customer_email1, shipping_name, shipping_address_json, created_at)
		 VALUES ('0a1b2c3d-legacy', 4400, 'old@example.com', 'Bo', 'not json', '2023-11-05 08:00:00')`,
		`INSERT INTO order_items (id, order_id, product_id, quantity, price_cents)
		 VALUES ('i1', '0a1b2c3d-legacy', 'p1', 2, 2000)`,
	)
	svc := newService(t, gdb)

	views, err := svc.ListRecentOrders(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, views, 1)

	v := views[0]
	assert.Equal(t, "old@example.com", *v.CustomerEmail)
	assert.Nil(t, v.DisplayOrderID)
	assert.Nil(t, v.CardBrand)
	assert.Nil(t, v.ShippingAddress)
	assert.Equal(t, "#0A1B2C3D", v.OrderLabel)
	assert.Equal(t, int64(400), v.ShippingCents)
	assert.Equal(t, int64(4000), v.SubtotalCents)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "Vase", *v.Items[0].ProductName)
	assert.Equal(t, "https://img/vase.jpg", *v.Items[0].ProductImageURL)
}

func TestService_MissingItemsTable(t *testing.T) {
	gdb := testdb.Open(t)
	testdb.Exec(t, gdb, `CREATE TABLE orders (id TEXT PRIMARY KEY, total_cents INTEGER, created_at TEXT)`)
	svc := newService(t, gdb)

	_, err := svc.ListRecentOrders(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrSchema))

	var se *schema.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"order_items"}, se.Missing)
}

func TestService_ExpiredDeadline(t *testing.T) {
	gdb := testdb.Open(t)
	require.NoError(t, schema.Migrate(context.Background(), gdb))
	svc := newService(t, gdb)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := svc.ListRecentOrders(ctx, 10)
	require.ErrorIs(t, err, ErrTimeout)
	assert.False(t, errors.Is(err, schema.ErrSchema))
}

func TestService_ListMixedTimestampFormats(t *testing.T) {
	gdb := testdb.Open(t)
	ctx := context.Background()
	require.NoError(t, schema.Migrate(ctx, gdb))
	svc := newService(t, gdb)

	early := &models.Order{
		StripeCheckoutSessionID: ptr("cs_early"),
		TotalCents:              1000,
		Currency:                "usd",
		CreatedAt:               "2025-03-10T01:00:00.000Z",
	}
	late := &models.Order{
		StripeCheckoutSessionID: ptr("cs_late"),
		TotalCents:              2000,
		Currency:                "usd",
		CreatedAt:               "2025-03-10 23:00:00",
	}
	_, _, err := svc.RecordOrder(ctx, early)
	require.NoError(t, err)
	lateID, _, err := svc.RecordOrder(ctx, late)
	require.NoError(t, err)

	top, err := svc.ListRecentOrders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, lateID, top[0].ID)

	all, err := svc.ListRecentOrders(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "cs_late", *mustOrder(t, gdb, all[0].ID).StripeCheckoutSessionID)
	assert.Equal(t, "cs_early", *mustOrder(t, gdb, all[1].ID).StripeCheckoutSessionID)
}

func TestSortNewestFirst_InvalidLast(t *testing.T) {
	t.Parallel()
	ts := func(raw string) models.Timestamp {
		var out models.Timestamp
		require.NoError(t, out.Scan(raw))
		return out
	}
	rows := []OrderRow{
		{ID: "bad", CreatedAt: ts("yesterday")},
		{ID: "old", CreatedAt: ts("2025-01-01T00:00:00.000Z")},
		{ID: "new", CreatedAt: ts("2025-01-01 12:00:00")},
	}
	sortNewestFirst(rows)
	assert.Equal(t, []string{"new", "old", "bad"}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
}

func TestService_ClosedDatabaseIsNotSchemaError(t *testing.T) {
	gdb := testdb.Open(t)
	require.NoError(t, schema.Migrate(context.Background(), gdb))
	svc := newService(t, gdb)
	require.NoError(t, pkgdb.Close(gdb))

	_, err := svc.ListRecentOrders(context.Background(), 10)
	require.ErrorIs(t, err, schema.ErrUnreachable)
	assert.False(t, errors.Is(err, schema.ErrSchema))
}

func TestService_GetOrderByCheckoutSession(t *testing.T) {
	gdb := testdb.Open(t)
	ctx := context.Background()
	require.NoError(t, schema.Migrate(ctx, gdb))
	svc := newService(t, gdb)

	_, _, err := svc.RecordOrder(ctx, &models.Order{
		StripeCheckoutSessionID: ptr("cs_42"),
		TotalCents:              2000,
		Currency:                "usd",
		CardBrand:               ptr("visa"),
		CardLast4:               ptr("4242"),
		Items:                   []models.OrderItem{{ProductID: "p", Quantity: 1, PriceCents: 2000}},
	})
	require.NoError(t, err)

	v, err := svc.GetOrderByCheckoutSession(ctx, "cs_42")
	require.NoError(t, err)
	assert.Equal(t, "visa", *v.CardBrand)
	assert.Equal(t, "4242", *v.CardLast4)
	assert.Equal(t, int64(2000), v.SubtotalCents)

	_, err = svc.GetOrderByCheckoutSession(ctx, "cs_unknown")
	require.ErrorIs(t, err, ErrNotFound)
}
