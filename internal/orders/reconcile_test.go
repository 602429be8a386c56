package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/handmade_shop/internal/catalog"
	"github.com/Skotchmaster/handmade_shop/internal/models"
)

func ptr[T any](v T) *T { return &v }

func item(orderID, productID string, qty, price int64) ItemRow {
	return ItemRow{OrderID: orderID, ProductID: productID, Quantity: ptr(qty), PriceCents: ptr(price)}
}

func TestReconcile_TaggedShippingLine(t *testing.T) {
	t.Parallel()
	row := OrderRow{ID: "ord-1", TotalCents: ptr(int64(5500))}
	ship := item("ord-1", "ship", 1, 500)
	ship.LineType = ptr("shipping")

	v := Reconcile(row, []ItemRow{item("ord-1", "p1", 2, 2500), ship}, nil)

	assert.Equal(t, int64(500), v.ShippingCents)
	assert.Equal(t, int64(5000), v.SubtotalCents)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "p1", v.Items[0].ProductID)
	assert.Equal(t, int64(5000), v.Items[0].LineTotalCents)
}

func TestReconcile_ShippingPriority(t *testing.T) {
	t.Parallel()
	shipLine := item("o", "s", 1, 700)
	shipLine.ProductName = ptr("Shipping (US)")

	tests := []struct {
		name         string
		total        int64
		explicit     *int64
		items        []ItemRow
		wantShipping int64
		wantSubtotal int64
	}{
		{"explicit column wins", 6000, ptr(int64(800)), []ItemRow{item("o", "p", 1, 5000), shipLine}, 800, 5200},
		{"zero column falls to shipping line", 5700, ptr(int64(0)), []ItemRow{item("o", "p", 1, 5000), shipLine}, 700, 5000},
		{"inferred from total", 5450, nil, []ItemRow{item("o", "p", 1, 5000)}, 450, 5000},
		{"nothing to infer", 5000, nil, []ItemRow{item("o", "p", 1, 5000)}, 0, 5000},
		{"no items at all", 1200, nil, nil, 1200, 0},
		{"subtotal never negative", 1000, ptr(int64(1500)), []ItemRow{item("o", "p", 1, 900)}, 1500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := Reconcile(OrderRow{ID: "o", TotalCents: ptr(tt.total), ShippingCents: tt.explicit}, tt.items, nil)
			assert.Equal(t, tt.wantShipping, v.ShippingCents)
			assert.Equal(t, tt.wantSubtotal, v.SubtotalCents)
			assert.GreaterOrEqual(t, v.SubtotalCents, int64(0))
		})
	}
}

func TestReconcile_MalformedAddress(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"not json", `[1,2]`, `"a string"`, `null`} {
		row := OrderRow{
			ID:                  "ord-2",
			TotalCents:          ptr(int64(3000)),
			CustomerEmail:       ptr("a@b.c"),
			ShippingName:        ptr("Ana"),
			ShippingAddressJSON: ptr(raw),
		}
		v := Reconcile(row, []ItemRow{item("ord-2", "p", 1, 3000)}, nil)

		assert.Nil(t, v.ShippingAddress, raw)
		assert.Equal(t, "a@b.c", *v.CustomerEmail)
		assert.Equal(t, "Ana", *v.CustomerName)
		assert.Equal(t, int64(3000), v.SubtotalCents)
		assert.Len(t, v.Items, 1)
	}

	v := Reconcile(OrderRow{ID: "ord-3", ShippingAddressJSON: ptr("not json")}, nil, nil)
	require.Len(t, v.Anomalies, 1)
	assert.Equal(t, "shipping_address_json", v.Anomalies[0].Field)
}

func TestReconcile_AddressObject(t *testing.T) {
	t.Parallel()
	row := OrderRow{ID: "o", ShippingAddressJSON: ptr(`{"line1":"1 Main St","city":"Portland"}`)}
	v := Reconcile(row, nil, nil)
	assert.Equal(t, map[string]any{"line1": "1 Main St", "city": "Portland"}, v.ShippingAddress)
	assert.Empty(t, v.Anomalies)
}

func TestReconcile_UnparseableCreatedAt(t *testing.T) {
	t.Parallel()
	row := OrderRow{ID: "o", CreatedAt: models.Timestamp{Raw: "yesterday"}}
	v := Reconcile(row, nil, nil)
	assert.Equal(t, "yesterday", v.CreatedAt)
	require.Len(t, v.Anomalies, 1)
	assert.True(t, errors.Is(v.Anomalies[0], errTimestamp))
}

func TestReconcile_CatalogOverridesStoredName(t *testing.T) {
	t.Parallel()
	stored := item("o", "prod_A", 1, 1000)
	stored.ProductName = ptr("Mug (old name)")
	orphan := item("o", "prod_gone", 1, 500)
	orphan.ProductName = ptr("Retired bowl")

	v := Reconcile(OrderRow{ID: "o", TotalCents: ptr(int64(1500))}, []ItemRow{stored, orphan}, map[string]catalog.Entry{
		"prod_A": {Key: "prod_A", Name: "Blue Mug", ImageURL: "https://img/mug.jpg"},
	})

	require.Len(t, v.Items, 2)
	assert.Equal(t, "Blue Mug", *v.Items[0].ProductName)
	assert.Equal(t, "https://img/mug.jpg", *v.Items[0].ProductImageURL)
	assert.Equal(t, "Retired bowl", *v.Items[1].ProductName)
	assert.Nil(t, v.Items[1].ProductImageURL)
	assert.Equal(t, int64(0), v.ShippingCents)
}

func TestLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "25-004", Label("abc", ptr("25-004")))
	assert.Equal(t, "#9F1C2D3E", Label("9f1c2d3e-aaaa-bbbb", nil))
	assert.Equal(t, "#9F1C2D3E", Label("9f1c2d3e-aaaa-bbbb", ptr("")))
	assert.Equal(t, "#AB", Label("ab", nil))
}

type failingLookup struct{}

func (failingLookup) LookupProducts(context.Context, []string) (map[string]catalog.Entry, error) {
	return nil, errors.New("catalog down")
}

func TestReconciler_CatalogFailureDegrades(t *testing.T) {
	t.Parallel()
	r := &Reconciler{Catalog: failingLookup{}}
	stored := item("o", "p1", 1, 1000)
	stored.ProductName = ptr("Stored name")

	views := r.ReconcileOrders(context.Background(),
		[]OrderRow{{ID: "o", TotalCents: ptr(int64(1000))}},
		map[string][]ItemRow{"o": {stored}})

	require.Len(t, views, 1)
	require.Len(t, views[0].Items, 1)
	assert.Equal(t, "Stored name", *views[0].Items[0].ProductName)
}
