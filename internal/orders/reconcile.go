package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Skotchmaster/handmade_shop/internal/catalog"
	"github.com/Skotchmaster/handmade_shop/internal/lineitems"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

var (
	errAddressMalformed = errors.New("shipping address is not a JSON object")
	errTimestamp        = errors.New("unparseable created_at")
)

// ReconciliationDataError is a single bad field in an otherwise readable
// order. The field is replaced with a safe default and the error is logged,
// never returned.
type ReconciliationDataError struct {
	OrderID string
	Field   string
	Err     error
}

func (e *ReconciliationDataError) Error() string {
	return fmt.Sprintf("order %s: %s: %v", e.OrderID, e.Field, e.Err)
}

func (e *ReconciliationDataError) Unwrap() error { return e.Err }

type ItemView struct {
	ProductID       string  `json:"productId"`
	ProductName     *string `json:"productName"`
	ProductImageURL *string `json:"productImageUrl"`
	Quantity        int64   `json:"quantity"`
	PriceCents      int64   `json:"priceCents"`
	LineTotalCents  int64   `json:"lineTotalCents"`
}

// OrderView is the display-ready order. Items holds merchandise only; any
// shipping line is folded into ShippingCents.
type OrderView struct {
	ID              string         `json:"id"`
	DisplayOrderID  *string        `json:"displayOrderId"`
	OrderLabel      string         `json:"orderLabel"`
	CreatedAt       string         `json:"createdAt"`
	TotalCents      int64          `json:"totalCents"`
	ShippingCents   int64          `json:"shippingCents"`
	SubtotalCents   int64          `json:"subtotalCents"`
	Currency        string         `json:"currency"`
	CustomerEmail   *string        `json:"customerEmail"`
	ShippingName    *string        `json:"shippingName"`
	CustomerName    *string        `json:"customerName"`
	ShippingAddress map[string]any `json:"shippingAddress"`
	CardBrand       *string        `json:"cardBrand"`
	CardLast4       *string        `json:"cardLast4"`
	PaymentIntentID *string        `json:"paymentIntentId"`
	Items           []ItemView     `json:"items"`

	Anomalies []*ReconciliationDataError `json:"-"`
}

// Reconcile builds the view for one order. products maps catalog join keys
// to current entries and may be nil or incomplete.
func Reconcile(row OrderRow, items []ItemRow, products map[string]catalog.Entry) OrderView {
	v := OrderView{
		ID:              row.ID,
		DisplayOrderID:  nonEmpty(row.DisplayOrderID),
		OrderLabel:      Label(row.ID, row.DisplayOrderID),
		CreatedAt:       row.CreatedAt.Raw,
		TotalCents:      deref(row.TotalCents),
		Currency:        "usd",
		CustomerEmail:   row.CustomerEmail,
		ShippingName:    row.ShippingName,
		CustomerName:    row.ShippingName,
		CardBrand:       nonEmpty(row.CardBrand),
		CardLast4:       nonEmpty(row.CardLast4),
		PaymentIntentID: row.PaymentIntentID,
		Items:           []ItemView{},
	}
	if row.Currency != nil && *row.Currency != "" {
		v.Currency = strings.ToLower(*row.Currency)
	}
	if row.CreatedAt.Raw != "" && !row.CreatedAt.Valid {
		v.Anomalies = append(v.Anomalies, &ReconciliationDataError{OrderID: row.ID, Field: "created_at", Err: errTimestamp})
	}

	addr, err := parseAddress(row.ShippingAddressJSON)
	if err != nil {
		v.Anomalies = append(v.Anomalies, &ReconciliationDataError{OrderID: row.ID, Field: "shipping_address_json", Err: err})
	}
	v.ShippingAddress = addr

	lines := make([]lineitems.LineItem, len(items))
	for i, it := range items {
		lines[i] = asLineItem(it, products)
	}
	merch, shipping := partitionRows(items, lines)

	var merchTotal int64
	for _, it := range merch {
		view := itemView(it, products)
		merchTotal += view.LineTotalCents
		v.Items = append(v.Items, view)
	}

	v.ShippingCents = resolveShipping(row.ShippingCents, lineitems.SumTotals(shipping), v.TotalCents-merchTotal)
	v.SubtotalCents = max(0, v.TotalCents-v.ShippingCents)
	return v
}

// resolveShipping picks the first positive signal: the explicit column, then
// shipping lines, then what the total leaves after merchandise.
func resolveShipping(explicit *int64, fromLines, inferred int64) int64 {
	switch {
	case explicit != nil && *explicit > 0:
		return *explicit
	case fromLines > 0:
		return fromLines
	case inferred > 0:
		return inferred
	default:
		return 0
	}
}

// Label is the display id, or a short uppercase prefix of the internal id
// for orders still waiting on backfill.
func Label(id string, displayID *string) string {
	if displayID != nil && *displayID != "" {
		return *displayID
	}
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "#" + strings.ToUpper(short)
}

func parseAddress(raw *string) (map[string]any, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	var parsed any
	if err := json.Unmarshal([]byte(*raw), &parsed); err != nil {
		return nil, err
	}
	obj, ok := parsed.(map[string]any)
	if !ok {
		return nil, errAddressMalformed
	}
	return obj, nil
}

func asLineItem(it ItemRow, products map[string]catalog.Entry) lineitems.LineItem {
	li := lineitems.LineItem{
		Quantity:   it.Quantity,
		UnitAmount: it.PriceCents,
	}
	if it.ProductName != nil {
		li.Description = *it.ProductName
	}
	if e, ok := products[it.ProductID]; ok {
		li.ProductName = e.Name
	}
	if it.LineType != nil && *it.LineType != "" {
		li.Metadata = map[string]string{lineitems.MarkerKey: *it.LineType}
	}
	return li
}

func partitionRows(rows []ItemRow, lines []lineitems.LineItem) (merch []ItemRow, shipping []lineitems.LineItem) {
	for i, li := range lines {
		if lineitems.IsShipping(li) {
			shipping = append(shipping, li)
			continue
		}
		merch = append(merch, rows[i])
	}
	return merch, shipping
}

func itemView(it ItemRow, products map[string]catalog.Entry) ItemView {
	qty := int64(1)
	if it.Quantity != nil {
		qty = *it.Quantity
	}
	price := deref(it.PriceCents)
	view := ItemView{
		ProductID:      it.ProductID,
		ProductName:    nonEmpty(it.ProductName),
		Quantity:       qty,
		PriceCents:     price,
		LineTotalCents: qty * price,
	}
	if e, ok := products[it.ProductID]; ok {
		if e.Name != "" {
			name := e.Name
			view.ProductName = &name
		}
		if e.ImageURL != "" {
			img := e.ImageURL
			view.ProductImageURL = &img
		}
	}
	return view
}

// Reconciler resolves catalog entries for a batch of orders and reconciles
// each. A failing catalog degrades to stored item values.
type Reconciler struct {
	Catalog catalog.Lookup
}

func (r *Reconciler) ReconcileOrders(ctx context.Context, rows []OrderRow, items map[string][]ItemRow) []OrderView {
	l := logging.FromContext(ctx)

	var products map[string]catalog.Entry
	if r.Catalog != nil {
		keys := productKeys(items)
		if len(keys) > 0 {
			found, err := r.Catalog.LookupProducts(ctx, keys)
			if err != nil {
				l.Warn("catalog_lookup_failed", "products", len(keys), "error", err)
			} else {
				products = found
			}
		}
	}

	views := make([]OrderView, len(rows))
	for i, row := range rows {
		views[i] = Reconcile(row, items[row.ID], products)
		for _, a := range views[i].Anomalies {
			l.Warn("order_field_degraded", "order_id", a.OrderID, "field", a.Field, "reason", a.Err.Error())
		}
	}
	return views
}

func productKeys(items map[string][]ItemRow) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, list := range items {
		for _, it := range list {
			if it.ProductID == "" {
				continue
			}
			if _, ok := seen[it.ProductID]; ok {
				continue
			}
			seen[it.ProductID] = struct{}{}
			keys = append(keys, it.ProductID)
		}
	}
	return keys
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func nonEmpty(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	return p
}
