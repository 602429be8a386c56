package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Skotchmaster/handmade_shop/internal/lineitems"
	"github.com/Skotchmaster/handmade_shop/internal/models"
)

var (
	ErrInvalidSession = errors.New("invalid checkout session")
	ErrNotPaid        = errors.New("checkout session not paid")
)

const (
	LineTypeMerchandise = "merchandise"
	LineTypeShipping    = lineitems.MarkerShipping
)

func classifierItem(li LineItem) lineitems.LineItem {
	item := lineitems.LineItem{
		Quantity:    li.Quantity,
		AmountTotal: li.AmountTotal,
		Metadata:    li.Metadata,
	}
	if li.Description != nil {
		item.Description = *li.Description
	}
	if p := li.Price; p != nil {
		item.UnitAmount = p.UnitAmount
		item.PriceMetadata = p.Metadata
		if p.Product.Object != nil {
			item.ProductMetadata = p.Product.Object.Metadata
		}
		item.ProductName = productName(p)
	}
	return item
}

func productName(p *Price) string {
	if p.ProductData != nil && p.ProductData.Name != "" {
		return p.ProductData.Name
	}
	if p.Product.Object != nil {
		return p.Product.Object.Name
	}
	return ""
}

// productRef is the key order items are stored under: the processor product
// id when known, so the catalog lookup can join on it.
func productRef(li LineItem) string {
	if p := li.Price; p != nil {
		if p.Product.ID != "" {
			return p.Product.ID
		}
		if p.ID != "" {
			return p.ID
		}
	}
	return li.ID
}

func checkPaid(s *Session) error {
	switch s.PaymentStatus {
	case "", "paid", "no_payment_required":
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrNotPaid, s.PaymentStatus)
	}
}

// BuildOrderDraft maps a completed session onto an order ready to insert.
// Shipping lines are folded into ShippingCents rather than stored as items.
func BuildOrderDraft(s *Session, now time.Time) (*models.Order, error) {
	if s == nil || strings.TrimSpace(s.ID) == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidSession)
	}
	if err := checkPaid(s); err != nil {
		return nil, err
	}

	raw := s.lineItems()
	all := make([]lineitems.LineItem, len(raw))
	for i, li := range raw {
		all[i] = classifierItem(li)
	}
	shipping := lineitems.ExtractShippingTotal(all)

	total := lineitems.SumTotals(all)
	if s.AmountTotal != nil {
		total = *s.AmountTotal
	}

	currency := strings.ToLower(strings.TrimSpace(s.Currency))
	if currency == "" {
		currency = "usd"
	}

	sessionID := s.ID
	o := &models.Order{
		StripeCheckoutSessionID: &sessionID,
		TotalCents:              total,
		ShippingCents:           &shipping,
		Currency:                currency,
		CreatedAt:               now.UTC().Format(models.TimeLayout),
	}
	if pi := s.PaymentIntent.ID; pi != "" {
		o.StripePaymentIntentID = &pi
	}
	if email := CustomerEmail(s); email != "" {
		o.CustomerEmail = &email
	}

	name, addr := ShippingFor(s)
	if name != "" {
		o.ShippingName = &name
	}
	if addr != nil {
		data, err := json.Marshal(addr)
		if err != nil {
			return nil, fmt.Errorf("encode shipping address: %w", err)
		}
		encoded := string(data)
		o.ShippingAddressJSON = &encoded
	}

	if card, ok := ExtractCard(s); ok {
		if card.Brand != "" {
			o.CardBrand = &card.Brand
		}
		if card.Last4 != "" {
			o.CardLast4 = &card.Last4
		}
	}

	for i, li := range raw {
		if lineitems.IsShipping(all[i]) {
			continue
		}
		o.Items = append(o.Items, orderItem(li, all[i]))
	}
	return o, nil
}

func orderItem(li LineItem, item lineitems.LineItem) models.OrderItem {
	qty := int64(1)
	if li.Quantity != nil && *li.Quantity > 0 {
		qty = *li.Quantity
	}
	var unit int64
	if item.UnitAmount != nil {
		unit = *item.UnitAmount
	} else {
		unit = int64(math.Round(float64(lineitems.LineTotal(item)) / float64(qty)))
	}

	name := item.ProductName
	if name == "" {
		name = item.Description
	}
	if name == "" {
		name = "Item"
	}
	lineType := LineTypeMerchandise
	return models.OrderItem{
		ProductID:   productRef(li),
		Quantity:    qty,
		PriceCents:  unit,
		ProductName: &name,
		LineType:    &lineType,
	}
}
