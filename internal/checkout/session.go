// Package checkout turns completed payment-processor checkout sessions into
// stored orders.
package checkout

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Expandable is a processor reference that arrives either as a bare id or,
// when expanded, as the full object.
type Expandable[T any] struct {
	ID     string
	Object *T
}

func (e *Expandable[T]) UnmarshalJSON(b []byte) error {
	*e = Expandable[T]{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &e.ID)
	}

	var ref struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &ref); err != nil {
		return err
	}
	var obj T
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	e.ID, e.Object = ref.ID, &obj
	return nil
}

func (e Expandable[T]) MarshalJSON() ([]byte, error) {
	if e.Object != nil {
		return json.Marshal(e.Object)
	}
	if e.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(e.ID)
}

type Session struct {
	ID              string                    `json:"id"`
	AmountTotal     *int64                    `json:"amount_total"`
	Currency        string                    `json:"currency"`
	PaymentStatus   string                    `json:"payment_status"`
	CustomerEmail   *string                   `json:"customer_email"`
	CustomerDetails *CustomerDetails          `json:"customer_details"`
	ShippingDetails *Shipping                 `json:"shipping_details"`
	PaymentIntent   Expandable[PaymentIntent] `json:"payment_intent"`
	LineItems       *LineItemList             `json:"line_items"`
	Metadata        map[string]string         `json:"metadata"`
}

// MetadataInvoiceType marks sessions created to pay a custom invoice.
const MetadataInvoiceType = "custom_invoice"

// InvoiceID reports the custom invoice a session pays, if any.
func (s *Session) InvoiceID() (string, bool) {
	if s.Metadata["type"] != MetadataInvoiceType {
		return "", false
	}
	id := strings.TrimSpace(s.Metadata["invoiceId"])
	return id, id != ""
}

type CustomerDetails struct {
	Email   *string  `json:"email"`
	Name    *string  `json:"name"`
	Address *Address `json:"address"`
}

type Shipping struct {
	Name    *string  `json:"name"`
	Address *Address `json:"address"`
}

type Address struct {
	Line1      *string `json:"line1"`
	Line2      *string `json:"line2"`
	City       *string `json:"city"`
	State      *string `json:"state"`
	PostalCode *string `json:"postal_code"`
	Country    *string `json:"country"`
}

type PaymentIntent struct {
	ID            string                    `json:"id"`
	ReceiptEmail  *string                   `json:"receipt_email"`
	Shipping      *Shipping                 `json:"shipping"`
	PaymentMethod Expandable[PaymentMethod] `json:"payment_method"`
	LatestCharge  Expandable[Charge]        `json:"latest_charge"`
	Charges       *ChargeList               `json:"charges"`
}

type ChargeList struct {
	Data []Charge `json:"data"`
}

type Charge struct {
	ID                   string                `json:"id"`
	PaymentMethodDetails *PaymentMethodDetails `json:"payment_method_details"`
}

type PaymentMethodDetails struct {
	Card *Card `json:"card"`
}

type PaymentMethod struct {
	ID   string `json:"id"`
	Card *Card  `json:"card"`
}

type Card struct {
	Brand string `json:"brand"`
	Last4 string `json:"last4"`
}

type LineItemList struct {
	Data []LineItem `json:"data"`
}

type LineItem struct {
	ID          string            `json:"id"`
	Description *string           `json:"description"`
	Quantity    *int64            `json:"quantity"`
	AmountTotal *float64          `json:"amount_total"`
	Metadata    map[string]string `json:"metadata"`
	Price       *Price            `json:"price"`
}

type Price struct {
	ID          string              `json:"id"`
	UnitAmount  *int64              `json:"unit_amount"`
	Metadata    map[string]string   `json:"metadata"`
	Product     Expandable[Product] `json:"product"`
	ProductData *ProductData        `json:"product_data"`
}

type ProductData struct {
	Name string `json:"name"`
}

type Product struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Session) intent() *PaymentIntent {
	return s.PaymentIntent.Object
}

func (s *Session) lineItems() []LineItem {
	if s.LineItems == nil {
		return nil
	}
	return s.LineItems.Data
}
