package orders

import "github.com/Skotchmaster/handmade_shop/internal/models"

// OrderRow is an orders row as read through the schema descriptor. Columns
// the live table lacks come back as nil.
type OrderRow struct {
	ID                  string           `gorm:"column:id"`
	DisplayOrderID      *string          `gorm:"column:display_order_id"`
	CheckoutSessionID   *string          `gorm:"column:stripe_checkout_session_id"`
	PaymentIntentID     *string          `gorm:"column:stripe_payment_intent_id"`
	TotalCents          *int64           `gorm:"column:total_cents"`
	ShippingCents       *int64           `gorm:"column:shipping_cents"`
	Currency            *string          `gorm:"column:currency"`
	CustomerEmail       *string          `gorm:"column:customer_email"`
	ShippingName        *string          `gorm:"column:shipping_name"`
	ShippingAddressJSON *string          `gorm:"column:shipping_address_json"`
	CardBrand           *string          `gorm:"column:card_brand"`
	CardLast4           *string          `gorm:"column:card_last4"`
	CreatedAt           models.Timestamp `gorm:"column:created_at"`
}

type ItemRow struct {
	ID          *string `gorm:"column:id"`
	OrderID     string  `gorm:"column:order_id"`
	ProductID   string  `gorm:"column:product_id"`
	Quantity    *int64  `gorm:"column:quantity"`
	PriceCents  *int64  `gorm:"column:price_cents"`
	ProductName *string `gorm:"column:product_name"`
	LineType    *string `gorm:"column:line_type"`
}
