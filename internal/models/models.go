package models

// Current schema. Older databases may lack some of these columns; readers
// go through internal/schema instead of assuming this layout.

type Order struct {
	ID                      string  `gorm:"primaryKey;type:text"            json:"id"`
	DisplayOrderID          *string `gorm:"type:text;uniqueIndex"           json:"display_order_id"`
	StripeCheckoutSessionID *string `gorm:"type:text;uniqueIndex"           json:"stripe_checkout_session_id"`
	StripePaymentIntentID   *string `gorm:"type:text"                       json:"stripe_payment_intent_id"`
	TotalCents              int64   `gorm:"not null;default:0"              json:"total_cents"`
	ShippingCents           *int64  `                                       json:"shipping_cents"`
	Currency                string  `gorm:"type:text;not null;default:usd"  json:"currency"`
	CustomerEmail           *string `gorm:"type:text"                       json:"customer_email"`
	ShippingName            *string `gorm:"type:text"                       json:"shipping_name"`
	ShippingAddressJSON     *string `gorm:"type:text"                       json:"shipping_address_json"`
	CardBrand               *string `gorm:"type:text"                       json:"card_brand"`
	CardLast4               *string `gorm:"type:text"                       json:"card_last4"`
	CreatedAt               string  `gorm:"type:text;not null;index"        json:"created_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

type OrderItem struct {
	ID          string  `gorm:"primaryKey;type:text"          json:"id"`
	OrderID     string  `gorm:"type:text;not null;index"      json:"order_id"`
	ProductID   string  `gorm:"type:text;not null"            json:"product_id"`
	Quantity    int64   `gorm:"not null;check:quantity > 0"   json:"quantity"`
	PriceCents  int64   `gorm:"not null"                      json:"price_cents"`
	ProductName *string `gorm:"type:text"                     json:"product_name"`
	LineType    *string `gorm:"type:text"                     json:"line_type"`
}

type OrderCounter struct {
	Year    int `gorm:"primaryKey;autoIncrement:false" json:"year"`
	Counter int `gorm:"not null;default:0"            json:"counter"`
}

type Product struct {
	ID              string  `gorm:"primaryKey;type:text"      json:"id"`
	StripeProductID *string `gorm:"type:text;uniqueIndex"     json:"stripe_product_id"`
	Name            string  `gorm:"type:text;not null"        json:"name"`
	Description     string  `gorm:"type:text"                 json:"description"`
	PriceCents      int64   `gorm:"not null;default:0"        json:"price_cents"`
	ImageURL        *string `gorm:"type:text"                 json:"image_url"`
	ImageURLsJSON   *string `gorm:"column:image_urls_json;type:text" json:"image_urls_json"`
	IsActive        bool    `gorm:"not null;default:true"     json:"is_active"`
}

type GalleryImage struct {
	ID        string  `gorm:"primaryKey;type:text"     json:"id"`
	ImageURL  string  `gorm:"type:text;not null"       json:"image_url"`
	AltText   *string `gorm:"type:text"                json:"alt_text"`
	IsActive  int     `gorm:"not null;default:1"       json:"is_active"`
	Position  int     `gorm:"not null;default:0"       json:"position"`
	CreatedAt string  `gorm:"type:text"                json:"created_at"`
}

type Message struct {
	ID        string  `gorm:"primaryKey;type:text"  json:"id"`
	Name      string  `gorm:"type:text;not null"    json:"name"`
	Email     string  `gorm:"type:text;not null"    json:"email"`
	Message   string  `gorm:"type:text;not null"    json:"message"`
	ImageURL  *string `gorm:"type:text"             json:"image_url"`
	CreatedAt string  `gorm:"type:text;not null"    json:"created_at"`
}

// CustomInvoice is a one-off bill for a commissioned piece. Status moves
// from sent to paid when its checkout session completes.
type CustomInvoice struct {
	ID                      string  `gorm:"primaryKey;type:text"                          json:"id"`
	CustomerEmail           string  `gorm:"type:text;not null;index:idx_custom_invoices_customer_email" json:"customer_email"`
	CustomerName            *string `gorm:"type:text"                                     json:"customer_name"`
	AmountCents             int64   `gorm:"not null"                                      json:"amount_cents"`
	Currency                string  `gorm:"type:text;not null;default:usd"                json:"currency"`
	Description             string  `gorm:"type:text;not null"                            json:"description"`
	Status                  string  `gorm:"type:text;not null;default:draft;index:idx_custom_invoices_status" json:"status"`
	StripeCheckoutSessionID *string `gorm:"type:text"                                     json:"stripe_checkout_session_id"`
	StripePaymentIntentID   *string `gorm:"type:text"                                     json:"stripe_payment_intent_id"`
	CreatedAt               string  `gorm:"type:text;not null;index:idx_custom_invoices_created_at" json:"created_at"`
	SentAt                  *string `gorm:"type:text"                                     json:"sent_at"`
	PaidAt                  *string `gorm:"type:text"                                     json:"paid_at"`
}

const (
	InvoiceDraft = "draft"
	InvoiceSent  = "sent"
	InvoicePaid  = "paid"
)

const (
	TableOrders        = "orders"
	TableOrderItems    = "order_items"
	TableOrderCounters = "order_counters"
	TableProducts      = "products"
	TableGalleryImages = "gallery_images"
	TableMessages      = "messages"
	TableInvoices      = "custom_invoices"
)

// TimeLayout is how the shop writes created_at text columns.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"
