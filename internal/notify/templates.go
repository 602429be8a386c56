package notify

import (
	"fmt"
	"strings"

	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/internal/orders"
	"github.com/Skotchmaster/handmade_shop/pkg/money"
)

// SaleText renders the owner's new-sale e-mail from a reconciled order.
func SaleText(shop string, v orders.OrderView, adminURL string) string {
	if shop == "" {
		shop = "the shop"
	}
	cur := v.Currency

	lines := []string{
		"NEW SALE - " + shop,
		"Order: " + v.OrderLabel,
		"Placed: " + v.CreatedAt,
		"Total: " + money.Format(v.TotalCents, cur),
		"Customer: " + valueOr(v.CustomerName, "Customer"),
	}
	if v.CustomerEmail != nil && *v.CustomerEmail != "" {
		lines = append(lines, "Email: "+*v.CustomerEmail)
	}
	if addr := AddressLines(v.ShippingAddress); len(addr) > 0 {
		lines = append(lines, "Shipping: "+strings.Join(addr, ", "))
	} else {
		lines = append(lines, "Shipping: Not provided")
	}

	lines = append(lines, "", "Items:")
	if len(v.Items) == 0 {
		lines = append(lines, "- No items found.")
	}
	for _, it := range v.Items {
		lines = append(lines, fmt.Sprintf("- %s (Qty %d): %s",
			valueOr(it.ProductName, "Item"), it.Quantity, money.Format(it.LineTotalCents, cur)))
	}

	lines = append(lines,
		"",
		"Subtotal: "+money.Format(v.SubtotalCents, cur),
		"Shipping: "+money.Format(v.ShippingCents, cur),
		"Total: "+money.Format(v.TotalCents, cur),
		"",
		"Admin: "+adminURL,
	)
	return strings.Join(lines, "\n")
}

// AddressLines flattens a processor address object into at most two lines.
func AddressLines(addr map[string]any) []string {
	if addr == nil {
		return nil
	}
	str := func(k string) string {
		s, _ := addr[k].(string)
		return strings.TrimSpace(s)
	}

	street := joinNonEmpty(", ", str("line1"), str("line2"))
	cityState := joinNonEmpty(", ", str("city"), joinNonEmpty(" ", str("state"), str("postal_code")))
	place := joinNonEmpty(", ", cityState, str("country"))

	var out []string
	for _, l := range []string{street, place} {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// InquiryText is the owner's copy of a contact-form message.
func InquiryText(name, email, message string, hasImage bool) string {
	lines := []string{
		"New message from the contact form",
		"Name: " + name,
		"Email: " + email,
		"",
		message,
	}
	if hasImage {
		lines = append(lines, "", "An image was attached; open the admin messages tab to view it.")
	}
	return strings.Join(lines, "\n")
}

func InvoiceSubject(shop string, inv models.CustomInvoice) string {
	if shop == "" {
		shop = "the shop"
	}
	return "Invoice from " + shop + ": " + money.Format(inv.AmountCents, inv.Currency)
}

// InvoiceText is the customer's custom-order invoice.
func InvoiceText(inv models.CustomInvoice, payURL string) string {
	greeting := "Hi,"
	if name := valueOr(inv.CustomerName, ""); name != "" {
		greeting = "Hi " + name + ","
	}
	return strings.Join([]string{
		"Your custom order invoice",
		"",
		greeting,
		"",
		"Description: " + inv.Description,
		"Amount due: " + money.Format(inv.AmountCents, inv.Currency),
		"Pay here: " + payURL,
	}, "\n")
}

// InvoicePaidText is the owner's notice that a custom invoice was paid.
func InvoicePaidText(inv models.CustomInvoice, adminURL string) string {
	lines := []string{
		"INVOICE PAID",
		"Invoice ID: " + inv.ID,
		"Customer: " + valueOr(inv.CustomerName, "Customer"),
		"Email: " + inv.CustomerEmail,
		"Description: " + inv.Description,
		"Total: " + money.Format(inv.AmountCents, inv.Currency),
	}
	if inv.PaidAt != nil {
		lines = append(lines, "Paid: "+*inv.PaidAt)
	}
	return strings.Join(append(lines, "", "Admin: "+adminURL), "\n")
}

func joinNonEmpty(sep string, parts ...string) string {
	var keep []string
	for _, p := range parts {
		if p != "" {
			keep = append(keep, p)
		}
	}
	return strings.Join(keep, sep)
}

func valueOr(p *string, def string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return def
	}
	return *p
}
