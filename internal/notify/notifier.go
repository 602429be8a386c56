package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/internal/orders"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
	"github.com/Skotchmaster/handmade_shop/pkg/money"
)

var ErrNoOwnerAddress = errors.New("owner email not configured")

const (
	KindNewSale     = "owner_new_sale"
	KindOwnerText   = "owner_text_alert"
	KindInquiry     = "owner_inquiry"
	KindInvoice     = "customer_invoice"
	KindInvoicePaid = "owner_invoice_paid"
)

type Notifier struct {
	Mailer Mailer
	Owner  Owner
}

// NewSale queues the owner's sale e-mail and, when enabled, the short text
// alert. A failing text alert does not stop the e-mail.
func (n *Notifier) NewSale(ctx context.Context, v orders.OrderView) error {
	if n.Owner.Email == "" {
		return ErrNoOwnerAddress
	}
	admin := n.Owner.AdminURL()

	var errs []error
	err := n.Mailer.Enqueue(ctx, EmailJob{
		Kind:    KindNewSale,
		To:      n.Owner.Email,
		Subject: "New sale " + v.OrderLabel,
		Text:    SaleText(n.Owner.ShopName, v, admin),
		Meta:    map[string]string{"order_id": v.ID},
	})
	if err != nil {
		errs = append(errs, err)
	}

	if ShouldSendOwnerText(n.Owner) {
		subject, text := FormatOwnerTextAlert(n.Owner.TextSubject, v.OrderLabel, money.Format(v.TotalCents, v.Currency), admin)
		logging.FromContext(ctx).Info("owner_text_queued", "to", MaskRecipient(n.Owner.TextTo), "order", v.OrderLabel)
		if err := n.Mailer.Enqueue(ctx, EmailJob{
			Kind:    KindOwnerText,
			To:      n.Owner.TextTo,
			Subject: subject,
			Text:    text,
			Meta:    map[string]string{"order_id": v.ID},
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Inquiry queues the owner's copy of a contact-form message with reply-to
// set to the sender.
func (n *Notifier) Inquiry(ctx context.Context, messageID, name, email, body string, hasImage bool) error {
	if n.Owner.Email == "" {
		return ErrNoOwnerAddress
	}
	return n.Mailer.Enqueue(ctx, EmailJob{
		Kind:    KindInquiry,
		To:      n.Owner.Email,
		ReplyTo: email,
		Subject: "New message from " + name,
		Text:    InquiryText(name, email, body, hasImage),
		Meta:    map[string]string{"message_id": messageID},
	})
}

// Invoice queues the customer's copy of a custom invoice with a link to pay
// it. Replies go to the owner when one is configured.
func (n *Notifier) Invoice(ctx context.Context, inv models.CustomInvoice, payURL string) error {
	return n.Mailer.Enqueue(ctx, EmailJob{
		Kind:    KindInvoice,
		To:      inv.CustomerEmail,
		ReplyTo: n.Owner.Email,
		Subject: InvoiceSubject(n.Owner.ShopName, inv),
		Text:    InvoiceText(inv, payURL),
		Meta:    map[string]string{"invoice_id": inv.ID},
	})
}

// InvoicePaid tells the owner a custom invoice was settled.
func (n *Notifier) InvoicePaid(ctx context.Context, inv models.CustomInvoice) error {
	if n.Owner.Email == "" {
		return ErrNoOwnerAddress
	}
	return n.Mailer.Enqueue(ctx, EmailJob{
		Kind:    KindInvoicePaid,
		To:      n.Owner.Email,
		Subject: "Invoice Paid (" + inv.ID + ")",
		Text:    InvoicePaidText(inv, n.Owner.AdminURL()),
		Meta:    map[string]string{"invoice_id": inv.ID},
	})
}

// LogMailer only logs. Used when no broker is configured.
type LogMailer struct{}

func (LogMailer) Enqueue(ctx context.Context, job EmailJob) error {
	logging.FromContext(ctx).Info("email_not_sent", "kind", job.Kind, "to", MaskRecipient(job.To), "reason", "no mail queue configured")
	return nil
}

// Outbox keeps jobs in memory.
type Outbox struct {
	mu   sync.Mutex
	Jobs []EmailJob
	Err  error
}

func (o *Outbox) Enqueue(_ context.Context, job EmailJob) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.Jobs = append(o.Jobs, job)
	return nil
}

func (o *Outbox) Kinds() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.Jobs))
	for i, j := range o.Jobs {
		out[i] = j.Kind
	}
	return out
}
