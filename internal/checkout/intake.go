package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/handmade_shop/internal/events"
	"github.com/Skotchmaster/handmade_shop/internal/invoices"
	"github.com/Skotchmaster/handmade_shop/internal/notify"
	"github.com/Skotchmaster/handmade_shop/internal/orders"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

const EventSessionCompleted = "checkout.session.completed"

var ErrBadEvent = errors.New("unreadable webhook event")

type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrBadEvent)
	}
	return &ev, nil
}

func (e *Event) Session() (*Session, error) {
	var s Session
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}
	return &s, nil
}

type Outcome struct {
	Ignored   bool   `json:"ignored,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
	InvoiceID string `json:"invoiceId,omitempty"`
	Created   bool   `json:"created"`
}

// InvoicePayments settles custom invoices paid through checkout.
type InvoicePayments interface {
	MarkPaid(ctx context.Context, invoiceID, sessionID, paymentIntentID string) (bool, error)
}

// Intake records completed checkouts. Storing the order is the only step
// that can fail the webhook; events and owner notifications are best-effort.
type Intake struct {
	Orders    *orders.Service
	Invoices  InvoicePayments
	Events    events.Publisher
	Notifier  *notify.Notifier
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

func (in *Intake) now() time.Time {
	if in.Now != nil {
		return in.Now()
	}
	return time.Now()
}

// Verify checks the signature when a secret is configured.
func (in *Intake) Verify(payload []byte, header string) error {
	if in.Secret == "" {
		return nil
	}
	return VerifySignature(payload, header, in.Secret, in.now(), in.Tolerance)
}

func (in *Intake) Handle(ctx context.Context, ev *Event) (Outcome, error) {
	ctx, l := logging.With(ctx, "event_id", ev.ID, "event_type", ev.Type)
	if ev.Type != EventSessionCompleted {
		l.Debug("webhook_ignored")
		return Outcome{Ignored: true}, nil
	}

	sess, err := ev.Session()
	if err != nil {
		return Outcome{}, err
	}
	if invoiceID, ok := sess.InvoiceID(); ok {
		return in.settleInvoice(ctx, sess, invoiceID)
	}
	draft, err := BuildOrderDraft(sess, in.now())
	if err != nil {
		return Outcome{}, err
	}

	id, created, err := in.Orders.RecordOrder(ctx, draft)
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{OrderID: id, Created: created}
	if !created {
		l.Info("checkout_already_recorded", "order_id", id, "session_id", sess.ID)
		return out, nil
	}
	l.Info("checkout_recorded", "order_id", id, "session_id", sess.ID, "items", len(draft.Items))

	if in.Events != nil {
		err := in.Events.PublishEvent(ctx, events.TopicOrders, id, events.New(events.OrderRecorded, map[string]any{
			"order_id":       id,
			"session_id":     sess.ID,
			"total_cents":    draft.TotalCents,
			"shipping_cents": draft.ShippingCents,
			"currency":       draft.Currency,
			"items":          len(draft.Items),
		}))
		if err != nil {
			l.Warn("publish_failed", "event", events.OrderRecorded, "error", err)
		}
	}

	if in.Notifier != nil {
		view, err := in.Orders.GetOrderByCheckoutSession(ctx, sess.ID)
		if err != nil {
			l.Warn("owner_notify_error", "reason", "reload order", "error", err)
			return out, nil
		}
		if err := in.Notifier.NewSale(ctx, *view); err != nil {
			l.Warn("owner_notify_error", "reason", err.Error())
		}
	}
	return out, nil
}

// settleInvoice marks a custom invoice paid instead of recording an order.
func (in *Intake) settleInvoice(ctx context.Context, sess *Session, invoiceID string) (Outcome, error) {
	l := logging.FromContext(ctx).With("invoice_id", invoiceID, "session_id", sess.ID)
	if err := checkPaid(sess); err != nil {
		return Outcome{}, err
	}
	if in.Invoices == nil {
		return Outcome{}, fmt.Errorf("%w: invoice payments not configured", ErrInvalidSession)
	}
	updated, err := in.Invoices.MarkPaid(ctx, invoiceID, sess.ID, sess.PaymentIntent.ID)
	if errors.Is(err, invoices.ErrNotFound) {
		return Outcome{}, fmt.Errorf("%w: unknown invoice %s", ErrInvalidSession, invoiceID)
	}
	if err != nil {
		return Outcome{}, err
	}
	l.Info("invoice_settled", "updated", updated)
	return Outcome{InvoiceID: invoiceID, Created: updated}, nil
}
