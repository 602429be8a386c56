// Package invoices issues one-off invoices for custom orders and records
// their payment.
package invoices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/events"
	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/internal/notify"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

var (
	ErrNotFound = errors.New("invoice not found")
	// ErrNotify means the invoice was stored but the customer e-mail was not queued.
	ErrNotify = errors.New("invoice created but email failed to send")
)

const (
	msgRequired = "customer_email and description are required."
	msgAmount   = "A positive amount is required (amount_cents or amount_dollars)."
)

// Input is the admin's invoice request. Amounts accept JSON numbers or
// numeric strings; amount_cents wins when both are sent.
type Input struct {
	CustomerEmail string           `json:"customer_email" validate:"required,max=254,email"`
	CustomerName  string           `json:"customer_name"  validate:"max=120"`
	AmountCents   *decimal.Decimal `json:"amount_cents"`
	AmountDollars *decimal.Decimal `json:"amount_dollars"`
	Currency      string           `json:"currency"       validate:"omitempty,len=3,alpha"`
	Description   string           `json:"description"    validate:"required,max=5000"`
}

// InvalidError carries a message fit to show the admin.
type InvalidError struct {
	Field string
	Msg   string
}

func (e *InvalidError) Error() string { return e.Msg }

func (in Input) Normalize() Input {
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.Description = strings.TrimSpace(in.Description)
	in.Currency = strings.ToLower(strings.TrimSpace(in.Currency))
	if in.Currency == "" {
		in.Currency = "usd"
	}
	return in
}

// Cents resolves the amount to minor units, rounding half away from zero.
// Zero means no usable amount was given.
func (in Input) Cents() int64 {
	switch {
	case in.AmountCents != nil:
		return in.AmountCents.Round(0).IntPart()
	case in.AmountDollars != nil:
		return in.AmountDollars.Shift(2).Round(0).IntPart()
	default:
		return 0
	}
}

func Validate(v *validator.Validate, in Input) error {
	if err := v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return err
		}
		fe := verrs[0]
		switch {
		case fe.Tag() == "required":
			return &InvalidError{Field: fe.Field(), Msg: msgRequired}
		case fe.Tag() == "email":
			return &InvalidError{Field: fe.Field(), Msg: "customer_email is not a valid address."}
		case fe.Tag() == "max":
			return &InvalidError{Field: fe.Field(), Msg: fmt.Sprintf("%s is too long (max %s characters).", fe.Field(), fe.Param())}
		default:
			return &InvalidError{Field: fe.Field(), Msg: fe.Field() + " is invalid."}
		}
	}
	if in.Cents() <= 0 {
		return &InvalidError{Field: "amount_cents", Msg: msgAmount}
	}
	return nil
}

// Created is what the admin gets back after issuing an invoice.
type Created struct {
	InvoiceID  string `json:"invoiceId"`
	Status     string `json:"status"`
	InvoiceURL string `json:"invoiceUrl"`
}

// PublicView is the invoice as the paying customer sees it. The e-mail
// address and processor ids stay private.
type PublicView struct {
	ID           string  `json:"id"`
	CustomerName string  `json:"customer_name"`
	AmountCents  int64   `json:"amount_cents"`
	Currency     string  `json:"currency"`
	Description  string  `json:"description"`
	Status       string  `json:"status"`
	CreatedAt    *string `json:"created_at"`
	SentAt       *string `json:"sent_at"`
	PaidAt       *string `json:"paid_at"`
}

func publicView(inv models.CustomInvoice) PublicView {
	v := PublicView{
		ID:          inv.ID,
		AmountCents: inv.AmountCents,
		Currency:    inv.Currency,
		Description: inv.Description,
		Status:      inv.Status,
		SentAt:      inv.SentAt,
		PaidAt:      inv.PaidAt,
	}
	if inv.CustomerName != nil {
		v.CustomerName = *inv.CustomerName
	}
	if inv.CreatedAt != "" {
		v.CreatedAt = &inv.CreatedAt
	}
	return v
}

type Service struct {
	DB       *gorm.DB
	Validate *validator.Validate
	Notifier *notify.Notifier
	Events   events.Publisher
	SiteURL  string
	Now      func() time.Time

	ready atomic.Bool
}

func NewService(db *gorm.DB, v *validator.Validate, n *notify.Notifier, pub events.Publisher, siteURL string) *Service {
	return &Service{DB: db, Validate: v, Notifier: n, Events: pub, SiteURL: siteURL, Now: time.Now}
}

func (s *Service) ensureSchema(ctx context.Context) error {
	if s.ready.Load() {
		return nil
	}
	if err := s.DB.WithContext(ctx).AutoMigrate(&models.CustomInvoice{}); err != nil {
		return fmt.Errorf("migrate %s: %w", models.TableInvoices, err)
	}
	s.ready.Store(true)
	return nil
}

// URL is the customer-facing page for an invoice.
func URL(siteURL, id string) string {
	base := strings.TrimRight(strings.TrimSpace(siteURL), "/")
	return base + "/invoice/" + id
}

// Create stores a sent invoice and queues the customer's e-mail. The
// invoice is kept when the e-mail fails; that case returns the result
// together with ErrNotify.
func (s *Service) Create(ctx context.Context, in Input) (Created, error) {
	in = in.Normalize()
	if err := Validate(s.Validate, in); err != nil {
		return Created{}, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return Created{}, err
	}

	now := s.now().UTC().Format(models.TimeLayout)
	inv := models.CustomInvoice{
		ID:            uuid.NewString(),
		CustomerEmail: in.CustomerEmail,
		AmountCents:   in.Cents(),
		Currency:      in.Currency,
		Description:   in.Description,
		Status:        models.InvoiceSent,
		CreatedAt:     now,
		SentAt:        &now,
	}
	if in.CustomerName != "" {
		inv.CustomerName = &in.CustomerName
	}
	if err := s.DB.WithContext(ctx).Create(&inv).Error; err != nil {
		return Created{}, fmt.Errorf("save invoice: %w", err)
	}

	out := Created{InvoiceID: inv.ID, Status: inv.Status, InvoiceURL: URL(s.SiteURL, inv.ID)}
	s.publish(ctx, events.InvoiceSent, inv)

	if s.Notifier == nil {
		return out, fmt.Errorf("%w: no mailer", ErrNotify)
	}
	if err := s.Notifier.Invoice(ctx, inv, out.InvoiceURL); err != nil {
		return out, fmt.Errorf("%w: %v", ErrNotify, err)
	}
	return out, nil
}

func (s *Service) find(ctx context.Context, id string) (models.CustomInvoice, error) {
	var inv models.CustomInvoice
	err := s.DB.WithContext(ctx).Where("id = ?", id).Take(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return inv, ErrNotFound
	}
	if err != nil {
		return inv, fmt.Errorf("load invoice: %w", err)
	}
	return inv, nil
}

func (s *Service) Get(ctx context.Context, id string) (PublicView, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return PublicView{}, ErrNotFound
	}
	if err := s.ensureSchema(ctx); err != nil {
		return PublicView{}, err
	}
	inv, err := s.find(ctx, id)
	if err != nil {
		return PublicView{}, err
	}
	return publicView(inv), nil
}

// List returns every invoice, newest first.
func (s *Service) List(ctx context.Context) ([]models.CustomInvoice, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var out []models.CustomInvoice
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

// MarkPaid settles an invoice from a completed checkout session. A repeat
// delivery for an already paid invoice returns false and sends nothing.
func (s *Service) MarkPaid(ctx context.Context, invoiceID, sessionID, paymentIntentID string) (bool, error) {
	l := logging.FromContext(ctx).With("invoice_id", invoiceID)
	if err := s.ensureSchema(ctx); err != nil {
		return false, err
	}

	updates := map[string]any{
		"status":  models.InvoicePaid,
		"paid_at": s.now().UTC().Format(models.TimeLayout),
	}
	if sessionID != "" {
		updates["stripe_checkout_session_id"] = sessionID
	}
	if paymentIntentID != "" {
		updates["stripe_payment_intent_id"] = paymentIntentID
	}
	res := s.DB.WithContext(ctx).
		Model(&models.CustomInvoice{}).
		Where("id = ? AND status <> ?", invoiceID, models.InvoicePaid).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("mark invoice paid: %w", res.Error)
	}

	inv, err := s.find(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	if res.RowsAffected == 0 {
		l.Info("invoice_already_paid")
		return false, nil
	}
	l.Info("invoice_paid", "session_id", sessionID, "amount_cents", inv.AmountCents)

	s.publish(ctx, events.InvoicePaid, inv)
	if s.Notifier != nil {
		if err := s.Notifier.InvoicePaid(ctx, inv); err != nil {
			l.Warn("owner_notify_error", "reason", err.Error())
		}
	}
	return true, nil
}

func (s *Service) publish(ctx context.Context, kind string, inv models.CustomInvoice) {
	if s.Events == nil {
		return
	}
	err := s.Events.PublishEvent(ctx, events.TopicInvoices, inv.ID, events.New(kind, map[string]any{
		"invoice_id":   inv.ID,
		"status":       inv.Status,
		"amount_cents": inv.AmountCents,
		"currency":     inv.Currency,
	}))
	if err != nil {
		logging.FromContext(ctx).Warn("publish_failed", "event", kind, "error", err)
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
