package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/internal/schema"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

// ErrTimeout means the datastore did not answer within the query window.
// Callers may retry.
var ErrTimeout = errors.New("orders: datastore timeout")

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Service struct {
	Repo       *Repo
	Schema     *schema.Inspector
	Reconciler *Reconciler

	Timeout      time.Duration
	DefaultLimit int
	Now          func() time.Time
}

func NewService(repo *Repo, inspector *schema.Inspector, rec *Reconciler, timeout time.Duration) *Service {
	return &Service{
		Repo:         repo,
		Schema:       inspector,
		Reconciler:   rec,
		Timeout:      timeout,
		DefaultLimit: DefaultLimit,
		Now:          time.Now,
	}
}

// ClampLimit maps a requested page size into 1..MaxLimit; zero or negative
// selects def.
func ClampLimit(limit, def int) int {
	if def <= 0 {
		def = DefaultLimit
	}
	switch {
	case limit <= 0:
		limit = def
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return min(limit, MaxLimit)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// classify turns any failure after the deadline into ErrTimeout; drivers
// report cancelled queries in different ways.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func (s *Service) describe(ctx context.Context) (*schema.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	if err := schema.AssertTablesExist(ctx, s.Repo.DB, models.TableOrders, models.TableOrderItems); err != nil {
		return nil, classify(ctx, err)
	}
	d, err := s.Schema.Describe(ctx, models.TableOrders, models.TableOrderItems)
	if err != nil {
		return nil, classify(ctx, err)
	}
	return d, nil
}

// ListRecentOrders returns the most recent orders, newest first, fully
// reconciled. It never assigns display ids.
func (s *Service) ListRecentOrders(ctx context.Context, limit int) ([]OrderView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	l := logging.FromContext(ctx)

	d, err := s.describe(ctx)
	if err != nil {
		return nil, err
	}

	limit = ClampLimit(limit, s.DefaultLimit)
	rows, err := s.Repo.RecentOrders(ctx, d, limit)
	if err != nil {
		return nil, classify(ctx, err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	items, err := s.Repo.ItemsFor(ctx, d, ids)
	if err != nil {
		return nil, classify(ctx, err)
	}

	l.Debug("orders_loaded",
		"count", len(rows),
		"with_items", len(items),
		"email_column", firstOr(d, models.TableOrders, "customer_email", "customer_email1"),
		"display_id_column", d.HasColumn(models.TableOrders, "display_order_id"),
	)

	views := s.Reconciler.ReconcileOrders(ctx, rows, items)
	if err := ctx.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	return views, nil
}

// GetOrderByCheckoutSession backs the checkout confirmation page.
func (s *Service) GetOrderByCheckoutSession(ctx context.Context, sessionID string) (*OrderView, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.describe(ctx)
	if err != nil {
		return nil, err
	}
	row, err := s.Repo.OrderBySession(ctx, d, sessionID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	items, err := s.Repo.ItemsFor(ctx, d, []string{row.ID})
	if err != nil {
		return nil, classify(ctx, err)
	}
	views := s.Reconciler.ReconcileOrders(ctx, []OrderRow{*row}, items)
	return &views[0], nil
}

// RecordOrder persists a completed checkout. It fills in ids and created_at
// when missing and reports created=false when the session was already
// recorded.
func (s *Service) RecordOrder(ctx context.Context, o *models.Order) (id string, created bool, err error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt == "" {
		o.CreatedAt = s.now().UTC().Format(models.TimeLayout)
	}
	for i := range o.Items {
		if o.Items[i].ID == "" {
			o.Items[i].ID = uuid.NewString()
		}
		o.Items[i].OrderID = o.ID
	}

	id, err = s.Repo.Insert(ctx, o)
	if errors.Is(err, ErrDuplicate) {
		return id, false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func firstOr(d *schema.Descriptor, table string, candidates ...string) string {
	if c, ok := d.FirstColumn(table, candidates...); ok {
		return c
	}
	return ""
}
