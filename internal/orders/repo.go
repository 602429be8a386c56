package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/internal/schema"
	pkgdb "github.com/Skotchmaster/handmade_shop/pkg/db"
)

var (
	ErrNotFound  = errors.New("order not found")
	ErrDuplicate = errors.New("order already recorded")
)

// Repo reads orders through a schema descriptor so older databases keep
// working without a migration.
type Repo struct {
	DB *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{DB: db}
}

func orderColumns(d *schema.Descriptor) []string {
	t := models.TableOrders
	return []string{
		schema.Column("o", "id") + " AS id",
		d.SelectExpr(t, "o", "display_order_id", "display_order_id"),
		d.SelectExpr(t, "o", "stripe_checkout_session_id", "stripe_checkout_session_id"),
		d.SelectExpr(t, "o", "stripe_payment_intent_id", "stripe_payment_intent_id"),
		d.SelectExpr(t, "o", "total_cents", "total_cents"),
		d.SelectExpr(t, "o", "shipping_cents", "shipping_cents"),
		d.SelectExpr(t, "o", "currency", "currency"),
		d.SelectExpr(t, "o", "customer_email", "customer_email", "customer_email1"),
		d.SelectExpr(t, "o", "shipping_name", "shipping_name"),
		d.SelectExpr(t, "o", "shipping_address_json", "shipping_address_json"),
		d.SelectExpr(t, "o", "card_brand", "card_brand"),
		d.SelectExpr(t, "o", "card_last4", "card_last4"),
		d.SelectExpr(t, "o", "created_at", "created_at"),
	}
}

func itemColumns(d *schema.Descriptor) []string {
	t := models.TableOrderItems
	return []string{
		d.SelectExpr(t, "i", "id", "id"),
		schema.Column("i", "order_id") + " AS order_id",
		schema.Column("i", "product_id") + " AS product_id",
		d.SelectExpr(t, "i", "quantity", "quantity"),
		d.SelectExpr(t, "i", "price_cents", "price_cents"),
		d.SelectExpr(t, "i", "product_name", "product_name"),
		d.SelectExpr(t, "i", "line_type", "line_type"),
	}
}

func (r *Repo) ordersQuery(ctx context.Context, d *schema.Descriptor) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table(models.TableOrders + " AS o").
		Select(strings.Join(orderColumns(d), ", "))
}

// RecentOrders returns up to limit orders, newest first.
func (r *Repo) RecentOrders(ctx context.Context, d *schema.Descriptor, limit int) ([]OrderRow, error) {
	q := r.ordersQuery(ctx, d)
	if d.HasColumn(models.TableOrders, "created_at") {
		q = q.Order(r.newestFirst(schema.Column("o", "created_at")))
	}
	var rows []OrderRow
	if err := q.Limit(limit).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	sortNewestFirst(rows)
	return rows, nil
}

// newestFirst orders created_at chronologically even when rows mix
// "2025-03-10T01:00:00.000Z" and "2025-03-10 23:00:00" text.
func (r *Repo) newestFirst(col string) string {
	switch {
	case pkgdb.IsSQLite(r.DB):
		return "datetime(" + col + ") DESC, " + col + " DESC"
	case pkgdb.IsPostgres(r.DB):
		return "replace(" + col + "::text, ' ', 'T') DESC"
	default:
		return col + " DESC"
	}
}

// sortNewestFirst settles ties the database cannot see, such as differing
// offsets. Unparseable timestamps go last in their original order.
func sortNewestFirst(rows []OrderRow) {
	slices.SortStableFunc(rows, func(a, b OrderRow) int {
		switch {
		case a.CreatedAt.Valid && b.CreatedAt.Valid:
			return b.CreatedAt.Time.Compare(a.CreatedAt.Time)
		case a.CreatedAt.Valid:
			return -1
		case b.CreatedAt.Valid:
			return 1
		default:
			return 0
		}
	})
}

func (r *Repo) OrderBySession(ctx context.Context, d *schema.Descriptor, sessionID string) (*OrderRow, error) {
	col, ok := d.FirstColumn(models.TableOrders, "stripe_checkout_session_id")
	if !ok {
		return nil, ErrNotFound
	}
	var rows []OrderRow
	err := r.ordersQuery(ctx, d).
		Where(schema.Column("o", col)+" = ?", sessionID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select order by session: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// ItemsFor loads items for all orderIDs with one query, grouped by order.
func (r *Repo) ItemsFor(ctx context.Context, d *schema.Descriptor, orderIDs []string) (map[string][]ItemRow, error) {
	out := make(map[string][]ItemRow, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	q := r.DB.WithContext(ctx).
		Table(models.TableOrderItems+" AS i").
		Select(strings.Join(itemColumns(d), ", ")).
		Where(schema.Column("i", "order_id")+" IN ?", orderIDs)
	if d.HasColumn(models.TableOrderItems, "id") {
		q = q.Order(schema.Column("i", "order_id")).Order(schema.Column("i", "id"))
	}

	var rows []ItemRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	for _, it := range rows {
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, nil
}

// Insert writes a new order and its items in one transaction. A second
// insert for the same checkout session returns ErrDuplicate and the id of the
// order already recorded.
func (r *Repo) Insert(ctx context.Context, o *models.Order) (string, error) {
	var existing string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if o.StripeCheckoutSessionID != nil && *o.StripeCheckoutSessionID != "" {
			var prior models.Order
			err := tx.Select("id").
				Where("stripe_checkout_session_id = ?", *o.StripeCheckoutSessionID).
				Limit(1).
				Find(&prior).Error
			if err != nil {
				return err
			}
			if prior.ID != "" {
				existing = prior.ID
				return ErrDuplicate
			}
		}
		return tx.Create(o).Error
	})
	if errors.Is(err, ErrDuplicate) {
		return existing, ErrDuplicate
	}
	if err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}
	return o.ID, nil
}
