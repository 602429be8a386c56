package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/internal/schema"
)

// Entry is what the storefront currently shows for a product. It can differ
// from what the customer saw at purchase time.
type Entry struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// Lookup resolves product join keys to current catalog entries. Keys with no
// product are simply absent from the result.
type Lookup interface {
	LookupProducts(ctx context.Context, keys []string) (map[string]Entry, error)
}

type GormLookup struct {
	DB     *gorm.DB
	Schema *schema.Inspector
}

type productRow struct {
	ExternalKey   *string `gorm:"column:external_key"`
	InternalKey   string  `gorm:"column:internal_key"`
	Name          *string `gorm:"column:name"`
	ImageURL      *string `gorm:"column:image_url"`
	ImageURLsJSON *string `gorm:"column:image_urls_json"`
}

// LookupProducts matches order item product ids against the external
// (processor) product id when the column exists, and the primary key otherwise.
func (l *GormLookup) LookupProducts(ctx context.Context, keys []string) (map[string]Entry, error) {
	out := make(map[string]Entry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	desc, err := l.Schema.Describe(ctx, models.TableProducts)
	if err != nil {
		return nil, err
	}
	if !desc.HasTable(models.TableProducts) {
		return out, nil
	}

	cols := []string{
		schema.Column("", "id") + " AS internal_key",
		desc.SelectExpr(models.TableProducts, "", "external_key", "stripe_product_id", "STRIPE_PRODUCT_ID"),
		desc.SelectExpr(models.TableProducts, "", "name", "name"),
		desc.SelectExpr(models.TableProducts, "", "image_url", "image_url"),
		desc.SelectExpr(models.TableProducts, "", "image_urls_json", "image_urls_json"),
	}

	q := l.DB.WithContext(ctx).Table(models.TableProducts).Select(strings.Join(cols, ", "))
	if ext, ok := desc.FirstColumn(models.TableProducts, "stripe_product_id", "STRIPE_PRODUCT_ID"); ok {
		q = q.Where(schema.Column("", ext)+" IN ? OR "+schema.Column("", "id")+" IN ?", keys, keys)
	} else {
		q = q.Where(schema.Column("", "id")+" IN ?", keys)
	}

	var rows []productRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}

	// internal ids first so an external id match overwrites them
	for _, r := range rows {
		out[r.InternalKey] = r.entry(r.InternalKey)
	}
	for _, r := range rows {
		if r.ExternalKey != nil && *r.ExternalKey != "" {
			out[*r.ExternalKey] = r.entry(*r.ExternalKey)
		}
	}

	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}
	for k := range out {
		if _, ok := wanted[k]; !ok {
			delete(out, k)
		}
	}
	return out, nil
}

func (r productRow) entry(key string) Entry {
	e := Entry{Key: key}
	if r.Name != nil {
		e.Name = *r.Name
	}
	if r.ImageURL != nil && *r.ImageURL != "" {
		e.ImageURL = *r.ImageURL
	} else if r.ImageURLsJSON != nil {
		e.ImageURL = firstImage(*r.ImageURLsJSON)
	}
	return e
}

func firstImage(raw string) string {
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return ""
	}
	for _, u := range urls {
		if u != "" {
			return u
		}
	}
	return ""
}
