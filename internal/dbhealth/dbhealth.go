// Package dbhealth summarizes what a database holds for operators.
package dbhealth

import (
	"context"
	"fmt"
	"slices"

	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/models"
	"github.com/Skotchmaster/handmade_shop/pkg/logging"
)

// Counted lists the tables whose row counts are reported.
var Counted = []string{
	models.TableOrders,
	models.TableProducts,
	models.TableMessages,
	models.TableGalleryImages,
}

type Report struct {
	Driver string            `json:"driver"`
	Tables []string          `json:"tables"`
	Counts map[string]*int64 `json:"counts"`
}

// Check lists tables and counts rows in Counted. A count that fails (most
// often a missing table) is reported as nil rather than failing the report.
func Check(ctx context.Context, db *gorm.DB) (Report, error) {
	l := logging.FromContext(ctx).With("component", "dbhealth")

	tables, err := db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return Report{}, fmt.Errorf("list tables: %w", err)
	}
	slices.Sort(tables)

	rep := Report{
		Driver: db.Dialector.Name(),
		Tables: tables,
		Counts: make(map[string]*int64, len(Counted)),
	}
	for _, t := range Counted {
		if !slices.Contains(tables, t) {
			rep.Counts[t] = nil
			continue
		}
		var n int64
		if err := db.WithContext(ctx).Table(t).Count(&n).Error; err != nil {
			l.Warn("count_failed", "table", t, "error", err)
			rep.Counts[t] = nil
			continue
		}
		rep.Counts[t] = &n
	}
	return rep, nil
}
