package schema

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/handmade_shop/internal/models"
)

// Migrate brings a database to the current schema. Existing legacy columns
// are left alone.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&models.Order{},
		&models.OrderItem{},
		&models.OrderCounter{},
		&models.Product{},
		&models.GalleryImage{},
		&models.Message{},
		&models.CustomInvoice{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// EnsureDisplayIDSchema creates order_counters and adds orders.display_order_id
// when missing. Only the allocator calls it; the read path never writes DDL.
func EnsureDisplayIDSchema(ctx context.Context, db *gorm.DB) error {
	present, err := existingTables(ctx, db)
	if err != nil {
		return err
	}
	m := db.WithContext(ctx).Migrator()

	if !present[models.TableOrders] {
		return &SchemaError{Missing: []string{models.TableOrders}}
	}
	if !present[models.TableOrderCounters] {
		if err := m.CreateTable(&models.OrderCounter{}); err != nil {
			return fmt.Errorf("create %s: %w", models.TableOrderCounters, err)
		}
	}
	if !m.HasColumn(&models.Order{}, "display_order_id") {
		if err := m.AddColumn(&models.Order{}, "DisplayOrderID"); err != nil {
			return fmt.Errorf("add orders.display_order_id: %w", err)
		}
	}
	return nil
}
