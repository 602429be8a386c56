// Package testdb opens throwaway SQLite databases for package tests.
package testdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgdb "github.com/Skotchmaster/handmade_shop/pkg/db"
)

// Open returns an empty SQLite database that is closed when the test ends.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	return OpenAt(t, Path(t))
}

// Path returns a fresh database file location inside the test's temp dir.
func Path(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "shop.db")
}

// OpenAt opens (or creates) the database at path. Two handles on one path
// behave like two server instances.
func OpenAt(t *testing.T, path string) *gorm.DB {
	t.Helper()
	gdb, err := pkgdb.Open(context.Background(), pkgdb.DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pkgdb.Close(gdb) })
	return gdb
}

// Exec runs raw DDL/DML and fails the test on error.
func Exec(t *testing.T, gdb *gorm.DB, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		require.NoError(t, gdb.Exec(s).Error, s)
	}
}

// LegacyOrdersSchema is the oldest layout still in production: no display
// ids, no card or shipping columns, and the misspelled email column.
var LegacyOrdersSchema = []string{
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		stripe_payment_intent_id TEXT,
		total_cents INTEGER,
		customer_email1 TEXT,
		shipping_name TEXT,
		shipping_address_json TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price_cents INTEGER NOT NULL
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		image_url TEXT
	)`,
}
