package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ErrUnreachable means the table catalog could not be read at all, so
// nothing is known about which tables exist.
var ErrUnreachable = errors.New("schema: table catalog unreadable")

// existingTables reads the dialect's table catalog (sqlite_master or
// information_schema.tables). Unlike Migrator.HasTable it reports query
// failures instead of answering "absent".
func existingTables(ctx context.Context, db *gorm.DB) (map[string]bool, error) {
	names, err := db.WithContext(ctx).Migrator().GetTables()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set, nil
}

// AssertTablesExist fails with *SchemaError naming every absent table.
// A database that cannot be queried yields ErrUnreachable instead.
func AssertTablesExist(ctx context.Context, db *gorm.DB, names ...string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("check tables: %w", err)
	}
	present, err := existingTables(ctx, db)
	if err != nil {
		return err
	}
	var missing []string
	for _, name := range names {
		if !present[strings.ToLower(name)] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}
