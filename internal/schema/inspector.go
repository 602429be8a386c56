package schema

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

type cached struct {
	desc    *Descriptor
	expires time.Time
}

// Inspector reads live column metadata through gorm's Migrator and keeps each
// result for ttl. A zero ttl disables caching.
type Inspector struct {
	DB  *gorm.DB
	TTL time.Duration
	Now func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

func NewInspector(db *gorm.DB, ttl time.Duration) *Inspector {
	return &Inspector{DB: db, TTL: ttl, Now: time.Now}
}

// Describe returns which of tables exist and their columns. Absent tables are
// simply missing from the descriptor; use AssertTablesExist to fail on them.
func (i *Inspector) Describe(ctx context.Context, tables ...string) (*Descriptor, error) {
	key := cacheKey(tables)
	now := i.now()

	i.mu.Lock()
	if c, ok := i.cache[key]; ok && now.Before(c.expires) {
		i.mu.Unlock()
		return c.desc, nil
	}
	i.mu.Unlock()

	present, err := existingTables(ctx, i.DB)
	if err != nil {
		return nil, err
	}
	m := i.DB.WithContext(ctx).Migrator()
	cols := make(map[string][]string, len(tables))
	for _, t := range tables {
		if !present[strings.ToLower(t)] {
			continue
		}
		types, err := m.ColumnTypes(t)
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", t, err)
		}
		names := make([]string, 0, len(types))
		for _, ct := range types {
			names = append(names, ct.Name())
		}
		cols[t] = names
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("describe tables: %w", err)
	}

	desc := NewDescriptor(cols)
	if i.TTL > 0 {
		i.mu.Lock()
		if i.cache == nil {
			i.cache = make(map[string]cached)
		}
		i.cache[key] = cached{desc: desc, expires: now.Add(i.TTL)}
		i.mu.Unlock()
	}
	return desc, nil
}

// Invalidate drops cached descriptors, e.g. after a migration.
func (i *Inspector) Invalidate() {
	i.mu.Lock()
	i.cache = nil
	i.mu.Unlock()
}

func (i *Inspector) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func cacheKey(tables []string) string {
	sorted := slices.Clone(tables)
	slices.Sort(sorted)
	return strings.Join(sorted, ",")
}
