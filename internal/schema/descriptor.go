package schema

import (
	"strings"

	"github.com/lib/pq"
)

// Descriptor is a snapshot of which tables and columns exist. Query builders
// ask it instead of hardcoding optional column names.
type Descriptor struct {
	tables map[string]map[string]string
}

func NewDescriptor(tables map[string][]string) *Descriptor {
	d := &Descriptor{tables: make(map[string]map[string]string, len(tables))}
	for t, cols := range tables {
		set := make(map[string]string, len(cols))
		for _, c := range cols {
			set[strings.ToLower(c)] = c
		}
		d.tables[strings.ToLower(t)] = set
	}
	return d
}

func (d *Descriptor) HasTable(table string) bool {
	_, ok := d.tables[strings.ToLower(table)]
	return ok
}

func (d *Descriptor) HasColumn(table, column string) bool {
	_, ok := d.column(table, column)
	return ok
}

func (d *Descriptor) column(table, column string) (string, bool) {
	cols, ok := d.tables[strings.ToLower(table)]
	if !ok {
		return "", false
	}
	name, ok := cols[strings.ToLower(column)]
	return name, ok
}

// FirstColumn returns the live name of the first candidate present on table.
func (d *Descriptor) FirstColumn(table string, candidates ...string) (string, bool) {
	for _, c := range candidates {
		if name, ok := d.column(table, c); ok {
			return name, true
		}
	}
	return "", false
}

// SelectExpr yields `<qualifier>."col" AS alias` for the first present
// candidate, or `NULL AS alias` when none exists. qualifier may be empty.
func (d *Descriptor) SelectExpr(table, qualifier, alias string, candidates ...string) string {
	name, ok := d.FirstColumn(table, candidates...)
	if !ok {
		return "NULL AS " + alias
	}
	return Column(qualifier, name) + " AS " + alias
}

// Column quotes a column reference for raw SQL.
func Column(qualifier, name string) string {
	if qualifier == "" {
		return pq.QuoteIdentifier(name)
	}
	return qualifier + "." + pq.QuoteIdentifier(name)
}
