package migrator

import (
	"strings"

	"gorm.io/activeobjects/cache"
	"gorm.io/activeobjects/dialect"
	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

// Options destructive changes are only planned when asked for
type Options struct {
	DropTables      bool
	DropColumns     bool
	DropForeignKeys bool
}

// managedIndexPrefixes indexes named by the naming strategy, others are left alone
var managedIndexPrefixes = []string{"idx_", "uni_"}

// Diff compares the tables derived from descriptors with the live schema and returns the unsorted
// actions turning live into parsed. Table and column names compare case-insensitively
func Diff(parsed, live []*schema.Table, d dialect.Dialect, registry *types.Registry, opts Options) []Action {
	var (
		actions []Action
		liveBy  = make(map[string]*schema.Table, len(live))
		kept    = make(map[string]bool, len(parsed))
	)
	for _, table := range live {
		liveBy[cache.FoldKey(table.Name)] = table
	}

	for _, table := range parsed {
		kept[cache.FoldKey(table.Name)] = true
		current, ok := liveBy[cache.FoldKey(table.Name)]
		if !ok {
			actions = append(actions, Action{Type: CreateTable, Table: table})
			for _, idx := range table.Indexes {
				actions = append(actions, Action{Type: CreateIndex, Table: table, Index: idx})
			}
			if d.SupportsAlterForeignKey() {
				for _, fk := range table.ForeignKeys {
					actions = append(actions, Action{Type: AddForeignKey, Table: table, ForeignKey: fk})
				}
			}
			continue
		}

		actions = append(actions, diffColumns(table, current, d, registry, opts)...)
		actions = append(actions, diffIndexes(table, current)...)
		if d.SupportsAlterForeignKey() {
			actions = append(actions, diffForeignKeys(table, current, opts)...)
		}
	}

	if opts.DropTables {
		dropped := map[string]bool{}
		for _, table := range live {
			if !kept[cache.FoldKey(table.Name)] {
				dropped[cache.FoldKey(table.Name)] = true
				actions = append(actions, Action{Type: DropTable, Table: table})
			}
		}

		// kept tables must stop referencing dropped ones before they go
		if len(dropped) > 0 && d.SupportsAlterForeignKey() {
			for _, table := range live {
				if dropped[cache.FoldKey(table.Name)] {
					continue
				}
				for _, fk := range table.ForeignKeys {
					if dropped[cache.FoldKey(fk.ReferencedTable)] && !hasAction(actions, DropForeignKey, table, fk) {
						actions = append(actions, Action{Type: DropForeignKey, Table: table, ForeignKey: fk})
					}
				}
			}
		}
	}
	return actions
}

func diffColumns(table, current *schema.Table, d dialect.Dialect, registry *types.Registry, opts Options) []Action {
	var actions []Action
	for _, column := range table.Columns {
		existing := current.LookUpColumn(column.Name)
		if existing == nil {
			actions = append(actions, Action{Type: AddColumn, Table: table, Column: column, ForeignKey: table.ForeignKeyFor(column.Name)})
		} else if columnChanged(column, existing, d, registry) {
			actions = append(actions, Action{Type: AlterColumn, Table: table, Column: column})
		}
	}

	if opts.DropColumns {
		for _, column := range current.Columns {
			if table.LookUpColumn(column.Name) == nil {
				actions = append(actions, Action{Type: DropColumn, Table: current, Column: column})
			}
		}
	}
	return actions
}

// columnChanged compares semantic kind, nullability and default. Sizes and on-update clauses are
// not compared as not every vendor reports them
func columnChanged(parsed, live *schema.Column, d dialect.Dialect, registry *types.Registry) bool {
	if registry.TypeForDatabase(d.DataTypeOf(parsed)).Kind() != live.Kind {
		return true
	}
	if !parsed.PrimaryKey && parsed.NotNull != live.NotNull {
		return true
	}
	if parsed.PrimaryKey || parsed.AutoIncrement {
		return false
	}
	return !sameDefault(parsed, live, registry)
}

func sameDefault(parsed, live *schema.Column, registry *types.Registry) bool {
	var want interface{}
	if parsed.Default != nil {
		want = parsed.DefaultValue
	}

	t, err := registry.TypeFor(parsed.Kind)
	if err != nil {
		if parsed.Default == nil || live.Default == nil {
			return parsed.Default == nil && live.Default == nil
		}
		return strings.EqualFold(types.TrimLiteral(*parsed.Default), types.TrimLiteral(*live.Default))
	}

	var got interface{}
	if live.Default != nil {
		if got, err = t.ParseDefault(*live.Default); err != nil {
			return false
		}
	}
	return t.ValuesEqual(want, got)
}

func diffIndexes(table, current *schema.Table) []Action {
	var actions []Action
	for _, idx := range table.Indexes {
		existing := current.LookUpIndex(idx.Name)
		switch {
		case existing == nil:
			actions = append(actions, Action{Type: CreateIndex, Table: table, Index: idx})
		case existing.Unique != idx.Unique || !sameColumns(existing.Columns, idx.Columns):
			actions = append(actions,
				Action{Type: DropIndex, Table: current, Index: existing},
				Action{Type: CreateIndex, Table: table, Index: idx})
		}
	}

	for _, idx := range current.Indexes {
		if table.LookUpIndex(idx.Name) == nil && managedIndex(idx.Name) {
			actions = append(actions, Action{Type: DropIndex, Table: current, Index: idx})
		}
	}
	return actions
}

func managedIndex(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range managedIndexPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

func diffForeignKeys(table, current *schema.Table, opts Options) []Action {
	var actions []Action
	for _, fk := range table.ForeignKeys {
		if !containsForeignKey(current.ForeignKeys, fk) {
			actions = append(actions, Action{Type: AddForeignKey, Table: table, ForeignKey: fk})
		}
	}

	if opts.DropForeignKeys {
		for _, fk := range current.ForeignKeys {
			if !containsForeignKey(table.ForeignKeys, fk) {
				actions = append(actions, Action{Type: DropForeignKey, Table: current, ForeignKey: fk})
			}
		}
	}
	return actions
}

func containsForeignKey(fks []*schema.ForeignKey, fk *schema.ForeignKey) bool {
	for _, other := range fks {
		if other.Matches(fk) {
			return true
		}
	}
	return false
}

func hasAction(actions []Action, typ ActionType, table *schema.Table, fk *schema.ForeignKey) bool {
	for _, a := range actions {
		if a.Type == typ && strings.EqualFold(a.Table.Name, table.Name) && a.ForeignKey != nil && a.ForeignKey.Matches(fk) {
			return true
		}
	}
	return false
}
