package schema

import (
	"strings"

	"gorm.io/activeobjects/types"
)

// Table description of one table, either derived from descriptors or introspected
type Table struct {
	Name        string
	Entity      string
	Columns     []*Column
	ForeignKeys []*ForeignKey
	Indexes     []*Index
}

// Column description of one column
type Column struct {
	Name string
	Kind types.Kind
	// DatabaseType vendor type name, set by introspection
	DatabaseType  string
	Size          int
	Precision     int
	Scale         int
	NotNull       bool
	Unique        bool
	PrimaryKey    bool
	AutoIncrement bool
	// Default raw SQL literal, DefaultValue its parsed value
	Default      *string
	DefaultValue interface{}
	OnUpdate     types.Expr
}

type ForeignKey struct {
	Name             string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// Matches compares column and target, constraint names are ignored as SQLite doesn't keep them
func (fk *ForeignKey) Matches(other *ForeignKey) bool {
	return strings.EqualFold(fk.Column, other.Column) &&
		strings.EqualFold(fk.ReferencedTable, other.ReferencedTable) &&
		strings.EqualFold(fk.ReferencedColumn, other.ReferencedColumn)
}

type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

func (t *Table) LookUpColumn(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

func (t *Table) LookUpIndex(name string) *Index {
	for _, idx := range t.Indexes {
		if strings.EqualFold(idx.Name, name) {
			return idx
		}
	}
	return nil
}

func (t *Table) PrimaryKey() *Column {
	for _, c := range t.Columns {
		if c.PrimaryKey {
			return c
		}
	}
	return nil
}

// ForeignKeyFor the foreign key defined on column
func (t *Table) ForeignKeyFor(column string) *ForeignKey {
	for _, fk := range t.ForeignKeys {
		if strings.EqualFold(fk.Column, column) {
			return fk
		}
	}
	return nil
}

// Tables describes the tables of every registered entity, referenced tables first.
// Polymorphic supertypes have no table
func (r *Registry) Tables() ([]*Table, error) {
	g, err := ParseDependencies(r)
	if err != nil {
		return nil, err
	}
	ordered, err := g.Order()
	if err != nil {
		return nil, err
	}

	tables := make([]*Table, 0, len(ordered))
	for _, d := range ordered {
		if d.Polymorphic {
			continue
		}
		table, err := r.Table(d)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

// Table describes the table of d
func (r *Registry) Table(d *Descriptor) (*Table, error) {
	if d.Polymorphic {
		return nil, configErr(d.Name, "", "polymorphic supertypes have no table")
	}

	table := &Table{Name: d.Table, Entity: d.Name}
	for _, f := range d.ColumnFields() {
		column := &Column{
			Name:          f.Column,
			Kind:          f.Type.Kind(),
			Size:          f.Size,
			Precision:     f.Precision,
			Scale:         f.Scale,
			NotNull:       f.NotNull,
			Unique:        f.Unique,
			PrimaryKey:    f.PrimaryKey,
			AutoIncrement: f.AutoIncrement,
			Default:       f.Default,
			DefaultValue:  f.DefaultValue,
			OnUpdate:      f.OnUpdate,
		}
		table.Columns = append(table.Columns, column)

		switch f.Kind {
		case Reference:
			target, ok := r.Lookup(f.Target)
			if !ok {
				return nil, configErr(d.Name, f.Name, "unknown referenced entity %s", f.Target)
			}
			table.ForeignKeys = append(table.ForeignKeys, &ForeignKey{
				Name:             r.namer.ForeignKeyName(table.Name, f.Column),
				Column:           f.Column,
				ReferencedTable:  target.Table,
				ReferencedColumn: target.PrimaryKey.Column,
			})
		case Polymorphic:
			table.Columns = append(table.Columns, &Column{
				Name:    f.TypeColumn,
				Kind:    types.String,
				Size:    255,
				NotNull: f.NotNull,
			})
		}

		if f.Unique {
			table.Indexes = append(table.Indexes, &Index{Name: r.namer.UniqueName(table.Name, f.Column), Columns: []string{f.Column}, Unique: true})
		} else if f.Index {
			table.Indexes = append(table.Indexes, &Index{Name: r.namer.IndexName(table.Name, f.Column), Columns: []string{f.Column}})
		}
	}
	return table, nil
}
