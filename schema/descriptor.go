package schema

import (
	"gorm.io/activeobjects/cache"
)

// Descriptor resolved metadata of one entity type, built once by a Registry
type Descriptor struct {
	Name        string
	Table       string
	PrimaryKey  *Field
	Polymorphic bool
	// Extends polymorphic supertype, empty when none
	Extends string
	// Fields in declaration order, the primary key first
	Fields         []*Field
	FieldsByName   map[string]*Field
	FieldsByColumn map[string]*Field
}

// LookUpField finds a field by name or column, case-insensitively
func (d *Descriptor) LookUpField(name string) *Field {
	key := cache.FoldKey(name)
	if field, ok := d.FieldsByName[key]; ok {
		return field
	}
	if field, ok := d.FieldsByColumn[key]; ok {
		return field
	}
	return nil
}

// ColumnFields fields stored in the entity's table, in order
func (d *Descriptor) ColumnFields() []*Field {
	fields := make([]*Field, 0, len(d.Fields))
	for _, f := range d.Fields {
		if f.HasColumn() {
			fields = append(fields, f)
		}
	}
	return fields
}

func (d *Descriptor) String() string {
	return d.Name
}

func (d *Descriptor) addField(f *Field) {
	f.Descriptor = d
	d.Fields = append(d.Fields, f)
	d.FieldsByName[cache.FoldKey(f.Name)] = f
	if f.Column != "" {
		d.FieldsByColumn[cache.FoldKey(f.Column)] = f
	}
}
