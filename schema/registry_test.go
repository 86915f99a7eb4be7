package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/activeobjects/types"
)

func newRegistry() *Registry {
	return NewRegistry(NamingStrategy{}, types.NewRegistry(), nil)
}

var peopleDefs = []EntityDef{
	{Name: "Person", Fields: []FieldDef{
		{Name: "Name", Type: types.String, NotNull: true, Size: 120},
		{Name: "Age", Type: types.Int, Default: Default("0")},
		{Name: "Pens", HasMany: "Pen"},
		{Name: "Families", ManyToMany: "Family", Through: "PersonFamily"},
	}},
	{Name: "Pen", Fields: []FieldDef{
		{Name: "Ink", Type: types.Float},
		{Name: "Deleted", Type: types.Bool, Default: Default("false")},
		{Name: "Person", References: "Person", Index: true},
	}},
	{Name: "Family", Fields: []FieldDef{
		{Name: "Name", Type: types.String, Unique: true},
	}},
	{Name: "PersonFamily", Fields: []FieldDef{
		{Name: "Person", References: "Person"},
		{Name: "Family", References: "Family"},
	}},
}

func TestRegistry_Register(t *testing.T) {
	r := newRegistry()
	descriptors, err := r.Register(peopleDefs...)
	require.NoError(t, err)
	require.Len(t, descriptors, 4)

	person, ok := r.Lookup("person")
	require.True(t, ok)
	assert.Equal(t, "people", person.Table)
	assert.Equal(t, "ID", person.PrimaryKey.Name)
	assert.Equal(t, types.Int, person.PrimaryKey.Type.Kind())
	assert.True(t, person.PrimaryKey.AutoIncrement)

	age := person.LookUpField("AGE")
	require.NotNil(t, age)
	assert.Equal(t, Scalar, age.Kind)
	assert.Equal(t, int64(0), age.DefaultValue)

	pens := person.LookUpField("pens")
	require.NotNil(t, pens)
	assert.Equal(t, OneToMany, pens.Kind)
	assert.Equal(t, "Pen", pens.Target)
	assert.Equal(t, "person_id", pens.ForeignKey.Column)

	families := person.LookUpField("Families")
	require.NotNil(t, families)
	assert.Equal(t, ManyToMany, families.Kind)
	assert.Equal(t, "PersonFamily", families.Through)
	assert.Equal(t, "Person", families.ForeignKey.Name)
	assert.Equal(t, "Family", families.TargetKey.Name)

	pen, _ := r.Lookup("Pen")
	ref := pen.LookUpField("person_id")
	require.NotNil(t, ref, "lookup by column")
	assert.Equal(t, Reference, ref.Kind)
	assert.Equal(t, types.Int, ref.Type.Kind())

	assert.Equal(t, []string{"ID", "Name", "Age"}, fieldNames(person.ColumnFields()))
}

func fieldNames(fields []*Field) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func TestRegistry_Polymorphic(t *testing.T) {
	r := newRegistry()
	_, err := r.Register(
		EntityDef{Name: "Book", Polymorphic: true},
		EntityDef{Name: "Hardcover", Extends: "Book", Fields: []FieldDef{{Name: "Title", Type: types.String}}},
		EntityDef{Name: "Paperback", Extends: "Book", Fields: []FieldDef{{Name: "Title", Type: types.String}}},
		EntityDef{Name: "Review", Fields: []FieldDef{{Name: "Book", References: "Book"}}},
		EntityDef{Name: "Author", Fields: []FieldDef{{Name: "Name", Type: types.String}}},
	)
	require.NoError(t, err)

	review, _ := r.Lookup("Review")
	book := review.LookUpField("Book")
	assert.Equal(t, Polymorphic, book.Kind)
	assert.Equal(t, "book_id", book.Column)
	assert.Equal(t, "book_type", book.TypeColumn)
	assert.Equal(t, book, review.LookUpField("book_type"))

	assert.Len(t, r.Subtypes("book"), 2)

	tables, err := r.Tables()
	require.NoError(t, err)
	var names []string
	for _, table := range tables {
		names = append(names, table.Name)
	}
	assert.NotContains(t, names, "books")

	reviews := tables[indexOf(names, "reviews")]
	assert.NotNil(t, reviews.LookUpColumn("book_type"))
	assert.Empty(t, reviews.ForeignKeys, "polymorphic references carry no foreign key")
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func TestRegistry_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		defs []EntityDef
	}{
		{"unmapped type", []EntityDef{{Name: "A", Fields: []FieldDef{{Name: "X", Type: "money"}}}}},
		{"unknown reference", []EntityDef{{Name: "A", Fields: []FieldDef{{Name: "B", References: "B"}}}}},
		{"no kind", []EntityDef{{Name: "A", Fields: []FieldDef{{Name: "X"}}}}},
		{"two kinds", []EntityDef{{Name: "A", Fields: []FieldDef{{Name: "X", Type: types.Int, HasMany: "A"}}}}},
		{"missing back reference", []EntityDef{{Name: "A", Fields: []FieldDef{{Name: "Bs", HasMany: "B"}}}, {Name: "B"}}},
		{"many-to-many without through", []EntityDef{{Name: "A", Fields: []FieldDef{{Name: "Bs", ManyToMany: "B"}}}, {Name: "B"}}},
		{"bad default", []EntityDef{{Name: "A", Fields: []FieldDef{{Name: "X", Type: types.Int, Default: Default("abc")}}}}},
		{"duplicated field", []EntityDef{{Name: "A", Fields: []FieldDef{{Name: "X", Type: types.Int}, {Name: "x", Type: types.String}}}}},
		{"duplicated entity", []EntityDef{{Name: "A"}, {Name: "a"}}},
		{"extends non polymorphic", []EntityDef{{Name: "A"}, {Name: "B", Extends: "A"}}},
		{"auto increment string", []EntityDef{{Name: "A", Fields: []FieldDef{{Name: "X", Type: types.String, AutoIncrement: true}}}}},
		{"ambiguous back reference", []EntityDef{
			{Name: "A", Fields: []FieldDef{{Name: "Bs", HasMany: "B"}}},
			{Name: "B", Fields: []FieldDef{{Name: "First", References: "A"}, {Name: "Second", References: "A"}}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRegistry()
			_, err := r.Register(tt.defs...)
			require.Error(t, err)

			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Empty(t, r.Descriptors(), "registration is all or nothing")
		})
	}
}

func TestRegistry_UnmappedTypeIsWrapped(t *testing.T) {
	_, err := newRegistry().Register(EntityDef{Name: "A", Fields: []FieldDef{{Name: "X", Type: "money"}}})
	assert.ErrorIs(t, err, types.ErrUnmappedType)
}

func TestRegistry_ExplicitKeys(t *testing.T) {
	r := newRegistry()
	_, err := r.Register(
		EntityDef{Name: "Person", PrimaryKey: "Code", PrimaryKeyType: types.UUID, Fields: []FieldDef{
			{Name: "Managers", ManyToMany: "Person", Through: "Management", ForeignKey: "Employee", TargetKey: "Manager"},
		}},
		EntityDef{Name: "Management", Fields: []FieldDef{
			{Name: "Employee", References: "Person"},
			{Name: "Manager", References: "Person"},
		}},
	)
	require.NoError(t, err)

	person, _ := r.Lookup("Person")
	assert.Equal(t, "code", person.PrimaryKey.Column)
	assert.False(t, person.PrimaryKey.AutoIncrement)
	assert.Equal(t, types.UUID, person.PrimaryKey.Type.Kind())

	managers := person.LookUpField("Managers")
	assert.Equal(t, "employee_id", managers.ForeignKey.Column)
	assert.Equal(t, "manager_id", managers.TargetKey.Column)

	management, _ := r.Lookup("Management")
	assert.Equal(t, types.UUID, management.LookUpField("Manager").Type.Kind())
}

func TestRegistry_Table(t *testing.T) {
	r := newRegistry()
	_, err := r.Register(peopleDefs...)
	require.NoError(t, err)

	pen, _ := r.Lookup("Pen")
	table, err := r.Table(pen)
	require.NoError(t, err)

	assert.Equal(t, "pens", table.Name)
	require.Len(t, table.Columns, 4)
	assert.True(t, table.PrimaryKey().AutoIncrement)

	deleted := table.LookUpColumn("deleted")
	assert.Equal(t, types.Bool, deleted.Kind)
	assert.Equal(t, false, deleted.DefaultValue)

	require.Len(t, table.ForeignKeys, 1)
	assert.Equal(t, &ForeignKey{Name: "fk_pens_person_id", Column: "person_id", ReferencedTable: "people", ReferencedColumn: "id"}, table.ForeignKeys[0])
	assert.Equal(t, []*Index{{Name: "idx_pens_person_id", Columns: []string{"person_id"}}}, table.Indexes)

	family, _ := r.Lookup("Family")
	table, err = r.Table(family)
	require.NoError(t, err)
	assert.Equal(t, []*Index{{Name: "uni_families_name", Columns: []string{"name"}, Unique: true}}, table.Indexes)
}
