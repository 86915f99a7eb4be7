package schema

import (
	"gorm.io/activeobjects/types"
)

// FieldKind tags the variant of a Field
type FieldKind int

const (
	// Scalar a plain column
	Scalar FieldKind = iota
	// Reference many-to-one, stored as a foreign key column
	Reference
	// Polymorphic many-to-one to a polymorphic supertype, stored as an id and a type column
	Polymorphic
	// OneToMany entities of the target whose ForeignKey field references the owner
	OneToMany
	// ManyToMany targets joined through the rows of a join entity
	ManyToMany
)

func (k FieldKind) String() string {
	switch k {
	case Scalar:
		return "scalar"
	case Reference:
		return "reference"
	case Polymorphic:
		return "polymorphic"
	case OneToMany:
		return "one-to-many"
	case ManyToMany:
		return "many-to-many"
	}
	return "unknown"
}

// Field a resolved field or relation of a Descriptor
type Field struct {
	Name       string
	Kind       FieldKind
	Descriptor *Descriptor

	// Column and Type are set for Scalar, Reference and Polymorphic fields
	Column string
	Type   types.Type
	// TypeColumn holds the subtype flag of a Polymorphic field
	TypeColumn string

	PrimaryKey    bool
	NotNull       bool
	Unique        bool
	Index         bool
	AutoIncrement bool
	// Default raw SQL literal, DefaultValue its parsed semantic value
	Default      *string
	DefaultValue interface{}
	OnUpdate     types.Expr
	Size         int
	Precision    int
	Scale        int

	// Target referenced or related entity
	Target string
	// Through join entity of a ManyToMany field
	Through string
	// ForeignKey field pointing back to the owner, on Target for OneToMany or on Through for ManyToMany
	ForeignKey *Field
	// TargetKey field of Through pointing to Target
	TargetKey *Field
	// Where extra criteria of a to-many query
	Where string
}

// HasColumn fields stored in the entity's own table
func (f *Field) HasColumn() bool {
	return f.Kind == Scalar || f.Kind == Reference || f.Kind == Polymorphic
}

// IsRelation fields resolving to other entities
func (f *Field) IsRelation() bool {
	return f.Kind != Scalar
}
