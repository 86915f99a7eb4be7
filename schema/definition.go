package schema

import (
	"gorm.io/activeobjects/types"
)

// EntityDef static description of one entity type
type EntityDef struct {
	Name string `yaml:"name"`
	// Table overrides the table name derived by the naming strategy
	Table string `yaml:"table,omitempty"`
	// PrimaryKey field name, defaults to ID
	PrimaryKey string `yaml:"primaryKey,omitempty"`
	// PrimaryKeyType defaults to int, int keys auto increment
	PrimaryKeyType types.Kind `yaml:"primaryKeyType,omitempty"`
	// Polymorphic supertypes have no table, references to them store the subtype in a type column
	Polymorphic bool `yaml:"polymorphic,omitempty"`
	// Extends names the polymorphic supertype of this entity
	Extends string     `yaml:"extends,omitempty"`
	Fields  []FieldDef `yaml:"fields"`
}

// FieldDef one field or relation of an entity.
//
// Exactly one of Type, References, HasMany and ManyToMany is set. ForeignKey names the field
// that points back to the owner: on the target for HasMany, on the Through entity for ManyToMany.
// TargetKey names the field of the Through entity that points to the target.
type FieldDef struct {
	Name       string     `yaml:"name"`
	Column     string     `yaml:"column,omitempty"`
	Type       types.Kind `yaml:"type,omitempty"`
	References string     `yaml:"references,omitempty"`
	HasMany    string     `yaml:"hasMany,omitempty"`
	ManyToMany string     `yaml:"manyToMany,omitempty"`
	Through    string     `yaml:"through,omitempty"`
	ForeignKey string     `yaml:"foreignKey,omitempty"`
	TargetKey  string     `yaml:"targetKey,omitempty"`
	Where      string     `yaml:"where,omitempty"`

	NotNull       bool    `yaml:"notNull,omitempty"`
	Unique        bool    `yaml:"unique,omitempty"`
	Index         bool    `yaml:"index,omitempty"`
	AutoIncrement bool    `yaml:"autoIncrement,omitempty"`
	Default       *string `yaml:"default,omitempty"`
	OnUpdate      string  `yaml:"onUpdate,omitempty"`
	Size          int     `yaml:"size,omitempty"`
	Precision     int     `yaml:"precision,omitempty"`
	Scale         int     `yaml:"scale,omitempty"`
}

// Default returns a pointer to literal, for FieldDef.Default
func Default(literal string) *string {
	return &literal
}
