package schema

import (
	"errors"
	"strings"
	"sync"

	"gorm.io/activeobjects/cache"
	"gorm.io/activeobjects/types"
)

// DefaultPrimaryKey primary key field name used when an EntityDef names none
const DefaultPrimaryKey = "ID"

// Registry builds and holds the descriptors of one manager
type Registry struct {
	mu          sync.RWMutex
	namer       Namer
	types       *types.Registry
	mapper      TypeMapper
	descriptors map[string]*Descriptor
	order       []*Descriptor
}

// NewRegistry creates an empty registry
func NewRegistry(namer Namer, typeRegistry *types.Registry, mapper TypeMapper) *Registry {
	if namer == nil {
		namer = NamingStrategy{}
	}
	if typeRegistry == nil {
		typeRegistry = types.NewRegistry()
	}
	if mapper == nil {
		mapper = NewTypeMapper(nil)
	}
	return &Registry{namer: namer, types: typeRegistry, mapper: mapper, descriptors: map[string]*Descriptor{}}
}

func (r *Registry) Namer() Namer           { return r.namer }
func (r *Registry) Types() *types.Registry { return r.types }
func (r *Registry) TypeMapper() TypeMapper { return r.mapper }

// Lookup finds a descriptor by entity name, case-insensitively
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[cache.FoldKey(name)]
	return d, ok
}

// Descriptors in registration order
func (r *Registry) Descriptors() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Descriptor(nil), r.order...)
}

// Subtypes descriptors extending the polymorphic supertype
func (r *Registry) Subtypes(supertype string) []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var subtypes []*Descriptor
	for _, d := range r.order {
		if strings.EqualFold(d.Extends, supertype) {
			subtypes = append(subtypes, d)
		}
	}
	return subtypes
}

// Register builds descriptors for defs. Either every definition is registered or none is, the
// returned error is a *ConfigurationError
func (r *Registry) Register(defs ...EntityDef) ([]*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := &builder{Registry: r, pending: map[string]*Descriptor{}}
	descriptors := make([]*Descriptor, 0, len(defs))
	for _, def := range defs {
		d, err := b.newDescriptor(def)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}

	for i, def := range defs {
		if err := b.resolveReferences(descriptors[i], def); err != nil {
			return nil, err
		}
	}
	for i, def := range defs {
		if err := b.resolveCollections(descriptors[i], def); err != nil {
			return nil, err
		}
	}

	for _, d := range descriptors {
		r.descriptors[cache.FoldKey(d.Name)] = d
		r.order = append(r.order, d)
	}
	return descriptors, nil
}

type builder struct {
	*Registry
	pending map[string]*Descriptor
}

func (b *builder) lookup(name string) *Descriptor {
	key := cache.FoldKey(name)
	if d, ok := b.pending[key]; ok {
		return d
	}
	return b.descriptors[key]
}

func (b *builder) newDescriptor(def EntityDef) (*Descriptor, error) {
	if def.Name == "" {
		return nil, &ConfigurationError{Err: errors.New("entity without name")}
	}
	if b.lookup(def.Name) != nil {
		return nil, configErr(def.Name, "", "entity already registered")
	}

	d := &Descriptor{
		Name:           def.Name,
		Table:          def.Table,
		Polymorphic:    def.Polymorphic,
		Extends:        def.Extends,
		FieldsByName:   map[string]*Field{},
		FieldsByColumn: map[string]*Field{},
	}
	if d.Table == "" {
		d.Table = b.namer.TableName(def.Name)
	}
	b.pending[cache.FoldKey(def.Name)] = d

	pkName := def.PrimaryKey
	if pkName == "" {
		pkName = DefaultPrimaryKey
	}
	pkDef := FieldDef{Name: pkName, Type: def.PrimaryKeyType}
	explicitPK := false
	for _, fd := range def.Fields {
		if strings.EqualFold(fd.Name, pkName) {
			pkDef, explicitPK = fd, true
			if pkDef.Type == "" {
				pkDef.Type = def.PrimaryKeyType
			}
		}
	}
	if pkDef.Type == "" {
		pkDef.Type = types.Int
	}
	if !explicitPK && pkDef.Type == types.Int {
		pkDef.AutoIncrement = true
	}
	if pkDef.References != "" || pkDef.HasMany != "" || pkDef.ManyToMany != "" {
		return nil, configErr(def.Name, pkName, "primary key can't be a relation")
	}

	pk, err := b.scalarField(d, pkDef)
	if err != nil {
		return nil, err
	}
	pk.PrimaryKey, pk.NotNull = true, true
	d.PrimaryKey = pk
	d.addField(pk)

	seen := map[string]bool{cache.FoldKey(pkName): true}
	for _, fd := range def.Fields {
		if strings.EqualFold(fd.Name, pkName) {
			continue
		}
		if fd.Name == "" {
			return nil, configErr(def.Name, "", "field without name")
		}
		if seen[cache.FoldKey(fd.Name)] {
			return nil, configErr(def.Name, fd.Name, "duplicated field")
		}
		seen[cache.FoldKey(fd.Name)] = true

		var kinds []string
		for kind, set := range map[string]bool{"type": fd.Type != "", "references": fd.References != "",
			"hasMany": fd.HasMany != "", "manyToMany": fd.ManyToMany != ""} {
			if set {
				kinds = append(kinds, kind)
			}
		}
		if len(kinds) != 1 {
			return nil, configErr(def.Name, fd.Name, "exactly one of type, references, hasMany and manyToMany must be set")
		}
		if fd.Through != "" && fd.ManyToMany == "" {
			return nil, configErr(def.Name, fd.Name, "through is only valid on a many-to-many field")
		}

		if fd.Type == "" {
			// relations are resolved once every pending descriptor exists
			continue
		}

		f, err := b.scalarField(d, fd)
		if err != nil {
			return nil, err
		}
		if err := b.addColumnField(d, f); err != nil {
			return nil, err
		}
	}

	if d.Polymorphic && d.Extends != "" {
		return nil, configErr(def.Name, "", "a polymorphic supertype can't extend another entity")
	}
	return d, nil
}

func (b *builder) scalarField(d *Descriptor, fd FieldDef) (*Field, error) {
	t, err := b.types.TypeFor(fd.Type)
	if err != nil {
		return nil, &ConfigurationError{Entity: d.Name, Field: fd.Name, Err: err}
	}

	f := &Field{
		Name:          fd.Name,
		Kind:          Scalar,
		Column:        fd.Column,
		Type:          t,
		NotNull:       fd.NotNull,
		Unique:        fd.Unique,
		Index:         fd.Index,
		AutoIncrement: fd.AutoIncrement,
		OnUpdate:      types.Expr(fd.OnUpdate),
		Size:          fd.Size,
		Precision:     fd.Precision,
		Scale:         fd.Scale,
	}
	if f.Column == "" {
		f.Column = b.namer.ColumnName(d.Table, fd.Name)
	}
	if fd.AutoIncrement && t.Kind() != types.Int {
		return nil, configErr(d.Name, fd.Name, "auto increment requires an int field, got %s", t.Kind())
	}
	if fd.Default != nil {
		value, err := t.ParseDefault(*fd.Default)
		if err != nil {
			return nil, &ConfigurationError{Entity: d.Name, Field: fd.Name, Err: err}
		}
		f.Default, f.DefaultValue = fd.Default, value
	}
	return f, nil
}

func (b *builder) addColumnField(d *Descriptor, f *Field) error {
	for _, column := range []string{f.Column, f.TypeColumn} {
		if column == "" {
			continue
		}
		if other, ok := d.FieldsByColumn[cache.FoldKey(column)]; ok {
			return configErr(d.Name, f.Name, "column %s already used by field %s", column, other.Name)
		}
	}
	d.addField(f)
	if f.TypeColumn != "" {
		d.FieldsByColumn[cache.FoldKey(f.TypeColumn)] = f
	}
	return nil
}

func (b *builder) resolveReferences(d *Descriptor, def EntityDef) error {
	if d.Extends != "" {
		super := b.lookup(d.Extends)
		if super == nil {
			return configErr(d.Name, "", "unknown supertype %s", d.Extends)
		}
		if !super.Polymorphic {
			return configErr(d.Name, "", "supertype %s is not polymorphic", super.Name)
		}
		if super.PrimaryKey.Type.Kind() != d.PrimaryKey.Type.Kind() {
			return configErr(d.Name, "", "primary key type %s doesn't match supertype %s (%s)",
				d.PrimaryKey.Type.Kind(), super.Name, super.PrimaryKey.Type.Kind())
		}
		d.Extends = super.Name
	}

	for _, fd := range def.Fields {
		if fd.References == "" || strings.EqualFold(fd.Name, d.PrimaryKey.Name) {
			continue
		}

		target := b.lookup(fd.References)
		if target == nil {
			return configErr(d.Name, fd.Name, "unknown referenced entity %s", fd.References)
		}

		f := &Field{
			Name:      fd.Name,
			Kind:      Reference,
			Column:    fd.Column,
			Type:      target.PrimaryKey.Type,
			Target:    target.Name,
			NotNull:   fd.NotNull,
			Unique:    fd.Unique,
			Index:     fd.Index,
			OnUpdate:  types.Expr(fd.OnUpdate),
			Size:      fd.Size,
			Precision: fd.Precision,
			Scale:     fd.Scale,
		}
		if f.Column == "" {
			f.Column = b.namer.ReferenceColumnName(d.Table, fd.Name)
		}
		if target.Polymorphic {
			f.Kind = Polymorphic
			f.TypeColumn = b.namer.PolymorphicTypeColumnName(d.Table, f.Column)
		}
		if fd.Default != nil {
			value, err := f.Type.ParseDefault(*fd.Default)
			if err != nil {
				return &ConfigurationError{Entity: d.Name, Field: fd.Name, Err: err}
			}
			f.Default, f.DefaultValue = fd.Default, value
		}
		if err := b.addColumnField(d, f); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) resolveCollections(d *Descriptor, def EntityDef) error {
	for _, fd := range def.Fields {
		switch {
		case fd.HasMany != "":
			target := b.lookup(fd.HasMany)
			if target == nil {
				return configErr(d.Name, fd.Name, "unknown related entity %s", fd.HasMany)
			}
			if target.Polymorphic {
				return configErr(d.Name, fd.Name, "one-to-many target %s is a polymorphic supertype", target.Name)
			}
			fk, err := b.backReference(d, fd, target, fd.ForeignKey, d, nil)
			if err != nil {
				return err
			}
			d.addField(&Field{Name: fd.Name, Kind: OneToMany, Target: target.Name, ForeignKey: fk, Where: fd.Where})

		case fd.ManyToMany != "":
			target := b.lookup(fd.ManyToMany)
			if target == nil {
				return configErr(d.Name, fd.Name, "unknown related entity %s", fd.ManyToMany)
			}
			if fd.Through == "" {
				return configErr(d.Name, fd.Name, "many-to-many field requires a through entity")
			}
			through := b.lookup(fd.Through)
			if through == nil {
				return configErr(d.Name, fd.Name, "unknown through entity %s", fd.Through)
			}
			if through.Polymorphic {
				return configErr(d.Name, fd.Name, "through entity %s is a polymorphic supertype", through.Name)
			}
			fk, err := b.backReference(d, fd, through, fd.ForeignKey, d, nil)
			if err != nil {
				return err
			}
			tk, err := b.backReference(d, fd, through, fd.TargetKey, target, fk)
			if err != nil {
				return err
			}
			d.addField(&Field{Name: fd.Name, Kind: ManyToMany, Target: target.Name, Through: through.Name,
				ForeignKey: fk, TargetKey: tk, Where: fd.Where})
		}
	}
	return nil
}

// backReference finds the reference field of holder pointing to pointee, or its supertype
func (b *builder) backReference(d *Descriptor, fd FieldDef, holder *Descriptor, name string, pointee *Descriptor, exclude *Field) (*Field, error) {
	matches := func(f *Field) bool {
		if f == exclude || (f.Kind != Reference && f.Kind != Polymorphic) {
			return false
		}
		return strings.EqualFold(f.Target, pointee.Name) || (pointee.Extends != "" && strings.EqualFold(f.Target, pointee.Extends))
	}

	if name != "" {
		f := holder.LookUpField(name)
		if f == nil || !matches(f) {
			return nil, configErr(d.Name, fd.Name, "%s.%s is not a reference to %s", holder.Name, name, pointee.Name)
		}
		return f, nil
	}

	var found *Field
	for _, f := range holder.Fields {
		if matches(f) {
			if found != nil {
				return nil, configErr(d.Name, fd.Name, "%s has several references to %s, name one explicitly", holder.Name, pointee.Name)
			}
			found = f
		}
	}
	if found == nil {
		return nil, configErr(d.Name, fd.Name, "%s has no reference to %s", holder.Name, pointee.Name)
	}
	return found, nil
}
