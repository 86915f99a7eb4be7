package activeobjects

import (
	"context"

	"gorm.io/activeobjects/cache"
	"gorm.io/activeobjects/schema"
)

// accessor reads and writes one kind of field
type accessor struct {
	get func(ctx context.Context, h *Handle, f *schema.Field) (interface{}, error)
	set func(h *Handle, f *schema.Field, value interface{}) error
}

var accessors = map[schema.FieldKind]accessor{
	schema.Scalar: {
		get: func(ctx context.Context, h *Handle, f *schema.Field) (interface{}, error) {
			return h.load(ctx, f)
		},
		set: setScalar,
	},
	schema.Reference: {
		get: getReference,
		set: setReference,
	},
	schema.Polymorphic: {
		get: getReference,
		set: setReference,
	},
	schema.OneToMany: {
		get: getRelated,
		set: func(h *Handle, f *schema.Field, _ interface{}) error {
			return invalidValue(h.descriptor.Name, f.Name, "one-to-many fields change through %s.%s", f.Target, f.ForeignKey.Name)
		},
	},
	schema.ManyToMany: {
		get: getRelated,
		set: func(h *Handle, f *schema.Field, _ interface{}) error {
			return invalidValue(h.descriptor.Name, f.Name, "many-to-many fields are replaced with SetRelated")
		},
	},
}

func setScalar(h *Handle, f *schema.Field, value interface{}) error {
	if f.PrimaryKey {
		return invalidValue(h.descriptor.Name, f.Name, "primary key can't change")
	}
	v, err := h.manager.fieldValue(f, value)
	if err != nil {
		return err
	}
	h.cache.Set(f.Name, v)
	return nil
}

func getReference(ctx context.Context, h *Handle, f *schema.Field) (interface{}, error) {
	target, err := h.reference(ctx, f)
	if err != nil || target == nil {
		return nil, err
	}
	return target, nil
}

// setReference relation caches of the target and of the owner type depend on the reference, both
// are flushed on save
func setReference(h *Handle, f *schema.Field, value interface{}) error {
	v, err := h.manager.fieldValue(f, value)
	if err != nil {
		return err
	}
	h.cache.Set(f.Name, v)
	h.cache.MarkFlush(f.Target)
	h.cache.MarkFlush(h.descriptor.Name)
	if identity, ok := v.(cache.Identity); ok {
		h.cache.MarkFlush(identity.Type)
	}
	return nil
}

func getRelated(ctx context.Context, h *Handle, f *schema.Field) (interface{}, error) {
	return h.related(ctx, f)
}

// isA reports whether d is entity or one of its subtypes
func isA(d *schema.Descriptor, entity string) bool {
	return d.Name == entity || (d.Extends != "" && d.Extends == entity)
}

// fieldValue converts a caller value to the value cached for f: the semantic value of a scalar,
// the target key of a reference, the target identity of a polymorphic reference
func (em *EntityManager) fieldValue(f *schema.Field, value interface{}) (interface{}, error) {
	owner := f.Descriptor.Name
	if value == nil {
		return nil, nil
	}

	switch f.Kind {
	case schema.Scalar:
		v, err := f.Type.FromDatabase(value)
		if err != nil {
			return nil, invalidValue(owner, f.Name, "%v", err)
		}
		return v, nil

	case schema.Reference:
		target, ok := value.(*Handle)
		if !ok {
			v, err := f.Type.FromDatabase(value)
			if err != nil {
				return nil, invalidValue(owner, f.Name, "%v", err)
			}
			return v, nil
		}
		if target == nil {
			return nil, nil
		}
		if !isA(target.descriptor, f.Target) {
			return nil, invalidValue(owner, f.Name, "%s is not a %s", target, f.Target)
		}
		return target.identity.ID, nil

	case schema.Polymorphic:
		target, ok := value.(*Handle)
		if !ok {
			return nil, invalidValue(owner, f.Name, "polymorphic references take a handle, got %T", value)
		}
		if target == nil {
			return nil, nil
		}
		if !isA(target.descriptor, f.Target) {
			return nil, invalidValue(owner, f.Name, "%s is not a %s", target, f.Target)
		}
		return target.identity, nil
	}
	return nil, invalidValue(owner, f.Name, "%s fields have no value", f.Kind)
}

func columnsOf(f *schema.Field) []string {
	if f.Kind == schema.Polymorphic {
		return []string{f.Column, f.TypeColumn}
	}
	return []string{f.Column}
}

// columnValues the database values of the columns of f for a cached value
func (em *EntityManager) columnValues(f *schema.Field, value interface{}) ([]string, []interface{}, error) {
	columns := columnsOf(f)
	if value == nil {
		return columns, make([]interface{}, len(columns)), nil
	}

	if f.Kind == schema.Polymorphic {
		identity := value.(cache.Identity)
		id, err := f.Type.ToDatabase(identity.ID)
		if err != nil {
			return nil, nil, invalidValue(f.Descriptor.Name, f.Name, "%v", err)
		}
		return columns, []interface{}{id, em.TypeMapper.TypeFlag(identity.Type)}, nil
	}

	v, err := f.Type.ToDatabase(value)
	if err != nil {
		return nil, nil, invalidValue(f.Descriptor.Name, f.Name, "%v", err)
	}
	return columns, []interface{}{v}, nil
}

// decodeField converts the raw column values of f read from the database
func (em *EntityManager) decodeField(f *schema.Field, raw []interface{}) (interface{}, error) {
	v, err := f.Type.FromDatabase(raw[0])
	if err != nil {
		return nil, invalidValue(f.Descriptor.Name, f.Name, "%v", err)
	}
	if f.Kind != schema.Polymorphic || v == nil {
		return v, nil
	}

	var flag string
	switch t := raw[1].(type) {
	case string:
		flag = t
	case []byte:
		flag = string(t)
	default:
		return nil, invalidValue(f.Descriptor.Name, f.Name, "missing type flag for key %v", v)
	}
	target, err := em.tableDescriptor(em.TypeMapper.EntityFor(flag))
	if err != nil {
		return nil, invalidValue(f.Descriptor.Name, f.Name, "type flag %q: %v", flag, err)
	}
	return cache.Identity{Type: target.Name, ID: v}, nil
}
