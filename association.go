package activeobjects

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"gorm.io/activeobjects/cache"
	"gorm.io/activeobjects/dialect"
	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

// Reference reads a many-to-one field, nil when it is unset
func (h *Handle) Reference(ctx context.Context, field string) (*Handle, error) {
	f, err := h.field(field)
	if err != nil {
		return nil, err
	}
	if f.Kind != schema.Reference && f.Kind != schema.Polymorphic {
		return nil, invalidValue(h.descriptor.Name, f.Name, "%s field is not a reference", f.Kind)
	}
	return h.reference(ctx, f)
}

func (h *Handle) reference(ctx context.Context, f *schema.Field) (*Handle, error) {
	v, err := h.load(ctx, f)
	if err != nil || v == nil {
		return nil, err
	}

	if identity, ok := v.(cache.Identity); ok {
		return h.manager.handleFor(identity)
	}
	target, err := h.manager.tableDescriptor(f.Target)
	if err != nil {
		return nil, err
	}
	return h.manager.handle(target, v), nil
}

// Related reads a one-to-many or many-to-many field. Results are served from the relations cache
// until a change of the relating fields, or of the entities of the related type, invalidates them
func (h *Handle) Related(ctx context.Context, field string) ([]*Handle, error) {
	f, err := h.field(field)
	if err != nil {
		return nil, err
	}
	if f.Kind != schema.OneToMany && f.Kind != schema.ManyToMany {
		return nil, invalidValue(h.descriptor.Name, f.Name, "%s field is not a to-many relation", f.Kind)
	}
	return h.related(ctx, f)
}

func (h *Handle) related(ctx context.Context, f *schema.Field) ([]*Handle, error) {
	var (
		em          = h.manager
		throughType string
		fields      = []string{f.ForeignKey.Name}
	)
	if f.Kind == schema.ManyToMany {
		throughType = f.Through
		fields = append(fields, f.TargetKey.Name)
	}

	if identities, ok := em.relations.Get(h.identity, f.Target, throughType, fields); ok {
		return em.handlesFor(identities)
	}

	var (
		through, result []cache.Identity
		err             error
	)
	if f.Kind == schema.ManyToMany {
		through, result, err = h.queryManyToMany(ctx, f)
	} else {
		result, err = h.queryOneToMany(ctx, f)
		through = result
	}
	if err != nil {
		return nil, err
	}

	em.relations.Put(h.identity, through, throughType, result, f.Target, fields)
	return em.handlesFor(result)
}

func (em *EntityManager) handlesFor(identities []cache.Identity) ([]*Handle, error) {
	handles := make([]*Handle, 0, len(identities))
	for _, identity := range identities {
		h, err := em.handleFor(identity)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// ownerCriteria matches the rows whose reference fk points to h
func (h *Handle) ownerCriteria(fk *schema.Field) (string, []interface{}, error) {
	owner := h.identity.ID
	var value interface{} = owner
	if fk.Kind == schema.Polymorphic {
		value = h.identity
	}

	columns, args, err := h.manager.columnValues(fk, value)
	if err != nil {
		return "", nil, err
	}
	criteria := make([]string, len(columns))
	for i, column := range columns {
		criteria[i] = h.manager.dialect.Quote(column) + " = ?"
	}
	return strings.Join(criteria, " AND "), args, nil
}

func withWhere(criteria, where string) string {
	if where == "" {
		return criteria
	}
	return criteria + " AND (" + where + ")"
}

// queryOneToMany SELECT <pk> FROM <target> WHERE <fk> = ?
func (h *Handle) queryOneToMany(ctx context.Context, f *schema.Field) ([]cache.Identity, error) {
	em := h.manager
	target, err := em.tableDescriptor(f.Target)
	if err != nil {
		return nil, err
	}
	criteria, args, err := h.ownerCriteria(f.ForeignKey)
	if err != nil {
		return nil, err
	}

	pk := em.dialect.Quote(target.PrimaryKey.Column)
	stmt := em.dialect.Select(dialect.Query{
		Table: target.Table, Columns: []string{target.PrimaryKey.Column}, Where: withWhere(criteria, f.Where), OrderBy: pk,
	})

	var result []cache.Identity
	err = em.withConn(ctx, func(conn dialect.Conn) error {
		return em.queryRows(ctx, conn, "load "+h.String()+"."+f.Name, stmt, args, func(_ []string, values []interface{}) error {
			id, err := normalizeID(target, values[0])
			if err != nil {
				return err
			}
			result = append(result, cache.Identity{Type: target.Name, ID: id})
			return nil
		})
	})
	return result, err
}

// queryManyToMany reads the join rows of h, returning them along with the targets they point to
func (h *Handle) queryManyToMany(ctx context.Context, f *schema.Field) (through, result []cache.Identity, err error) {
	em := h.manager
	join, err := em.tableDescriptor(f.Through)
	if err != nil {
		return nil, nil, err
	}
	criteria, args, err := h.ownerCriteria(f.ForeignKey)
	if err != nil {
		return nil, nil, err
	}

	columns := append([]string{join.PrimaryKey.Column}, columnsOf(f.TargetKey)...)
	stmt := em.dialect.Select(dialect.Query{
		Table: join.Table, Columns: columns, Where: withWhere(criteria, f.Where),
		OrderBy: em.dialect.Quote(join.PrimaryKey.Column),
	})

	err = em.withConn(ctx, func(conn dialect.Conn) error {
		return em.queryRows(ctx, conn, "load "+h.String()+"."+f.Name, stmt, args, func(_ []string, values []interface{}) error {
			id, err := normalizeID(join, values[0])
			if err != nil {
				return err
			}
			v, err := em.decodeField(f.TargetKey, values[1:])
			if err != nil || v == nil {
				return err
			}

			through = append(through, cache.Identity{Type: join.Name, ID: id})
			if identity, ok := v.(cache.Identity); ok {
				result = append(result, identity)
			} else {
				result = append(result, cache.Identity{Type: f.TargetKey.Target, ID: v})
			}
			return nil
		})
	})
	return through, result, err
}

// SetRelated replaces the targets of a many-to-many field: every join row of h is deleted, then one
// row per target is inserted in a single statement
func (h *Handle) SetRelated(ctx context.Context, field string, targets ...*Handle) error {
	f, err := h.field(field)
	if err != nil {
		return err
	}
	if f.Kind != schema.ManyToMany {
		return invalidValue(h.descriptor.Name, f.Name, "%s field is not a many-to-many relation", f.Kind)
	}

	em := h.manager
	join, err := em.tableDescriptor(f.Through)
	if err != nil {
		return err
	}
	criteria, ownerArgs, err := h.ownerCriteria(f.ForeignKey)
	if err != nil {
		return err
	}

	pk := join.PrimaryKey
	generateKeys := !pk.AutoIncrement
	if generateKeys && pk.Type.Kind() != types.UUID {
		return invalidValue(join.Name, pk.Name, "join rows need a generated primary key")
	}

	var (
		columns []string
		rows    []interface{}
	)
	for _, target := range targets {
		if target == nil {
			continue
		}
		var row []interface{}
		cols := columnsOf(f.ForeignKey)
		if generateKeys {
			cols = append([]string{pk.Column}, cols...)
			row = append(row, uuid.New().String())
		}
		row = append(row, ownerArgs...)

		value, err := em.fieldValue(f.TargetKey, target)
		if err != nil {
			return err
		}
		targetCols, targetArgs, err := em.columnValues(f.TargetKey, value)
		if err != nil {
			return err
		}
		columns = append(cols, targetCols...)
		rows = append(rows, append(row, targetArgs...)...)
	}

	defer em.relations.InvalidateTypes(join.Name)
	return em.withConn(ctx, func(conn dialect.Conn) error {
		op := "set " + h.String() + "." + f.Name
		if _, err := em.exec(ctx, conn, op, em.dialect.Delete(join.Table, criteria), ownerArgs...); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := em.exec(ctx, conn, op, em.dialect.InsertMany(join.Table, columns, len(rows)/len(columns)), rows...)
		return err
	})
}
