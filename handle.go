package activeobjects

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"gorm.io/activeobjects/cache"
	"gorm.io/activeobjects/dialect"
	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/utils"
)

// Handle the single live proxy of one entity. Field values live in its cache, reads of uncached
// fields query the database and writes are kept until Save
type Handle struct {
	manager    *EntityManager
	descriptor *schema.Descriptor
	identity   cache.Identity
	cache      *cache.EntityCache
}

func (h *Handle) Identity() cache.Identity       { return h.identity }
func (h *Handle) ID() interface{}                { return h.identity.ID }
func (h *Handle) Type() string                   { return h.descriptor.Name }
func (h *Handle) Descriptor() *schema.Descriptor { return h.descriptor }
func (h *Handle) String() string                 { return h.identity.String() }

// Equals compares table and primary key only, never cached fields
func (h *Handle) Equals(other *Handle) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.descriptor.Table == other.descriptor.Table &&
		h.descriptor.PrimaryKey.Type.ValuesEqual(h.identity.ID, other.identity.ID)
}

// Hash hashes table and primary key, consistent with Equals
func (h *Handle) Hash() uint64 {
	return xxhash.Sum64String(h.descriptor.Table + ":" + utils.ToStringKey(h.identity.ID))
}

func (h *Handle) field(name string) (*schema.Field, error) {
	f := h.descriptor.LookUpField(name)
	if f == nil {
		return nil, unknownField(h.descriptor.Name, name)
	}
	return f, nil
}

// Get reads a field: the value of a scalar, the *Handle of a reference (nil when unset) and the
// []*Handle of a to-many relation
func (h *Handle) Get(ctx context.Context, field string) (interface{}, error) {
	f, err := h.field(field)
	if err != nil {
		return nil, err
	}
	return accessors[f.Kind].get(ctx, h, f)
}

// Set writes a field in the cache and marks it dirty, Save persists it. References take a
// *Handle, or the target key for non polymorphic references
func (h *Handle) Set(field string, value interface{}) error {
	f, err := h.field(field)
	if err != nil {
		return err
	}
	return accessors[f.Kind].set(h, f, value)
}

func getAs[T any](ctx context.Context, h *Handle, field string) (T, error) {
	var zero T
	v, err := h.Get(ctx, field)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, invalidValue(h.descriptor.Name, field, "%T is not a %T", v, zero)
	}
	return t, nil
}

// GetString reads a string field, null reads as ""
func (h *Handle) GetString(ctx context.Context, field string) (string, error) {
	return getAs[string](ctx, h, field)
}

func (h *Handle) GetInt64(ctx context.Context, field string) (int64, error) {
	return getAs[int64](ctx, h, field)
}

func (h *Handle) GetFloat64(ctx context.Context, field string) (float64, error) {
	return getAs[float64](ctx, h, field)
}

func (h *Handle) GetBool(ctx context.Context, field string) (bool, error) {
	return getAs[bool](ctx, h, field)
}

func (h *Handle) GetTime(ctx context.Context, field string) (time.Time, error) {
	return getAs[time.Time](ctx, h, field)
}

func (h *Handle) GetBytes(ctx context.Context, field string) ([]byte, error) {
	return getAs[[]byte](ctx, h, field)
}

func (h *Handle) GetUUID(ctx context.Context, field string) (uuid.UUID, error) {
	return getAs[uuid.UUID](ctx, h, field)
}

// load returns the cached value of a column field, reading and caching it on a miss. A value
// written while the read ran wins over the value read
func (h *Handle) load(ctx context.Context, f *schema.Field) (interface{}, error) {
	if f.PrimaryKey {
		return h.identity.ID, nil
	}
	if v, ok := h.cache.Get(f.Name); ok {
		return v, nil
	}

	values, err := h.manager.selectFields(ctx, h, []*schema.Field{f})
	if err != nil {
		return nil, err
	}
	v, _ := h.cache.PutIfAbsent(f.Name, values[0])
	return v, nil
}

// selectFields reads the fields of one row
func (em *EntityManager) selectFields(ctx context.Context, h *Handle, fields []*schema.Field) ([]interface{}, error) {
	d := h.descriptor
	var columns []string
	for _, f := range fields {
		columns = append(columns, columnsOf(f)...)
	}
	stmt := em.dialect.Select(dialect.Query{
		Table: d.Table, Columns: columns, Where: em.dialect.Quote(d.PrimaryKey.Column) + " = ?",
	})
	id, err := d.PrimaryKey.Type.ToDatabase(h.identity.ID)
	if err != nil {
		return nil, invalidValue(d.Name, d.PrimaryKey.Name, "%v", err)
	}

	var values []interface{}
	err = em.withConn(ctx, func(conn dialect.Conn) error {
		return em.queryRows(ctx, conn, "load "+h.String(), stmt, []interface{}{id}, func(_ []string, raw []interface{}) error {
			values = make([]interface{}, len(fields))
			offset := 0
			for i, f := range fields {
				n := len(columnsOf(f))
				v, err := em.decodeField(f, raw[offset:offset+n])
				if err != nil {
					return err
				}
				values[i] = v
				offset += n
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if values == nil {
		return nil, &PersistenceError{Op: "load " + h.String(), SQL: stmt, Err: ErrRecordNotFound}
	}
	return values, nil
}

// Dirty the folded names of the fields written since the last save
func (h *Handle) Dirty() []string {
	return h.cache.DirtyFields()
}

// Save issues one UPDATE of the dirty fields, nothing when no field is dirty. On failure the
// fields stay dirty. On success relation caches depending on the saved fields, or on a type of
// the flush set, are invalidated
func (h *Handle) Save(ctx context.Context) error {
	snapshot := h.cache.DirtySnapshot()
	if snapshot.Empty() {
		return nil
	}

	var (
		em          = h.manager
		d           = h.descriptor
		assignments []dialect.Assignment
		args        []interface{}
		refreshed   []*schema.Field
	)
	for _, f := range d.ColumnFields() {
		value, dirty := snapshot.Values[cache.FoldKey(f.Name)]
		if f.PrimaryKey {
			continue
		}
		if !dirty {
			if f.OnUpdate != "" {
				refreshed = append(refreshed, f)
				if !em.dialect.SupportsOnUpdate() {
					assignments = append(assignments, dialect.Assignment{Column: f.Column, Expr: string(f.OnUpdate)})
				}
			}
			continue
		}

		columns, values, err := em.columnValues(f, value)
		if err != nil {
			return err
		}
		for i, column := range columns {
			if values[i] == nil {
				assignments = append(assignments, dialect.Assignment{Column: column, Expr: "NULL"})
				continue
			}
			assignments = append(assignments, dialect.Assignment{Column: column})
			args = append(args, values[i])
		}
	}

	id, err := d.PrimaryKey.Type.ToDatabase(h.identity.ID)
	if err != nil {
		return invalidValue(d.Name, d.PrimaryKey.Name, "%v", err)
	}
	args = append(args, id)

	stmt := em.dialect.Update(d.Table, assignments, em.dialect.Quote(d.PrimaryKey.Column)+" = ?")
	err = em.withConn(ctx, func(conn dialect.Conn) error {
		_, err := em.exec(ctx, conn, "save "+h.String(), stmt, args...)
		return err
	})
	if err != nil {
		return err
	}

	h.cache.CommitDirty(snapshot)
	for _, f := range refreshed {
		h.cache.Remove(f.Name)
	}
	em.relations.InvalidateEntity(h.identity, snapshot.Fields()...)
	if flush := h.cache.TakeFlush(); len(flush) > 0 {
		em.relations.InvalidateTypes(flush...)
	}
	return nil
}

// Refresh drops the cached fields that are not dirty and reads every field again in one query
func (h *Handle) Refresh(ctx context.Context) error {
	var fields []*schema.Field
	for _, f := range h.descriptor.ColumnFields() {
		if !f.PrimaryKey {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		return nil
	}

	values, err := h.manager.selectFields(ctx, h, fields)
	if err != nil {
		return err
	}
	h.cache.Clear()
	for i, f := range fields {
		h.cache.PutIfAbsent(f.Name, values[i])
	}
	return nil
}

// Delete deletes the entity through its manager
func (h *Handle) Delete(ctx context.Context) error {
	return h.manager.Delete(ctx, h)
}
