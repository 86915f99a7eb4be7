package activeobjects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"gorm.io/activeobjects/cache"
	"gorm.io/activeobjects/dialect"
	"gorm.io/activeobjects/logger"
	"gorm.io/activeobjects/migrator"
	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

// EntityManager maps entity handles onto rows. It owns the descriptors, the identity map and the
// relations cache, several managers may live in one process
type EntityManager struct {
	*Config
	dialect     dialect.Dialect
	provider    ConnectionProvider
	registry    *schema.Registry
	handles     *identityMap
	relations   *cache.RelationsCache[cache.Identity]
	placeholder *regexp.Regexp
}

// Open creates an entity manager issuing d's SQL on connections from provider
func Open(d dialect.Dialect, provider ConnectionProvider, opts ...Option) (*EntityManager, error) {
	if d == nil || provider == nil {
		return nil, errors.New("activeobjects: a dialect and a connection provider are required")
	}

	config := &Config{}
	for _, opt := range opts {
		opt(config)
	}
	config.setDefaults()

	relations, err := cache.NewRelationsCache[cache.Identity](config.RelationsCache, config.Logger)
	if err != nil {
		return nil, err
	}

	em := &EntityManager{
		Config:    config,
		dialect:   d,
		provider:  provider,
		registry:  schema.NewRegistry(config.NamingStrategy, config.Types, config.TypeMapper),
		handles:   newIdentityMap(),
		relations: relations,
	}
	if d.Name() == "postgres" {
		em.placeholder = logger.NumericPlaceholder
	}
	return em, nil
}

func (em *EntityManager) Dialect() dialect.Dialect   { return em.dialect }
func (em *EntityManager) Registry() *schema.Registry { return em.registry }

// Close closes the connection provider when it can be closed
func (em *EntityManager) Close() error {
	if closer, ok := em.provider.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Register builds the descriptors of defs, all or none of them
func (em *EntityManager) Register(defs ...schema.EntityDef) error {
	_, err := em.registry.Register(defs...)
	return err
}

// RegisterFiles registers the entities defined in YAML files, a directory stands for its *.yaml
// and *.yml files
func (em *EntityManager) RegisterFiles(paths ...string) error {
	var defs []schema.EntityDef
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		var loaded []schema.EntityDef
		if info.IsDir() {
			loaded, err = schema.LoadDefinitionsDir(path)
		} else {
			loaded, err = schema.LoadDefinitionsFile(path)
		}
		if err != nil {
			return err
		}
		defs = append(defs, loaded...)
	}
	return em.Register(defs...)
}

func (em *EntityManager) lookup(entity string) (*schema.Descriptor, error) {
	d, ok := em.registry.Lookup(entity)
	if !ok {
		return nil, unknownEntity(entity)
	}
	return d, nil
}

// tableDescriptor the descriptor of an entity stored in its own table
func (em *EntityManager) tableDescriptor(entity string) (*schema.Descriptor, error) {
	d, err := em.lookup(entity)
	if err != nil {
		return nil, err
	}
	if d.Polymorphic {
		return nil, fmt.Errorf("activeobjects: %w: %s is a polymorphic supertype without table", ErrUnknownEntity, d.Name)
	}
	return d, nil
}

func normalizeID(d *schema.Descriptor, id interface{}) (interface{}, error) {
	if h, ok := id.(*Handle); ok && h != nil {
		id = h.identity.ID
	}

	v, err := d.PrimaryKey.Type.FromDatabase(id)
	if err != nil {
		return nil, invalidValue(d.Name, d.PrimaryKey.Name, "%v", err)
	}
	if v == nil {
		return nil, invalidValue(d.Name, d.PrimaryKey.Name, "primary key can't be null")
	}
	if !reflect.TypeOf(v).Comparable() {
		return nil, invalidValue(d.Name, d.PrimaryKey.Name, "%T can't identify an entity", v)
	}
	return v, nil
}

// handle returns the live handle of (d, id), id must be normalised
func (em *EntityManager) handle(d *schema.Descriptor, id interface{}) *Handle {
	identity := cache.Identity{Type: d.Name, ID: id}
	return em.handles.load(identity, func() *Handle {
		return &Handle{manager: em, descriptor: d, identity: identity, cache: cache.NewEntityCache()}
	})
}

func (em *EntityManager) handleFor(identity cache.Identity) (*Handle, error) {
	d, err := em.tableDescriptor(identity.Type)
	if err != nil {
		return nil, err
	}
	return em.handle(d, identity.ID), nil
}

// Get returns the handle of the entity with primary key id without reading the database
func (em *EntityManager) Get(entity string, id interface{}) (*Handle, error) {
	d, err := em.tableDescriptor(entity)
	if err != nil {
		return nil, err
	}
	id, err = normalizeID(d, id)
	if err != nil {
		return nil, err
	}
	return em.handle(d, id), nil
}

// GetMany returns one handle per id, in order
func (em *EntityManager) GetMany(entity string, ids ...interface{}) ([]*Handle, error) {
	d, err := em.tableDescriptor(entity)
	if err != nil {
		return nil, err
	}

	handles := make([]*Handle, len(ids))
	for i, id := range ids {
		if id, err = normalizeID(d, id); err != nil {
			return nil, err
		}
		handles[i] = em.handle(d, id)
	}
	return handles, nil
}

// Create inserts an entity holding fields, the others take their database default. The primary key
// is generated by the database for auto increment keys and client side for uuid keys
func (em *EntityManager) Create(ctx context.Context, entity string, fields map[string]interface{}) (*Handle, error) {
	d, err := em.tableDescriptor(entity)
	if err != nil {
		return nil, err
	}

	values := make(map[*schema.Field]interface{}, len(fields))
	for name, value := range fields {
		f := d.LookUpField(name)
		if f == nil {
			return nil, unknownField(d.Name, name)
		}
		if !f.HasColumn() {
			return nil, invalidValue(d.Name, f.Name, "%s fields can't be set on create", f.Kind)
		}
		v, err := em.fieldValue(f, value)
		if err != nil {
			return nil, err
		}
		values[f] = v
	}

	pk := d.PrimaryKey
	id, hasID := values[pk]
	if hasID && id == nil {
		delete(values, pk)
		hasID = false
	}
	if !hasID {
		switch {
		case pk.AutoIncrement:
		case pk.Type.Kind() == types.UUID:
			id, hasID = uuid.New(), true
			values[pk] = id
		default:
			return nil, invalidValue(d.Name, pk.Name, "primary key required")
		}
	}

	var (
		columns []string
		args    []interface{}
	)
	for _, f := range d.ColumnFields() {
		v, ok := values[f]
		if !ok {
			continue
		}
		cols, vals, err := em.columnValues(f, v)
		if err != nil {
			return nil, err
		}
		columns = append(columns, cols...)
		args = append(args, vals...)
	}

	op := "create " + d.Name
	err = em.withConn(ctx, func(conn dialect.Conn) error {
		if hasID {
			_, err := em.exec(ctx, conn, op, em.dialect.Insert(d.Table, columns, ""), args...)
			return err
		}

		if em.dialect.SupportsReturning() {
			stmt := em.dialect.Insert(d.Table, columns, pk.Column)
			err := em.queryRows(ctx, conn, op, stmt, args, func(_ []string, values []interface{}) (err error) {
				id, err = normalizeID(d, values[0])
				return err
			})
			if err == nil && id == nil {
				return &PersistenceError{Op: op, SQL: stmt, Err: errors.New("no primary key returned")}
			}
			return err
		}

		stmt := em.dialect.Insert(d.Table, columns, "")
		result, err := em.exec(ctx, conn, op, stmt, args...)
		if err != nil {
			return err
		}
		lastID, err := result.LastInsertId()
		if err != nil {
			return &PersistenceError{Op: op, SQL: stmt, Err: err}
		}
		id, err = normalizeID(d, lastID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h := em.handle(d, id)
	h.cache.Put(pk.Name, id)
	for f, v := range values {
		h.cache.Put(f.Name, v)
	}
	em.relations.InvalidateTypes(typesOf(d)...)
	return h, nil
}

// typesOf the entity type and its polymorphic supertype
func typesOf(d *schema.Descriptor) []string {
	if d.Extends != "" {
		return []string{d.Name, d.Extends}
	}
	return []string{d.Name}
}

// Query selects entities, Fields are read along with the keys and cached in the returned handles
type Query struct {
	// Where criteria written with ? placeholders, handles in Args stand for their primary key
	Where   string
	Args    []interface{}
	OrderBy string
	Limit   int
	Offset  int
	Fields  []string
}

// Find returns the entities matching criteria, an empty criteria matches every entity
func (em *EntityManager) Find(ctx context.Context, entity string, criteria string, params ...interface{}) ([]*Handle, error) {
	return em.FindQuery(ctx, entity, Query{Where: criteria, Args: params})
}

func (em *EntityManager) FindQuery(ctx context.Context, entity string, q Query) ([]*Handle, error) {
	d, err := em.tableDescriptor(entity)
	if err != nil {
		return nil, err
	}

	var (
		fields  []*schema.Field
		columns = []string{d.PrimaryKey.Column}
	)
	for _, name := range q.Fields {
		f := d.LookUpField(name)
		if f == nil {
			return nil, unknownField(d.Name, name)
		}
		if !f.HasColumn() {
			return nil, invalidValue(d.Name, f.Name, "%s fields can't be preloaded", f.Kind)
		}
		if f.PrimaryKey {
			continue
		}
		fields = append(fields, f)
		columns = append(columns, columnsOf(f)...)
	}

	stmt := em.dialect.Select(dialect.Query{
		Table: d.Table, Columns: columns, Where: q.Where, OrderBy: q.OrderBy, Limit: q.Limit, Offset: q.Offset,
	})

	var handles []*Handle
	err = em.withConn(ctx, func(conn dialect.Conn) error {
		return em.queryRows(ctx, conn, "find "+d.Name, stmt, bindArgs(q.Args), func(_ []string, values []interface{}) error {
			id, err := normalizeID(d, values[0])
			if err != nil {
				return err
			}
			h := em.handle(d, id)

			offset := 1
			for _, f := range fields {
				n := len(columnsOf(f))
				v, err := em.decodeField(f, values[offset:offset+n])
				if err != nil {
					return err
				}
				h.cache.PutIfAbsent(f.Name, v)
				offset += n
			}
			handles = append(handles, h)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return handles, nil
}

// FindWithRawQuery runs a caller written query, keyField names the result column holding the
// primary key. Other result columns matching a field are cached in the returned handles
func (em *EntityManager) FindWithRawQuery(ctx context.Context, entity, keyField, query string, params ...interface{}) ([]*Handle, error) {
	d, err := em.tableDescriptor(entity)
	if err != nil {
		return nil, err
	}

	var handles []*Handle
	err = em.withConn(ctx, func(conn dialect.Conn) error {
		var (
			key    = -1
			fields []*schema.Field
		)
		return em.queryRows(ctx, conn, "find "+d.Name, query, bindArgs(params), func(columns []string, values []interface{}) error {
			if key < 0 {
				fields = make([]*schema.Field, len(columns))
				for i, column := range columns {
					if strings.EqualFold(column, keyField) {
						key = i
						continue
					}
					// polymorphic references span two columns
					if f := d.LookUpField(column); f != nil && (f.Kind == schema.Scalar || f.Kind == schema.Reference) && !f.PrimaryKey {
						fields[i] = f
					}
				}
				if key < 0 {
					return fmt.Errorf("activeobjects: %w: key column %s not in result", ErrUnknownField, keyField)
				}
			}

			id, err := normalizeID(d, values[key])
			if err != nil {
				return err
			}
			h := em.handle(d, id)
			for i, f := range fields {
				if f == nil {
					continue
				}
				v, err := em.decodeField(f, values[i:i+1])
				if err != nil {
					return err
				}
				h.cache.PutIfAbsent(f.Name, v)
			}
			handles = append(handles, h)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return handles, nil
}

// Count counts the entities matching criteria
func (em *EntityManager) Count(ctx context.Context, entity string, criteria string, params ...interface{}) (int64, error) {
	d, err := em.tableDescriptor(entity)
	if err != nil {
		return 0, err
	}
	intType, err := em.Types.TypeFor(types.Int)
	if err != nil {
		return 0, err
	}

	var count int64
	err = em.withConn(ctx, func(conn dialect.Conn) error {
		return em.queryRows(ctx, conn, "count "+d.Name, em.dialect.Count(d.Table, criteria), bindArgs(params),
			func(_ []string, values []interface{}) error {
				v, err := intType.FromDatabase(values[0])
				if err != nil {
					return err
				}
				count, _ = v.(int64)
				return nil
			})
	})
	return count, err
}

// Delete deletes the entities, evicts their handles and clears their caches. Relation caches of
// their types and of the types in their flush sets are invalidated
func (em *EntityManager) Delete(ctx context.Context, handles ...*Handle) error {
	var (
		order  []*schema.Descriptor
		groups = map[*schema.Descriptor][]*Handle{}
	)
	for _, h := range handles {
		if h == nil {
			continue
		}
		if h.manager != em {
			return fmt.Errorf("activeobjects: %w: %s belongs to another entity manager", ErrInvalidValue, h)
		}
		if _, ok := groups[h.descriptor]; !ok {
			order = append(order, h.descriptor)
		}
		groups[h.descriptor] = append(groups[h.descriptor], h)
	}

	for _, d := range order {
		group := groups[d]
		args := make([]interface{}, len(group))
		for i, h := range group {
			id, err := d.PrimaryKey.Type.ToDatabase(h.identity.ID)
			if err != nil {
				return invalidValue(d.Name, d.PrimaryKey.Name, "%v", err)
			}
			args[i] = id
		}
		where := em.dialect.Quote(d.PrimaryKey.Column) + " IN (" + strings.TrimSuffix(strings.Repeat("?,", len(group)), ",") + ")"

		err := em.withConn(ctx, func(conn dialect.Conn) error {
			_, err := em.exec(ctx, conn, "delete "+d.Name, em.dialect.Delete(d.Table, where), args...)
			return err
		})
		if err != nil {
			return err
		}

		invalidate := typesOf(d)
		for _, h := range group {
			invalidate = append(invalidate, h.cache.TakeFlush()...)
			em.handles.evict(h.identity)
			h.cache.Reset()
		}
		em.relations.InvalidateTypes(invalidate...)
	}
	return nil
}

// DeleteWhere deletes the entities matching criteria in one statement. Handles of deleted rows are
// not tracked down, only the relation caches of the type are invalidated
func (em *EntityManager) DeleteWhere(ctx context.Context, entity string, criteria string, params ...interface{}) (int64, error) {
	d, err := em.tableDescriptor(entity)
	if err != nil {
		return 0, err
	}

	var affected int64
	err = em.withConn(ctx, func(conn dialect.Conn) error {
		result, err := em.exec(ctx, conn, "delete "+d.Name, em.dialect.Delete(d.Table, criteria), bindArgs(params)...)
		if err != nil {
			return err
		}
		affected, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	em.relations.InvalidateTypes(typesOf(d)...)
	return affected, nil
}

func (em *EntityManager) migrator() *migrator.Migrator {
	return migrator.New(em.dialect, em.Types, em.Logger, em.Migration)
}

// Plan returns the actions Migrate would run, without running them
func (em *EntityManager) Plan(ctx context.Context) ([]migrator.Action, error) {
	tables, err := em.registry.Tables()
	if err != nil {
		return nil, err
	}

	var actions []migrator.Action
	err = em.withConn(ctx, func(conn dialect.Conn) (err error) {
		actions, err = em.migrator().Plan(ctx, conn, tables)
		return err
	})
	return actions, err
}

// Migrate brings the database schema in line with the registered entities. A dependency cycle is
// reported as a ConfigurationError before any statement runs, a failing statement stops the run
// with a *migrator.MigrationError
func (em *EntityManager) Migrate(ctx context.Context) ([]migrator.Action, error) {
	tables, err := em.registry.Tables()
	if err != nil {
		return nil, err
	}

	var applied []migrator.Action
	err = em.withConn(ctx, func(conn dialect.Conn) (err error) {
		applied, err = em.migrator().Migrate(ctx, conn, tables)
		return err
	})
	if len(applied) > 0 {
		em.relations.Clear()
	}
	return applied, err
}
