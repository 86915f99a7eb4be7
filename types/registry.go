package types

import (
	"fmt"
	"strings"
	"sync"
)

// Registry maps semantic kinds and database type names to Types, it is owned by one manager
type Registry struct {
	mu       sync.RWMutex
	kinds    map[Kind]Type
	database map[string]Type
}

var builtinDatabaseNames = map[Kind][]string{
	String: {"VARCHAR", "CHARACTER VARYING", "VARYING CHARACTER", "NVARCHAR", "TEXT", "TINYTEXT",
		"MEDIUMTEXT", "LONGTEXT", "CHAR", "CHARACTER", "NCHAR", "CLOB", "CITEXT", "ENUM"},
	Int: {"INTEGER", "INT", "INT2", "INT4", "INT8", "SMALLINT", "MEDIUMINT", "BIGINT", "TINYINT",
		"SERIAL", "BIGSERIAL", "SMALLSERIAL"},
	Float: {"REAL", "FLOAT", "FLOAT4", "FLOAT8", "DOUBLE", "DOUBLE PRECISION", "NUMERIC", "DECIMAL"},
	Bool:  {"BOOLEAN", "BOOL", "BIT", "TINYINT(1)"},
	Time: {"TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "TIMESTAMP WITHOUT TIME ZONE",
		"DATETIME", "DATETIME2"},
	Date:  {"DATE"},
	Bytes: {"BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BYTEA", "BINARY", "VARBINARY"},
	UUID:  {"UUID", "UNIQUEIDENTIFIER"},
}

// NewRegistry returns a registry holding the built-in types
func NewRegistry() *Registry {
	r := &Registry{kinds: map[Kind]Type{}, database: map[string]Type{}}
	for _, t := range []Type{stringType{}, intType{}, floatType{}, boolType{}, timeType{}, dateType{},
		bytesType{}, uuidType{}, genericType{}} {
		r.Register(t, builtinDatabaseNames[t.Kind()]...)
	}
	return r
}

// Register adds or replaces the type for its kind, databaseNames are matched by TypeForDatabase
func (r *Registry) Register(t Type, databaseNames ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.kinds[t.Kind()] = t
	for _, name := range databaseNames {
		r.database[strings.ToUpper(name)] = t
	}
}

// TypeFor returns the type for kind, or ErrUnmappedType
func (r *Registry) TypeFor(kind Kind) (Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.kinds[kind]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnmappedType, kind)
}

// TypeForDatabase returns the type for a vendor column type name, falling back to a pass-through type
func (r *Registry) TypeForDatabase(name string) Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	full := strings.ToUpper(strings.TrimSpace(name))
	if t, ok := r.database[full]; ok {
		return t
	}

	base := full
	if idx := strings.IndexByte(base, '('); idx >= 0 {
		rest := ""
		if end := strings.IndexByte(base[idx:], ')'); end >= 0 {
			rest = strings.TrimSpace(base[idx+end+1:])
		}
		base = strings.TrimSpace(base[:idx] + " " + rest)
	}
	if t, ok := r.database[base]; ok {
		return t
	}
	if fields := strings.Fields(base); len(fields) > 0 {
		if t, ok := r.database[fields[0]]; ok {
			return t
		}
	}
	return r.kinds[Generic]
}
