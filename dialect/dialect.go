package dialect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

// ErrUnsupported the dialect can't render the requested statement
var ErrUnsupported = errors.New("unsupported by dialect")

// Conn is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Query a dialect-neutral SELECT, Where and OrderBy are raw SQL using ? placeholders
type Query struct {
	Table   string
	Columns []string
	Where   string
	OrderBy string
	Limit   int
	Offset  int
}

// Assignment one "column = expr" of an UPDATE, an empty Expr renders a placeholder
type Assignment struct {
	Column string
	Expr   string
}

// Dialect renders SQL for one database vendor and reads its live schema.
//
// Statements use ? placeholders, Rebind converts them to the vendor's bind variables.
type Dialect interface {
	Name() string
	Quote(identifier string) string
	Rebind(sql string) string
	DataTypeOf(column *schema.Column) string
	Literal(value interface{}) string

	SupportsReturning() bool
	SupportsAlterForeignKey() bool
	SupportsOnUpdate() bool

	Select(q Query) string
	Count(table, where string) string
	Insert(table string, columns []string, returning string) string
	InsertMany(table string, columns []string, rows int) string
	Update(table string, assignments []Assignment, where string) string
	Delete(table, where string) string

	CreateTable(table *schema.Table) (string, error)
	DropTable(table string) (string, error)
	AddColumn(table string, column *schema.Column, fk *schema.ForeignKey) (string, error)
	AlterColumn(table string, column *schema.Column) (string, error)
	DropColumn(table, column string) (string, error)
	CreateIndex(table string, index *schema.Index) (string, error)
	DropIndex(table, index string) (string, error)
	AddForeignKey(table string, fk *schema.ForeignKey) (string, error)
	DropForeignKey(table, name string) (string, error)

	// Introspect reads every table of the connected schema
	Introspect(ctx context.Context, conn Conn, registry *types.Registry) ([]*schema.Table, error)
}

// Open returns the dialect of a database/sql driver name
func Open(driverName string) (Dialect, error) {
	switch driverName {
	case "sqlite", "sqlite3":
		return SQLite(), nil
	case "pgx", "postgres":
		return Postgres(), nil
	case "mysql":
		return MySQL(), nil
	}
	return nil, fmt.Errorf("%w: driver %q", ErrUnsupported, driverName)
}
