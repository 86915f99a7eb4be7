package dialect

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

// common renders the SQL shared by every vendor, vendors embed it and override what differs
type common struct {
	name      string
	quoteChar byte
	numbered  bool
	// unlimited LIMIT value rendered when only an offset is given, empty when OFFSET stands alone
	unlimited string

	returning bool
	alterFK   bool
	onUpdate  bool
	// inlinePrimaryKey renders PRIMARY KEY on the column rather than as a table constraint
	inlinePrimaryKey bool
	// inlineForeignKeys renders foreign keys inside CREATE TABLE and ADD COLUMN
	inlineForeignKeys bool
	emptyInsert       string
	dropForeignKey    string
	// autoIncrement column attribute, empty when the data type carries it
	autoIncrement string

	dataType     func(column *schema.Column) string
	bytesLiteral func(b []byte) string
	expr         func(column *schema.Column, e types.Expr) string
}

func (c *common) Name() string { return c.name }

func (c *common) SupportsReturning() bool       { return c.returning }
func (c *common) SupportsAlterForeignKey() bool { return c.alterFK }
func (c *common) SupportsOnUpdate() bool        { return c.onUpdate }

// Quote quotes each part of a dotted identifier, doubling embedded quote characters
func (c *common) Quote(identifier string) string {
	var (
		builder strings.Builder
		q       = string(c.quoteChar)
	)
	for i, part := range strings.Split(identifier, ".") {
		if i > 0 {
			builder.WriteByte('.')
		}
		builder.WriteString(q)
		builder.WriteString(strings.ReplaceAll(part, q, q+q))
		builder.WriteString(q)
	}
	return builder.String()
}

func (c *common) quoteAll(identifiers []string) string {
	quoted := make([]string, len(identifiers))
	for i, identifier := range identifiers {
		quoted[i] = c.Quote(identifier)
	}
	return strings.Join(quoted, ",")
}

// Rebind replaces ? placeholders outside of string literals by $1, $2...
func (c *common) Rebind(sql string) string {
	if !c.numbered || !strings.Contains(sql, "?") {
		return sql
	}

	var (
		builder  strings.Builder
		n        int
		inString bool
	)
	builder.Grow(len(sql) + 8)
	for i := 0; i < len(sql); i++ {
		switch ch := sql[i]; {
		case ch == '\'':
			inString = !inString
			builder.WriteByte(ch)
		case ch == '?' && !inString:
			n++
			builder.WriteByte('$')
			builder.WriteString(strconv.Itoa(n))
		default:
			builder.WriteByte(ch)
		}
	}
	return builder.String()
}

func (c *common) DataTypeOf(column *schema.Column) string {
	return c.dataType(column)
}

// Literal renders a semantic value as SQL
func (c *common) Literal(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case types.Expr:
		return string(v)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case time.Time:
		return "'" + v.UTC().Format("2006-01-02 15:04:05.999999") + "'"
	case []byte:
		return c.bytesLiteral(v)
	case uuid.UUID:
		return "'" + v.String() + "'"
	case fmt.Stringer:
		return c.Literal(v.String())
	}
	return c.Literal(fmt.Sprint(value))
}

func (c *common) limit(limit, offset int) string {
	var sql string
	if limit > 0 {
		sql = " LIMIT " + strconv.Itoa(limit)
	} else if offset > 0 && c.unlimited != "" {
		sql = " LIMIT " + c.unlimited
	}
	if offset > 0 {
		sql += " OFFSET " + strconv.Itoa(offset)
	}
	return sql
}

func (c *common) Select(q Query) string {
	var builder strings.Builder
	builder.WriteString("SELECT ")
	builder.WriteString(c.quoteAll(q.Columns))
	builder.WriteString(" FROM ")
	builder.WriteString(c.Quote(q.Table))
	if q.Where != "" {
		builder.WriteString(" WHERE ")
		builder.WriteString(q.Where)
	}
	if q.OrderBy != "" {
		builder.WriteString(" ORDER BY ")
		builder.WriteString(q.OrderBy)
	}
	builder.WriteString(c.limit(q.Limit, q.Offset))
	return builder.String()
}

func (c *common) Count(table, where string) string {
	sql := "SELECT COUNT(*) FROM " + c.Quote(table)
	if where != "" {
		sql += " WHERE " + where
	}
	return sql
}

func placeholders(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
}

// Insert renders a single row INSERT, returning names a column to read back when supported
func (c *common) Insert(table string, columns []string, returning string) string {
	sql := "INSERT INTO " + c.Quote(table)
	if len(columns) == 0 {
		sql += " " + c.emptyInsert
	} else {
		sql += " (" + c.quoteAll(columns) + ") VALUES " + placeholders(len(columns))
	}
	if returning != "" && c.returning {
		sql += " RETURNING " + c.Quote(returning)
	}
	return sql
}

func (c *common) InsertMany(table string, columns []string, rows int) string {
	values := make([]string, rows)
	for i := range values {
		values[i] = placeholders(len(columns))
	}
	return "INSERT INTO " + c.Quote(table) + " (" + c.quoteAll(columns) + ") VALUES " + strings.Join(values, ",")
}

func (c *common) Update(table string, assignments []Assignment, where string) string {
	var builder strings.Builder
	builder.WriteString("UPDATE ")
	builder.WriteString(c.Quote(table))
	builder.WriteString(" SET ")
	for i, a := range assignments {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(c.Quote(a.Column))
		builder.WriteString(" = ")
		if a.Expr == "" {
			builder.WriteByte('?')
		} else {
			builder.WriteString(a.Expr)
		}
	}
	if where != "" {
		builder.WriteString(" WHERE ")
		builder.WriteString(where)
	}
	return builder.String()
}

func (c *common) Delete(table, where string) string {
	sql := "DELETE FROM " + c.Quote(table)
	if where != "" {
		sql += " WHERE " + where
	}
	return sql
}

func (c *common) defaultSQL(column *schema.Column) string {
	if e, ok := column.DefaultValue.(types.Expr); ok {
		return c.expr(column, e)
	}
	return c.Literal(column.DefaultValue)
}

// columnDefinition renders "name type [PRIMARY KEY] [NOT NULL] [DEFAULT x] [ON UPDATE x]"
func (c *common) columnDefinition(column *schema.Column, primaryKey bool) string {
	var builder strings.Builder
	builder.WriteString(c.Quote(column.Name))
	builder.WriteByte(' ')
	builder.WriteString(c.dataType(column))

	if primaryKey && c.inlinePrimaryKey {
		builder.WriteString(" PRIMARY KEY")
		if column.AutoIncrement {
			builder.WriteString(" AUTOINCREMENT")
		} else {
			builder.WriteString(" NOT NULL")
		}
	} else {
		if column.NotNull || column.PrimaryKey {
			builder.WriteString(" NOT NULL")
		}
		if column.AutoIncrement && c.autoIncrement != "" {
			builder.WriteString(" ")
			builder.WriteString(c.autoIncrement)
		}
	}
	if column.Default != nil && !column.AutoIncrement {
		builder.WriteString(" DEFAULT ")
		builder.WriteString(c.defaultSQL(column))
	}
	if column.OnUpdate != "" && c.onUpdate {
		builder.WriteString(" ON UPDATE ")
		builder.WriteString(c.expr(column, column.OnUpdate))
	}
	return builder.String()
}

func (c *common) references(fk *schema.ForeignKey) string {
	return " REFERENCES " + c.Quote(fk.ReferencedTable) + " (" + c.Quote(fk.ReferencedColumn) + ")"
}

func (c *common) CreateTable(table *schema.Table) (string, error) {
	var (
		definitions []string
		primaryKeys []string
	)
	for _, column := range table.Columns {
		if column.PrimaryKey {
			primaryKeys = append(primaryKeys, column.Name)
		}
	}

	for _, column := range table.Columns {
		definition := c.columnDefinition(column, column.PrimaryKey && len(primaryKeys) == 1)
		if c.inlineForeignKeys {
			if fk := table.ForeignKeyFor(column.Name); fk != nil {
				definition += c.references(fk)
			}
		}
		definitions = append(definitions, definition)
	}

	if len(primaryKeys) > 1 || (len(primaryKeys) == 1 && !c.inlinePrimaryKey) {
		definitions = append(definitions, "PRIMARY KEY ("+c.quoteAll(primaryKeys)+")")
	}
	return "CREATE TABLE " + c.Quote(table.Name) + " (" + strings.Join(definitions, ",") + ")", nil
}

func (c *common) DropTable(table string) (string, error) {
	return "DROP TABLE " + c.Quote(table), nil
}

func (c *common) AddColumn(table string, column *schema.Column, fk *schema.ForeignKey) (string, error) {
	if column.PrimaryKey {
		return "", fmt.Errorf("%w: add primary key column %s.%s", ErrUnsupported, table, column.Name)
	}
	sql := "ALTER TABLE " + c.Quote(table) + " ADD COLUMN " + c.columnDefinition(column, false)
	if fk != nil && c.inlineForeignKeys {
		sql += c.references(fk)
	}
	return sql, nil
}

func (c *common) AlterColumn(table string, column *schema.Column) (string, error) {
	return "", fmt.Errorf("%w: %s can't alter column %s.%s", ErrUnsupported, c.name, table, column.Name)
}

func (c *common) DropColumn(table, column string) (string, error) {
	return "ALTER TABLE " + c.Quote(table) + " DROP COLUMN " + c.Quote(column), nil
}

func (c *common) CreateIndex(table string, index *schema.Index) (string, error) {
	sql := "CREATE INDEX "
	if index.Unique {
		sql = "CREATE UNIQUE INDEX "
	}
	return sql + c.Quote(index.Name) + " ON " + c.Quote(table) + " (" + c.quoteAll(index.Columns) + ")", nil
}

func (c *common) DropIndex(table, index string) (string, error) {
	return "DROP INDEX " + c.Quote(index), nil
}

func (c *common) AddForeignKey(table string, fk *schema.ForeignKey) (string, error) {
	if !c.alterFK {
		return "", fmt.Errorf("%w: %s can't add foreign key %s", ErrUnsupported, c.name, fk.Name)
	}
	return "ALTER TABLE " + c.Quote(table) + " ADD CONSTRAINT " + c.Quote(fk.Name) +
		" FOREIGN KEY (" + c.Quote(fk.Column) + ")" + c.references(fk), nil
}

func (c *common) DropForeignKey(table, name string) (string, error) {
	if !c.alterFK {
		return "", fmt.Errorf("%w: %s can't drop foreign key %s", ErrUnsupported, c.name, name)
	}
	return "ALTER TABLE " + c.Quote(table) + " DROP " + c.dropForeignKey + " " + c.Quote(name), nil
}

func hexLiteral(b []byte) string {
	return "X'" + hex.EncodeToString(b) + "'"
}
