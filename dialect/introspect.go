package dialect

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

// columnInfo one row of a vendor column catalog
type columnInfo struct {
	Name          string
	DataType      string
	Nullable      bool
	Default       sql.NullString
	PrimaryKey    bool
	AutoIncrement bool
	OnUpdate      string
	Length        sql.NullInt64
	Precision     sql.NullInt64
	Scale         sql.NullInt64
}

func (ci columnInfo) column(registry *types.Registry) *schema.Column {
	t := registry.TypeForDatabase(ci.DataType)
	column := &schema.Column{
		Name:          ci.Name,
		Kind:          t.Kind(),
		DatabaseType:  ci.DataType,
		NotNull:       !ci.Nullable || ci.PrimaryKey,
		PrimaryKey:    ci.PrimaryKey,
		AutoIncrement: ci.AutoIncrement,
		OnUpdate:      types.Expr(ci.OnUpdate),
	}

	first, second := typeModifiers(ci.DataType)
	switch column.Kind {
	case types.Float:
		column.Precision, column.Scale = first, second
		if ci.Precision.Valid && isDecimal(ci.DataType) {
			column.Precision, column.Scale = int(ci.Precision.Int64), int(ci.Scale.Int64)
		}
	case types.String:
		column.Size = first
		if ci.Length.Valid {
			column.Size = int(ci.Length.Int64)
		}
	}

	// sequences and identity columns report their generator as default
	if ci.Default.Valid && !ci.AutoIncrement {
		literal := ci.Default.String
		column.Default = &literal
		if value, err := t.ParseDefault(literal); err == nil {
			column.DefaultValue = value
		} else {
			column.DefaultValue = literal
		}
	}
	return column
}

func isDecimal(dataType string) bool {
	dataType = strings.ToLower(dataType)
	return strings.HasPrefix(dataType, "numeric") || strings.HasPrefix(dataType, "decimal")
}

// typeModifiers parses the (a) or (a,b) suffix of types such as varchar(255) and decimal(10,2)
func typeModifiers(dataType string) (first, second int) {
	start := strings.IndexByte(dataType, '(')
	end := strings.IndexByte(dataType, ')')
	if start < 0 || end < start {
		return 0, 0
	}

	parts := strings.Split(dataType[start+1:end], ",")
	first, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) > 1 {
		second, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return first, second
}

// queryRows scans every row and closes them before returning, so the next catalog query can
// reuse a single connection
func queryRows(ctx context.Context, conn Conn, scan func(rows *sql.Rows) error, query string, args ...interface{}) error {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func queryStrings(ctx context.Context, conn Conn, query string, args ...interface{}) ([]string, error) {
	var values []string
	err := queryRows(ctx, conn, func(rows *sql.Rows) error {
		var value string
		if err := rows.Scan(&value); err != nil {
			return err
		}
		values = append(values, value)
		return nil
	}, query, args...)
	return values, err
}

// indexCollector groups (index, column) catalog rows into indexes, keeping catalog order
type indexCollector struct {
	indexes []*schema.Index
	byName  map[string]*schema.Index
}

func (c *indexCollector) add(name string, unique bool, column string) {
	if c.byName == nil {
		c.byName = map[string]*schema.Index{}
	}
	idx, ok := c.byName[name]
	if !ok {
		idx = &schema.Index{Name: name, Unique: unique}
		c.byName[name] = idx
		c.indexes = append(c.indexes, idx)
	}
	idx.Columns = append(idx.Columns, column)
}

// finishTable flags columns covered by a single column unique index
func finishTable(table *schema.Table) *schema.Table {
	for _, idx := range table.Indexes {
		if idx.Unique && len(idx.Columns) == 1 {
			if column := table.LookUpColumn(idx.Columns[0]); column != nil {
				column.Unique = true
			}
		}
	}
	return table
}
