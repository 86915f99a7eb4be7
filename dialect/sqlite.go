package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

type sqlite struct {
	common
}

// SQLite dialect for modernc.org/sqlite. Foreign keys are declared inline and ALTER COLUMN is
// unsupported
func SQLite() Dialect {
	return &sqlite{common{
		name:              "sqlite",
		quoteChar:         '"',
		unlimited:         "-1",
		returning:         true,
		inlinePrimaryKey:  true,
		inlineForeignKeys: true,
		emptyInsert:       "DEFAULT VALUES",
		dataType:          sqliteDataType,
		bytesLiteral:      hexLiteral,
		expr:              sqliteExpr,
	}}
}

func sqliteDataType(column *schema.Column) string {
	switch column.Kind {
	case types.String:
		return "text"
	case types.Int:
		return "integer"
	case types.Float:
		return "real"
	case types.Bool:
		return "boolean"
	case types.Time:
		return "datetime"
	case types.Date:
		return "date"
	case types.Bytes:
		return "blob"
	case types.UUID:
		return "uuid"
	}
	return customDataType(column)
}

// customDataType kinds registered by users are rendered by name, e.g. money
func customDataType(column *schema.Column) string {
	if column.DatabaseType != "" {
		return column.DatabaseType
	}
	if column.Kind == types.Generic {
		return "text"
	}
	return strings.ToLower(string(column.Kind))
}

// sqliteExpr function calls must be parenthesized in a column default
func sqliteExpr(_ *schema.Column, e types.Expr) string {
	if strings.Contains(string(e), "(") && !strings.HasPrefix(strings.TrimSpace(string(e)), "(") {
		return "(" + string(e) + ")"
	}
	return string(e)
}

func (s *sqlite) Introspect(ctx context.Context, conn Conn, registry *types.Registry) ([]*schema.Table, error) {
	names, err := queryStrings(ctx, conn,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	tables := make([]*schema.Table, 0, len(names))
	for _, name := range names {
		table, err := s.introspectTable(ctx, conn, registry, name)
		if err != nil {
			return nil, fmt.Errorf("introspect table %s: %w", name, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (s *sqlite) introspectTable(ctx context.Context, conn Conn, registry *types.Registry, name string) (*schema.Table, error) {
	var createSQL string
	if err := conn.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&createSQL); err != nil {
		return nil, err
	}

	var (
		infos       []columnInfo
		primaryKeys int
	)
	err := queryRows(ctx, conn, func(rows *sql.Rows) error {
		var (
			info    columnInfo
			notNull int
			pk      int
		)
		if err := rows.Scan(&info.Name, &info.DataType, &notNull, &info.Default, &pk); err != nil {
			return err
		}
		info.Nullable, info.PrimaryKey = notNull == 0, pk > 0
		if info.PrimaryKey {
			primaryKeys++
		}
		infos = append(infos, info)
		return nil
	}, `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, name)
	if err != nil {
		return nil, err
	}

	table := &schema.Table{Name: name}
	autoIncrement := strings.Contains(strings.ToUpper(createSQL), "AUTOINCREMENT")
	for _, info := range infos {
		// only a lone INTEGER PRIMARY KEY aliases the rowid
		if info.PrimaryKey && primaryKeys == 1 && autoIncrement && strings.EqualFold(info.DataType, "integer") {
			info.AutoIncrement = true
		}
		table.Columns = append(table.Columns, info.column(registry))
	}

	type indexInfo struct {
		name   string
		unique bool
	}
	var indexes []indexInfo
	err = queryRows(ctx, conn, func(rows *sql.Rows) error {
		var (
			idx    indexInfo
			unique int
			origin string
		)
		if err := rows.Scan(&idx.name, &unique, &origin); err != nil {
			return err
		}
		if origin == "pk" || strings.HasPrefix(idx.name, "sqlite_autoindex_") {
			return nil
		}
		idx.unique = unique != 0
		indexes = append(indexes, idx)
		return nil
	}, `SELECT name, "unique", origin FROM pragma_index_list(?) ORDER BY name`, name)
	if err != nil {
		return nil, err
	}

	var collector indexCollector
	for _, idx := range indexes {
		columns, err := queryStrings(ctx, conn, "SELECT name FROM pragma_index_info(?) ORDER BY seqno", idx.name)
		if err != nil {
			return nil, err
		}
		for _, column := range columns {
			collector.add(idx.name, idx.unique, column)
		}
	}
	table.Indexes = collector.indexes

	err = queryRows(ctx, conn, func(rows *sql.Rows) error {
		var (
			fk schema.ForeignKey
			to sql.NullString
		)
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &to); err != nil {
			return err
		}
		fk.ReferencedColumn = to.String
		table.ForeignKeys = append(table.ForeignKeys, &fk)
		return nil
	}, `SELECT "from", "table", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`, name)
	if err != nil {
		return nil, err
	}

	return finishTable(table), nil
}
