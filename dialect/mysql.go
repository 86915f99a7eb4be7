package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

type mysql struct {
	common
}

// MySQL dialect for go-sql-driver/mysql, the only one rendering ON UPDATE column clauses
func MySQL() Dialect {
	return &mysql{common{
		name:           "mysql",
		quoteChar:      '`',
		unlimited:      "18446744073709551615",
		alterFK:        true,
		onUpdate:       true,
		emptyInsert:    "() VALUES ()",
		dropForeignKey: "FOREIGN KEY",
		autoIncrement:  "AUTO_INCREMENT",
		dataType:       mysqlDataType,
		bytesLiteral:   hexLiteral,
		expr:           mysqlExpr,
	}}
}

func mysqlDataType(column *schema.Column) string {
	switch column.Kind {
	case types.String:
		size := column.Size
		if size <= 0 {
			size = 255
		}
		if size > 16383 {
			return "longtext"
		}
		return fmt.Sprintf("varchar(%d)", size)
	case types.Int:
		return "bigint"
	case types.Float:
		if column.Precision > 0 {
			return fmt.Sprintf("decimal(%d,%d)", column.Precision, column.Scale)
		}
		return "double"
	case types.Bool:
		return "boolean"
	case types.Time:
		return "datetime(3)"
	case types.Date:
		return "date"
	case types.Bytes:
		return "longblob"
	case types.UUID:
		return "char(36)"
	}
	return customDataType(column)
}

var currentTimestamp = types.Expr("CURRENT_TIMESTAMP")

// mysqlExpr the current timestamp must carry the precision of datetime(3)
func mysqlExpr(column *schema.Column, e types.Expr) string {
	if column.Kind == types.Time && e.Equal(currentTimestamp) {
		return "CURRENT_TIMESTAMP(3)"
	}
	return string(e)
}

func (m *mysql) AlterColumn(table string, column *schema.Column) (string, error) {
	return "ALTER TABLE " + m.Quote(table) + " MODIFY COLUMN " + m.columnDefinition(column, false), nil
}

func (m *mysql) DropIndex(table, index string) (string, error) {
	return "DROP INDEX " + m.Quote(index) + " ON " + m.Quote(table), nil
}

const (
	mysqlTablesSQL = `SELECT TABLE_NAME FROM information_schema.TABLES
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`

	mysqlColumnsSQL = `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT, COLUMN_KEY, EXTRA,
CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? ORDER BY ORDINAL_POSITION`

	mysqlIndexesSQL = `SELECT INDEX_NAME, NON_UNIQUE, COLUMN_NAME FROM information_schema.STATISTICS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND INDEX_NAME <> 'PRIMARY'
ORDER BY INDEX_NAME, SEQ_IN_INDEX`

	mysqlForeignKeysSQL = `SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY CONSTRAINT_NAME`
)

func (m *mysql) Introspect(ctx context.Context, conn Conn, registry *types.Registry) ([]*schema.Table, error) {
	names, err := queryStrings(ctx, conn, mysqlTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	tables := make([]*schema.Table, 0, len(names))
	for _, name := range names {
		table, err := m.introspectTable(ctx, conn, registry, name)
		if err != nil {
			return nil, fmt.Errorf("introspect table %s: %w", name, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (m *mysql) introspectTable(ctx context.Context, conn Conn, registry *types.Registry, name string) (*schema.Table, error) {
	table := &schema.Table{Name: name}
	err := queryRows(ctx, conn, func(rows *sql.Rows) error {
		var (
			info                 columnInfo
			nullable, key, extra string
		)
		if err := rows.Scan(&info.Name, &info.DataType, &nullable, &info.Default, &key, &extra,
			&info.Length, &info.Precision, &info.Scale); err != nil {
			return err
		}
		info.Nullable = nullable == "YES"
		info.PrimaryKey = key == "PRI"

		lower := strings.ToLower(extra)
		info.AutoIncrement = strings.Contains(lower, "auto_increment")
		if idx := strings.Index(lower, "on update "); idx >= 0 {
			info.OnUpdate = strings.TrimSpace(extra[idx+len("on update "):])
		}
		table.Columns = append(table.Columns, info.column(registry))
		return nil
	}, mysqlColumnsSQL, name)
	if err != nil {
		return nil, err
	}

	err = queryRows(ctx, conn, func(rows *sql.Rows) error {
		var fk schema.ForeignKey
		if err := rows.Scan(&fk.Name, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return err
		}
		table.ForeignKeys = append(table.ForeignKeys, &fk)
		return nil
	}, mysqlForeignKeysSQL, name)
	if err != nil {
		return nil, err
	}

	var collector indexCollector
	err = queryRows(ctx, conn, func(rows *sql.Rows) error {
		var (
			index, column string
			nonUnique     int
		)
		if err := rows.Scan(&index, &nonUnique, &column); err != nil {
			return err
		}
		// InnoDB backs foreign keys without a usable index with one named after the constraint
		for _, fk := range table.ForeignKeys {
			if fk.Name == index {
				return nil
			}
		}
		collector.add(index, nonUnique == 0, column)
		return nil
	}, mysqlIndexesSQL, name)
	if err != nil {
		return nil, err
	}
	table.Indexes = collector.indexes

	return finishTable(table), nil
}
