package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

type postgres struct {
	common
}

// Postgres dialect for the pgx and lib/pq drivers
func Postgres() Dialect {
	return &postgres{common{
		name:           "postgres",
		quoteChar:      '"',
		numbered:       true,
		returning:      true,
		alterFK:        true,
		emptyInsert:    "DEFAULT VALUES",
		dropForeignKey: "CONSTRAINT",
		dataType:       postgresDataType,
		bytesLiteral: func(b []byte) string {
			return `'\x` + strings.TrimPrefix(hexLiteral(b), "X'")
		},
		expr: func(_ *schema.Column, e types.Expr) string { return string(e) },
	}}
}

func postgresDataType(column *schema.Column) string {
	switch column.Kind {
	case types.String:
		if column.Size > 0 {
			return fmt.Sprintf("varchar(%d)", column.Size)
		}
		return "text"
	case types.Int:
		if column.AutoIncrement {
			return "bigserial"
		}
		return "bigint"
	case types.Float:
		if column.Precision > 0 {
			return fmt.Sprintf("numeric(%d,%d)", column.Precision, column.Scale)
		}
		return "double precision"
	case types.Bool:
		return "boolean"
	case types.Time:
		return "timestamptz"
	case types.Date:
		return "date"
	case types.Bytes:
		return "bytea"
	case types.UUID:
		return "uuid"
	}
	return customDataType(column)
}

// AlterColumn converts the type with USING and resets nullability and default in one statement
func (p *postgres) AlterColumn(table string, column *schema.Column) (string, error) {
	var (
		name  = p.Quote(column.Name)
		typ   = postgresDataType(column)
		parts []string
	)
	if column.AutoIncrement {
		typ = "bigint"
	}
	parts = append(parts, "ALTER COLUMN "+name+" TYPE "+typ+" USING "+name+"::"+typ)

	if column.NotNull || column.PrimaryKey {
		parts = append(parts, "ALTER COLUMN "+name+" SET NOT NULL")
	} else {
		parts = append(parts, "ALTER COLUMN "+name+" DROP NOT NULL")
	}

	if !column.AutoIncrement {
		if column.Default != nil {
			parts = append(parts, "ALTER COLUMN "+name+" SET DEFAULT "+p.defaultSQL(column))
		} else {
			parts = append(parts, "ALTER COLUMN "+name+" DROP DEFAULT")
		}
	}
	return "ALTER TABLE " + p.Quote(table) + " " + strings.Join(parts, ", "), nil
}

const (
	postgresTablesSQL = `SELECT table_name FROM information_schema.tables
WHERE table_schema = CURRENT_SCHEMA() AND table_type = 'BASE TABLE' ORDER BY table_name`

	postgresColumnsSQL = `SELECT column_name, data_type, udt_name, is_nullable, column_default,
character_maximum_length, numeric_precision, numeric_scale, is_identity
FROM information_schema.columns
WHERE table_schema = CURRENT_SCHEMA() AND table_name = $1 ORDER BY ordinal_position`

	postgresPrimaryKeySQL = `SELECT kcu.column_name FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.table_schema = CURRENT_SCHEMA() AND tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'`

	postgresIndexesSQL = `SELECT ic.relname, ix.indisunique, a.attname
FROM pg_class t
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_index ix ON ix.indrelid = t.oid
JOIN pg_class ic ON ic.oid = ix.indexrelid
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
WHERE n.nspname = CURRENT_SCHEMA() AND t.relname = $1 AND NOT ix.indisprimary
ORDER BY ic.relname, array_position(ix.indkey::int2[], a.attnum)`

	postgresForeignKeysSQL = `SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = CURRENT_SCHEMA() AND tc.table_name = $1
ORDER BY tc.constraint_name`
)

func (p *postgres) Introspect(ctx context.Context, conn Conn, registry *types.Registry) ([]*schema.Table, error) {
	names, err := queryStrings(ctx, conn, postgresTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	tables := make([]*schema.Table, 0, len(names))
	for _, name := range names {
		table, err := p.introspectTable(ctx, conn, registry, name)
		if err != nil {
			return nil, fmt.Errorf("introspect table %s: %w", name, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (p *postgres) introspectTable(ctx context.Context, conn Conn, registry *types.Registry, name string) (*schema.Table, error) {
	primaryKeys, err := queryStrings(ctx, conn, postgresPrimaryKeySQL, name)
	if err != nil {
		return nil, err
	}

	table := &schema.Table{Name: name}
	err = queryRows(ctx, conn, func(rows *sql.Rows) error {
		var (
			info              columnInfo
			udtName, nullable string
			identity          sql.NullString
		)
		if err := rows.Scan(&info.Name, &info.DataType, &udtName, &nullable, &info.Default,
			&info.Length, &info.Precision, &info.Scale, &identity); err != nil {
			return err
		}
		if info.DataType == "USER-DEFINED" || info.DataType == "ARRAY" {
			info.DataType = udtName
		}
		info.Nullable = nullable == "YES"
		info.PrimaryKey = containsFold(primaryKeys, info.Name)
		info.AutoIncrement = identity.String == "YES" ||
			(info.Default.Valid && strings.HasPrefix(info.Default.String, "nextval("))
		table.Columns = append(table.Columns, info.column(registry))
		return nil
	}, postgresColumnsSQL, name)
	if err != nil {
		return nil, err
	}

	var collector indexCollector
	err = queryRows(ctx, conn, func(rows *sql.Rows) error {
		var (
			index, column string
			unique        bool
		)
		if err := rows.Scan(&index, &unique, &column); err != nil {
			return err
		}
		collector.add(index, unique, column)
		return nil
	}, postgresIndexesSQL, name)
	if err != nil {
		return nil, err
	}
	table.Indexes = collector.indexes

	err = queryRows(ctx, conn, func(rows *sql.Rows) error {
		var fk schema.ForeignKey
		if err := rows.Scan(&fk.Name, &fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return err
		}
		table.ForeignKeys = append(table.ForeignKeys, &fk)
		return nil
	}, postgresForeignKeysSQL, name)
	if err != nil {
		return nil, err
	}

	return finishTable(table), nil
}

func containsFold(values []string, value string) bool {
	for _, v := range values {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}
