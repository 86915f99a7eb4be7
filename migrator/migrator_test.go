package migrator_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"gorm.io/activeobjects/dialect"
	"gorm.io/activeobjects/logger"
	"gorm.io/activeobjects/migrator"
	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

func definitions() []schema.EntityDef {
	return []schema.EntityDef{
		{Name: "Person", Fields: []schema.FieldDef{
			{Name: "Name", Type: types.String, NotNull: true, Index: true},
			{Name: "Age", Type: types.Int, Default: schema.Default("0")},
			{Name: "Joined", Type: types.Time, Default: schema.Default("CURRENT_TIMESTAMP")},
			{Name: "Pens", HasMany: "Pen"},
			{Name: "Families", ManyToMany: "Family", Through: "PersonFamily"},
		}},
		{Name: "PersonFamily", Fields: []schema.FieldDef{
			{Name: "Person", References: "Person"},
			{Name: "Family", References: "Family"},
		}},
		{Name: "Pen", Fields: []schema.FieldDef{
			{Name: "Ink", Type: types.Float, Default: schema.Default("1.5")},
			{Name: "Deleted", Type: types.Bool, Default: schema.Default("false")},
			{Name: "Person", References: "Person"},
		}},
		{Name: "Family", Fields: []schema.FieldDef{
			{Name: "Name", Type: types.String, Unique: true},
		}},
		{Name: "Token", PrimaryKeyType: types.UUID, Fields: []schema.FieldDef{
			{Name: "Secret", Type: types.Bytes},
			{Name: "Expires", Type: types.Date},
		}},
	}
}

func tables(t *testing.T, defs []schema.EntityDef) []*schema.Table {
	t.Helper()
	registry := schema.NewRegistry(schema.NamingStrategy{}, nil, nil)
	_, err := registry.Register(defs...)
	require.NoError(t, err)
	tables, err := registry.Tables()
	require.NoError(t, err)
	return tables
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	var (
		ctx = context.Background()
		db  = openSQLite(t)
		m   = migrator.New(dialect.SQLite(), nil, logger.Discard, migrator.Options{})
	)

	applied, err := m.Migrate(ctx, db, tables(t, definitions()))
	require.NoError(t, err)
	assert.NotEmpty(t, applied)

	planned, err := m.Plan(ctx, db, tables(t, definitions()))
	require.NoError(t, err)
	assert.Empty(t, planned, "migrating twice issues no statement")

	applied, err = m.Migrate(ctx, db, tables(t, definitions()))
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestMigrate_AddColumnAndIndex(t *testing.T) {
	var (
		ctx = context.Background()
		db  = openSQLite(t)
		m   = migrator.New(dialect.SQLite(), nil, logger.Discard, migrator.Options{})
	)
	_, err := m.Migrate(ctx, db, tables(t, definitions()))
	require.NoError(t, err)

	defs := definitions()
	defs[2].Fields = append(defs[2].Fields, schema.FieldDef{Name: "Color", Type: types.String, Index: true})

	applied, err := m.Migrate(ctx, db, tables(t, defs))
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, "add column pens.color", applied[0].String())
	assert.Equal(t, "create index idx_pens_color on pens", applied[1].String())

	_, err = db.ExecContext(ctx, `INSERT INTO "pens" ("color") VALUES ('red')`)
	require.NoError(t, err)
}

func TestMigrate_StopsAtFirstFailure(t *testing.T) {
	var (
		ctx = context.Background()
		db  = openSQLite(t)
		m   = migrator.New(dialect.SQLite(), nil, logger.Discard, migrator.Options{})
	)
	_, err := m.Migrate(ctx, db, tables(t, definitions()))
	require.NoError(t, err)

	defs := definitions()
	defs[0].Fields[1] = schema.FieldDef{Name: "Age", Type: types.Int, NotNull: true}
	defs[2].Fields = append(defs[2].Fields, schema.FieldDef{Name: "Color", Type: types.String})

	applied, err := m.Migrate(ctx, db, tables(t, defs))
	require.Error(t, err)

	var migrationErr *migrator.MigrationError
	require.True(t, errors.As(err, &migrationErr))
	assert.Equal(t, migrator.AlterColumn, migrationErr.Action.Type)
	assert.Empty(t, migrationErr.Statement, "sqlite can't render the statement")
	assert.ErrorIs(t, err, dialect.ErrUnsupported)
	require.Len(t, applied, 1, "actions sorted before the failure ran")
	assert.Equal(t, migrator.AddColumn, applied[0].Type)
}

func TestMigrate_ExecutionFailure(t *testing.T) {
	var (
		ctx = context.Background()
		db  = openSQLite(t)
		m   = migrator.New(dialect.SQLite(), nil, logger.Discard, migrator.Options{})
	)
	_, err := m.Migrate(ctx, db, tables(t, definitions()))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO "families" ("name") VALUES ('a')`)
	require.NoError(t, err)

	defs := definitions()
	defs[3].Fields = append(defs[3].Fields, schema.FieldDef{Name: "Motto", Type: types.String, NotNull: true})

	_, err = m.Migrate(ctx, db, tables(t, defs))
	var migrationErr *migrator.MigrationError
	require.True(t, errors.As(err, &migrationErr))
	assert.Equal(t, `ALTER TABLE "families" ADD COLUMN "motto" text NOT NULL`, migrationErr.Statement)
}

func TestMigrate_DropTables(t *testing.T) {
	var (
		ctx = context.Background()
		db  = openSQLite(t)
	)
	_, err := migrator.New(dialect.SQLite(), nil, logger.Discard, migrator.Options{}).Migrate(ctx, db, tables(t, definitions()))
	require.NoError(t, err)

	defs := definitions()[:4]
	m := migrator.New(dialect.SQLite(), nil, logger.Discard, migrator.Options{DropTables: true})
	applied, err := m.Migrate(ctx, db, tables(t, defs))
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "drop table tokens", applied[0].String())
}
