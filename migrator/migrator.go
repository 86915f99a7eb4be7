package migrator

import (
	"context"
	"fmt"
	"time"

	"gorm.io/activeobjects/dialect"
	"gorm.io/activeobjects/logger"
	"gorm.io/activeobjects/schema"
	"gorm.io/activeobjects/types"
)

// Migrator brings a live schema in line with a set of tables
type Migrator struct {
	Dialect dialect.Dialect
	Types   *types.Registry
	Logger  logger.Interface
	Options Options
}

// New creates a migrator, nil registry and logger default to the built-in types and logger.Default
func New(d dialect.Dialect, registry *types.Registry, log logger.Interface, opts Options) *Migrator {
	if registry == nil {
		registry = types.NewRegistry()
	}
	if log == nil {
		log = logger.Default
	}
	return &Migrator{Dialect: d, Types: registry, Logger: log, Options: opts}
}

// Plan introspects the live schema and returns the sorted actions a migration would run.
// Planning right after a migration returns no action
func (m *Migrator) Plan(ctx context.Context, conn dialect.Conn, tables []*schema.Table) ([]Action, error) {
	live, err := m.Dialect.Introspect(ctx, conn, m.Types)
	if err != nil {
		return nil, fmt.Errorf("activeobjects: introspect schema: %w", err)
	}
	return Sort(Diff(tables, live, m.Dialect, m.Types, m.Options)), nil
}

// Statement renders the DDL of one action
func (m *Migrator) Statement(a Action) (string, error) {
	d := m.Dialect
	switch a.Type {
	case CreateTable:
		return d.CreateTable(a.Table)
	case DropTable:
		return d.DropTable(a.Table.Name)
	case AddColumn:
		return d.AddColumn(a.Table.Name, a.Column, a.ForeignKey)
	case AlterColumn:
		return d.AlterColumn(a.Table.Name, a.Column)
	case DropColumn:
		return d.DropColumn(a.Table.Name, a.Column.Name)
	case CreateIndex:
		return d.CreateIndex(a.Table.Name, a.Index)
	case DropIndex:
		return d.DropIndex(a.Table.Name, a.Index.Name)
	case AddForeignKey:
		return d.AddForeignKey(a.Table.Name, a.ForeignKey)
	case DropForeignKey:
		return d.DropForeignKey(a.Table.Name, a.ForeignKey.Name)
	}
	return "", fmt.Errorf("%w: action %s", dialect.ErrUnsupported, a.Type)
}

// Migrate plans and runs the actions one statement at a time. The first failure stops the run
// and is returned as a *MigrationError, applied holds the actions that ran before it
func (m *Migrator) Migrate(ctx context.Context, conn dialect.Conn, tables []*schema.Table) (applied []Action, err error) {
	actions, err := m.Plan(ctx, conn, tables)
	if err != nil {
		return nil, err
	}

	for _, action := range actions {
		stmt, err := m.Statement(action)
		if err != nil {
			return applied, &MigrationError{Action: action, Err: err}
		}

		begin := time.Now()
		_, err = conn.ExecContext(ctx, stmt)
		m.Logger.Trace(ctx, begin, func() (string, int64) { return stmt, -1 }, err)
		if err != nil {
			return applied, &MigrationError{Action: action, Statement: stmt, Err: err}
		}
		applied = append(applied, action)
	}

	if len(applied) > 0 {
		m.Logger.Info(ctx, "migration applied %d actions", len(applied))
	}
	return applied, nil
}
