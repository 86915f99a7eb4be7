package migrator

import (
	"fmt"

	"gorm.io/activeobjects/schema"
)

// ActionType kind of schema change
type ActionType int

const (
	CreateTable ActionType = iota
	DropTable
	AddColumn
	AlterColumn
	DropColumn
	CreateIndex
	DropIndex
	AddForeignKey
	DropForeignKey
)

func (t ActionType) String() string {
	switch t {
	case CreateTable:
		return "create table"
	case DropTable:
		return "drop table"
	case AddColumn:
		return "add column"
	case AlterColumn:
		return "alter column"
	case DropColumn:
		return "drop column"
	case CreateIndex:
		return "create index"
	case DropIndex:
		return "drop index"
	case AddForeignKey:
		return "add foreign key"
	case DropForeignKey:
		return "drop foreign key"
	}
	return "unknown"
}

// Action one schema change. Table is always set, Column, Index and ForeignKey when the type needs them
type Action struct {
	Type       ActionType
	Table      *schema.Table
	Column     *schema.Column
	Index      *schema.Index
	ForeignKey *schema.ForeignKey
}

func (a Action) String() string {
	switch a.Type {
	case AddColumn, AlterColumn, DropColumn:
		return fmt.Sprintf("%s %s.%s", a.Type, a.Table.Name, a.Column.Name)
	case CreateIndex, DropIndex:
		return fmt.Sprintf("%s %s on %s", a.Type, a.Index.Name, a.Table.Name)
	case AddForeignKey, DropForeignKey:
		return fmt.Sprintf("%s %s.%s -> %s.%s", a.Type, a.Table.Name, a.ForeignKey.Column,
			a.ForeignKey.ReferencedTable, a.ForeignKey.ReferencedColumn)
	}
	return fmt.Sprintf("%s %s", a.Type, a.Table.Name)
}

// MigrationError the first action that failed, the actions before it were applied
type MigrationError struct {
	Action    Action
	Statement string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("activeobjects: migration failed to render %s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("activeobjects: migration failed at %s: %v", e.Action, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
