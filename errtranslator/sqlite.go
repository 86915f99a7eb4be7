package errtranslator

import (
	"errors"

	"modernc.org/sqlite"
)

// extended result codes, https://www.sqlite.org/rescode.html
var sqliteErrCodes = map[int]Constraint{
	2067: UniqueConstraint,     // SQLITE_CONSTRAINT_UNIQUE
	1555: UniqueConstraint,     // SQLITE_CONSTRAINT_PRIMARYKEY
	787:  ForeignKeyConstraint, // SQLITE_CONSTRAINT_FOREIGNKEY
	275:  CheckConstraint,      // SQLITE_CONSTRAINT_CHECK
}

type SqliteErrTranslator struct{}

func (s *SqliteErrTranslator) Translate(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	if constraint, ok := sqliteErrCodes[sqliteErr.Code()]; ok {
		return &ErrConstraint{Constraint: constraint, Code: sqliteErr.Code(), Message: sqliteErr.Error(), Err: err}
	}
	return err
}
