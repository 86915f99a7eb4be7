package errtranslator

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var mysqlErrCodes = map[uint16]Constraint{
	1062: UniqueConstraint,
	1451: ForeignKeyConstraint,
	1452: ForeignKeyConstraint,
	3819: CheckConstraint,
}

type MysqlErrTranslator struct{}

func (m *MysqlErrTranslator) Translate(err error) error {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}

	if constraint, ok := mysqlErrCodes[mysqlErr.Number]; ok {
		return &ErrConstraint{Constraint: constraint, Code: mysqlErr.Number, Message: mysqlErr.Message, Err: err}
	}
	return err
}
