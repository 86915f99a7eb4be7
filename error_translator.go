package activeobjects

import (
	"errors"
	"fmt"

	"gorm.io/activeobjects/errtranslator"
)

// TranslateErr maps constraint violations reported by the driver of dialect to ErrDuplicatedKey,
// ErrForeignKeyViolated and ErrCheckConstraintViolated. The driver error stays reachable with errors.As
func TranslateErr(dialect string, err error) error {
	var errTranslator errtranslator.ErrTranslator

	switch dialect {
	case "sqlite":
		errTranslator = &errtranslator.SqliteErrTranslator{}
	case "postgres":
		errTranslator = &errtranslator.PostgresErrTranslator{}
	case "mysql":
		errTranslator = &errtranslator.MysqlErrTranslator{}
	}

	if errTranslator == nil {
		return err
	}

	var constraintErr *errtranslator.ErrConstraint
	if !errors.As(errTranslator.Translate(err), &constraintErr) {
		return err
	}
	switch constraintErr.Constraint {
	case errtranslator.UniqueConstraint:
		return fmt.Errorf("%w: %w", ErrDuplicatedKey, constraintErr)
	case errtranslator.ForeignKeyConstraint:
		return fmt.Errorf("%w: %w", ErrForeignKeyViolated, constraintErr)
	case errtranslator.CheckConstraint:
		return fmt.Errorf("%w: %w", ErrCheckConstraintViolated, constraintErr)
	}
	return err
}
