package activeobjects

import (
	"errors"
	"fmt"

	"gorm.io/activeobjects/logger"
	"gorm.io/activeobjects/schema"
)

var (
	// ErrRecordNotFound record not found error
	ErrRecordNotFound = logger.ErrRecordNotFound
	// ErrUnknownEntity entity type not registered
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrUnknownField field not declared by the entity
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidValue value can't be stored in the field
	ErrInvalidValue = errors.New("invalid value")
	// ErrDuplicatedKey occurs when there is a unique key constraint violation
	ErrDuplicatedKey = errors.New("duplicated key not allowed")
	// ErrForeignKeyViolated occurs when there is a foreign key constraint violation
	ErrForeignKeyViolated = errors.New("violates foreign key constraint")
	// ErrCheckConstraintViolated occurs when there is a check constraint violation
	ErrCheckConstraintViolated = errors.New("violates check constraint")
	// ErrPersistence matches every PersistenceError with errors.Is
	ErrPersistence = errors.New("persistence error")
	// ErrConfiguration matches every ConfigurationError with errors.Is
	ErrConfiguration = schema.ErrConfiguration
)

// ConfigurationError an entity definition or schema that can't be built
type ConfigurationError = schema.ConfigurationError

// PersistenceError a statement or connection failure. The caches are left as they were
type PersistenceError struct {
	Op  string
	SQL string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.SQL == "" {
		return fmt.Sprintf("activeobjects: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("activeobjects: %s: %v [%s]", e.Op, e.Err, e.SQL)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func unknownEntity(name string) error {
	return fmt.Errorf("activeobjects: %w %s", ErrUnknownEntity, name)
}

func unknownField(entity, field string) error {
	return fmt.Errorf("activeobjects: %w %s.%s", ErrUnknownField, entity, field)
}

func invalidValue(entity, field string, format string, args ...interface{}) error {
	return fmt.Errorf("activeobjects: %w for %s.%s: %s", ErrInvalidValue, entity, field, fmt.Sprintf(format, args...))
}
