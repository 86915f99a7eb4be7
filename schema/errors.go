package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration matches every ConfigurationError with errors.Is
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError an entity description that can't be turned into a descriptor or a schema
type ConfigurationError struct {
	Entity string
	Field  string
	Err    error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Entity == "":
		return fmt.Sprintf("activeobjects: %v", e.Err)
	case e.Field == "":
		return fmt.Sprintf("activeobjects: invalid entity %s: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("activeobjects: invalid field %s.%s: %v", e.Entity, e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErr(entity, field string, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Entity: entity, Field: field, Err: fmt.Errorf(format, args...)}
}

// CycleError entities referencing each other, Path starts and ends with the same entity
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "circular dependency between entities " + strings.Join(e.Path, " -> ")
}

// Entities the distinct entities of the cycle
func (e *CycleError) Entities() []string {
	if len(e.Path) > 1 && e.Path[0] == e.Path[len(e.Path)-1] {
		return e.Path[:len(e.Path)-1]
	}
	return e.Path
}
