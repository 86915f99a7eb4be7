package errtranslator

import "fmt"

type ErrTranslator interface {
	Translate(err error) error
}

// Constraint kind of integrity constraint a statement violated
type Constraint int

const (
	UniqueConstraint Constraint = iota + 1
	ForeignKeyConstraint
	CheckConstraint
)

func (c Constraint) String() string {
	switch c {
	case UniqueConstraint:
		return "unique"
	case ForeignKeyConstraint:
		return "foreign key"
	case CheckConstraint:
		return "check"
	}
	return "unknown"
}

// ErrConstraint a driver error recognised as a constraint violation, it unwraps to the driver error
type ErrConstraint struct {
	Constraint Constraint
	Code       interface{}
	Message    string
	Err        error
}

func (e *ErrConstraint) Error() string {
	return fmt.Sprintf("%s constraint violated, code: %v, message: %s", e.Constraint, e.Code, e.Message)
}

func (e *ErrConstraint) Unwrap() error {
	return e.Err
}
