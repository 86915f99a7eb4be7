package errtranslator

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

var postgresErrCodes = map[string]Constraint{
	"23505": UniqueConstraint,
	"23503": ForeignKeyConstraint,
	"23514": CheckConstraint,
}

// PostgresErrTranslator understands both pgx and lib/pq errors
type PostgresErrTranslator struct{}

func (p *PostgresErrTranslator) Translate(err error) error {
	var (
		code, message string
		pgErr         *pgconn.PgError
		pqErr         *pq.Error
	)
	switch {
	case errors.As(err, &pgErr):
		code, message = pgErr.Code, pgErr.Message
	case errors.As(err, &pqErr):
		code, message = string(pqErr.Code), pqErr.Message
	default:
		return err
	}

	if constraint, ok := postgresErrCodes[code]; ok {
		return &ErrConstraint{Constraint: constraint, Code: code, Message: message, Err: err}
	}
	return err
}
