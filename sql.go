package activeobjects

import (
	"context"
	"database/sql"
	"time"

	"gorm.io/activeobjects/dialect"
	"gorm.io/activeobjects/logger"
)

// withConn runs fc on a connection acquired for this statement group only
func (em *EntityManager) withConn(ctx context.Context, fc func(conn dialect.Conn) error) (err error) {
	conn, err := em.provider.Acquire(ctx)
	if err != nil {
		return &PersistenceError{Op: "acquire connection", Err: err}
	}
	defer func() {
		if rerr := em.provider.Release(conn); rerr != nil && err == nil {
			err = &PersistenceError{Op: "release connection", Err: rerr}
		}
	}()
	return fc(conn)
}

func (em *EntityManager) persistenceErr(op, stmt string, err error) error {
	return &PersistenceError{Op: op, SQL: stmt, Err: TranslateErr(em.dialect.Name(), err)}
}

func (em *EntityManager) trace(ctx context.Context, begin time.Time, stmt string, args []interface{}, rows int64, err error) {
	em.Logger.Trace(ctx, begin, func() (string, int64) {
		if filter, ok := em.Logger.(logger.ParamsFilter); ok {
			stmt, args = filter.ParamsFilter(ctx, stmt, args...)
		}
		return logger.ExplainSQL(stmt, em.placeholder, `'`, args...), rows
	}, err)
}

// exec runs one statement written with ? placeholders
func (em *EntityManager) exec(ctx context.Context, conn dialect.Conn, op, stmt string, args ...interface{}) (sql.Result, error) {
	stmt = em.dialect.Rebind(stmt)

	begin := time.Now()
	result, err := conn.ExecContext(ctx, stmt, args...)
	rows := int64(-1)
	if err == nil {
		if n, rerr := result.RowsAffected(); rerr == nil {
			rows = n
		}
	}
	em.trace(ctx, begin, stmt, args, rows, err)

	if err != nil {
		return nil, em.persistenceErr(op, stmt, err)
	}
	return result, nil
}

// queryRows runs a query and hands every row to scan as raw driver values. The rows are closed
// before it returns
func (em *EntityManager) queryRows(ctx context.Context, conn dialect.Conn, op, stmt string, args []interface{},
	scan func(columns []string, values []interface{}) error) (err error) {
	stmt = em.dialect.Rebind(stmt)

	var (
		begin = time.Now()
		count int64
	)
	defer func() {
		em.trace(ctx, begin, stmt, args, count, err)
		if err != nil {
			if _, ok := err.(*PersistenceError); !ok {
				err = em.persistenceErr(op, stmt, err)
			}
		}
	}()

	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		count++
		if err := scan(columns, values); err != nil {
			return err
		}
	}
	return rows.Err()
}

// bindArgs replaces handles by their primary key
func bindArgs(args []interface{}) []interface{} {
	bound := make([]interface{}, len(args))
	for i, arg := range args {
		if h, ok := arg.(*Handle); ok && h != nil {
			arg, _ = h.descriptor.PrimaryKey.Type.ToDatabase(h.identity.ID)
		}
		bound[i] = arg
	}
	return bound
}
