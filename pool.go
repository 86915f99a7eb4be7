package activeobjects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"gorm.io/activeobjects/dialect"
)

var validate = validator.New()

// PoolConfig database/sql pool settings used by OpenDB, zero values keep the database/sql defaults
type PoolConfig struct {
	MaxOpenConns    int           `validate:"gte=0"`
	MaxIdleConns    int           `validate:"gte=0"`
	ConnMaxLifetime time.Duration `validate:"gte=0"`
	// PingTimeout bounds the ping OpenDB issues, 0 skips the ping
	PingTimeout time.Duration `validate:"gte=0"`
}

// Validate checks the pool settings
func (c PoolConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, fe := range verrs {
			msgs[i] = fe.Field() + " must satisfy " + fe.Tag() + "=" + fe.Param()
		}
		return fmt.Errorf("activeobjects: invalid pool config: %s", strings.Join(msgs, ", "))
	}
	return err
}

// DBProvider provides connections from a *sql.DB pool, each acquisition pins one connection
type DBProvider struct {
	DB *sql.DB
}

func (p *DBProvider) Acquire(ctx context.Context) (dialect.Conn, error) {
	return p.DB.Conn(ctx)
}

func (p *DBProvider) Release(conn dialect.Conn) error {
	if c, ok := conn.(*sql.Conn); ok {
		return c.Close()
	}
	return nil
}

// Close closes the pool
func (p *DBProvider) Close() error {
	return p.DB.Close()
}

// OpenDB opens a database/sql pool for a driver registered by the dialect package and creates an
// entity manager on top of it
func OpenDB(driverName, dsn string, pool PoolConfig, opts ...Option) (*EntityManager, error) {
	d, err := dialect.Open(driverName)
	if err != nil {
		return nil, err
	}
	if err := pool.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, &PersistenceError{Op: "open database", Err: err}
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	if pool.PingTimeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), pool.PingTimeout)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, &PersistenceError{Op: "ping database", Err: err}
		}
	}

	em, err := Open(d, &DBProvider{DB: db}, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return em, nil
}
