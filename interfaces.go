package activeobjects

import (
	"context"

	"gorm.io/activeobjects/dialect"
)

// ConnectionProvider hands out a connection for one group of statements. The manager releases
// every connection it acquires before returning, whatever the outcome
type ConnectionProvider interface {
	Acquire(ctx context.Context) (dialect.Conn, error)
	Release(conn dialect.Conn) error
}
