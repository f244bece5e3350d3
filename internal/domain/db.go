package domain

import "context"

// Database is the lifecycle of the backing store: schema migrations and
// shutdown. Repositories are obtained from the concrete implementation.
type Database interface {
	Migrate(ctx context.Context) error
	Close() error
}
