// Package store owns the authoritative post collection and hands out copies.
package store

import (
	"context"
	"fmt"

	"postfeed/models"
)

// Store is the record store contract. Implementations must make Insert an
// atomic next-id-then-append unit so concurrent creates never share an id.
type Store interface {
	ListAll(ctx context.Context) ([]models.Post, error)
	FindByID(ctx context.Context, id int) (models.Post, error)
	NextID(ctx context.Context) (int, error)
	Append(ctx context.Context, post models.Post) error
	Insert(ctx context.Context, build func(id int) models.Post) (models.Post, error)
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	DSN    string
}

// Open builds the backend named by opts.Driver.
func Open(opts Options) (Store, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		return OpenGorm(opts.Driver, opts.DSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}

// nextID is the id rule shared by every backend: one past the current
// maximum, or 1 for an empty collection.
func nextID(maxID int) int {
	if maxID < 1 {
		return 1
	}
	return maxID + 1
}
