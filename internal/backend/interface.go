package backend

import (
	"context"
	"slices"

	"depositos/internal/services"
	"depositos/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the wired service, the admin password store and
// the cleanup that releases them.
type BackendResult struct {
	Service   *services.DepositService
	Passwords store.PasswordStore
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config, opts ...services.Option) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional event publishing. Only the sqlite backend publishes, the
	// mirror worker reads the same database.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend specific
	DataDirectory string

	// MovePolicy names the ledger policy for edits that collide with an
	// existing (week, member) entry: "destination" (default) or "migrated".
	MovePolicy string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	return slices.Contains(GetBackendTypes(), bt)
}
