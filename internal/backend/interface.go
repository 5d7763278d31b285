package backend

import (
	"context"
	"time"

	"github.com/galexy/revivo-mk1-sub001/internal/repository"
	"github.com/galexy/revivo-mk1-sub001/internal/services"
)

// CleanupFunc releases the resources held by a backend.
type CleanupFunc func() error

// BackendResult contains the wired ledger, the store behind it and the
// cleanup that closes both.
type BackendResult struct {
	Ledger  *services.Ledger
	Store   repository.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the store and event publisher described by config
	// and wires a ledger on top of them.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Event publishing; an empty URL logs events instead.
	AMQPURL      string
	AMQPExchange string

	CategoryCacheSize int
	CategoryCacheTTL  time.Duration

	// Zero disables the periodic sweep of expired cache entries.
	CacheCleanupInterval time.Duration
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
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
