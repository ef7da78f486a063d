package backend

import (
	"context"

	"hisab/internal/ports"
)

// Backend represents a unified backend interface that provides all necessary operations
type Backend interface {
	ports.TransactionTable
	ports.Identity
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function.
// Backend is nil when Configured is false.
type BackendResult struct {
	Backend    Backend
	Configured bool
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// Supabase specific
	SupabaseURL     string
	SupabaseAnonKey string

	// Memory backend specific
	DataDirectory string
}

// BackendType represents the type of backend
type BackendType string

const (
	SupabaseBackend BackendType = "supabase"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SupabaseBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
