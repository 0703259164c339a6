// Package sqlite provides the public API for the SQLite content repository.
// This package exposes the factory function for creating backends while
// keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/breaklinks/internal/fields"
	"github.com/mesh-intelligence/breaklinks/internal/sqlite"
	"github.com/mesh-intelligence/breaklinks/pkg/types"
)

// Backend is a content repository and link index backed by SQLite.
type Backend = sqlite.Backend

// NewBackend creates a new SQLite backend that indexes links with the
// standard field handlers. The backend is not attached; call Attach with a
// Config to initialize.
//
// Example:
//
//	backend := sqlite.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".breaklinks-db",
//	})
//	defer backend.Detach()
func NewBackend() *Backend {
	return sqlite.NewBackend(fields.NewRegistry())
}

// NewBackendWithRegistry creates a backend that derives links with registry.
func NewBackendWithRegistry(registry types.FieldRegistry) *Backend {
	return sqlite.NewBackend(registry)
}
