// Package sqlite provides the public factory for the SQLite store backend
// while keeping implementation details internal.
package sqlite

import (
	"github.com/mesh-intelligence/sone/internal/sqlite"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a StoreConfig to initialize.
//
// Example:
//
//	store := sqlite.NewBackend()
//	err := store.Attach(types.StoreConfig{
//	    Backend: types.BackendSQLite,
//	    DataDir: dataDir,
//	})
//	defer store.Detach()
func NewBackend() types.Store {
	return sqlite.NewBackend()
}
