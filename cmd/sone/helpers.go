// Shared helpers for sone CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mesh-intelligence/sone/internal/sqlite"
	"github.com/mesh-intelligence/sone/pkg/types"
)

// attachBackend creates a SQLite backend rooted at dataDir and attaches it.
// The caller must defer backend.Detach().
func attachBackend(dataDir string) (*sqlite.Backend, error) {
	backend := sqlite.NewBackend()
	if err := backend.Attach(types.StoreConfig{Backend: types.BackendSQLite, DataDir: dataDir}); err != nil {
		return nil, fmt.Errorf("attach backend: %w", err)
	}
	return backend, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
