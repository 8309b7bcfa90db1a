package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sasha-s/go-deadlock"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/sone/pkg/types"
)

// DatabaseFile is the name of the database inside DataDir.
const DatabaseFile = "sone.db"

// Backend implements types.Store on a single SQLite database file.
type Backend struct {
	mu       deadlock.RWMutex
	attached bool
	config   types.StoreConfig
	db       *sql.DB
	tables   map[string]*table
}

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a StoreConfig to initialize.
func NewBackend() *Backend {
	return &Backend{
		tables: make(map[string]*table),
	}
}

// GetTable returns the Table for the specified table name.
// Returns ErrStoreDetached if the backend is not attached and
// ErrTableNotFound if the table name is not recognized.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}

	t, ok := b.tables[name]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return t, nil
}

// Attach opens (or creates) the database in DataDir and applies the schema.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.StoreConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return err
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, DatabaseFile))
	if err != nil {
		return err
	}
	// A single connection serializes writers and keeps the file lock simple.
	db.SetMaxOpenConns(1)

	for _, stmt := range append(append([]string{}, schemaDDL...), indexDDL...) {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true

	for _, name := range types.StandardTableNames {
		b.tables[name] = &table{name: name, backend: b}
	}
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrStoreDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}

	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.attached = false
	b.tables = make(map[string]*table)
	return nil
}
