package types

// Store defines the interface for backend-agnostic access to the replica's
// persistent state. Callers attach to a backend, access tables by name, and
// detach when done.
type Store interface {
	// GetTable returns the Table for the given name.
	// Returns ErrTableNotFound if the name is not a standard table.
	GetTable(name string) (Table, error)

	// Attach connects the Store to the backend described by config.
	// Creates the DataDir if it does not exist. Returns ErrAlreadyAttached
	// if called while already attached.
	Attach(config StoreConfig) error

	// Detach releases backend resources. Idempotent: multiple calls succeed.
	// After Detach, operations on tables return ErrStoreDetached.
	Detach() error
}

// Table provides uniform CRUD operations for a single record type. Records
// are keyed by identity ID. Get and Fetch return any; callers type-assert to
// the concrete record struct.
type Table interface {
	// Get retrieves the record for the given identity ID.
	// Returns ErrNotFound if no record exists.
	Get(id string) (any, error)

	// Set creates or replaces the record for id and returns id.
	// Returns ErrInvalidID if id is empty and ErrInvalidData if data is not
	// the table's record type.
	Set(id string, data any) (string, error)

	// Delete removes the record for id.
	// Returns ErrNotFound if no record exists.
	Delete(id string) error

	// Fetch returns all records matching the filter. An empty filter
	// returns every record in the table.
	Fetch(filter map[string]any) ([]any, error)
}
