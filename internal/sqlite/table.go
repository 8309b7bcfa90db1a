package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/sone/pkg/types"
)

var _ types.Table = (*table)(nil)

// table implements types.Table for a single record type. Every table is
// keyed by identity ID.
type table struct {
	name    string   // Table name (e.g. "editions").
	backend *Backend // Parent backend for DB access.
}

// Get retrieves the record for an identity.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (t *table) Get(id string) (any, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return nil, types.ErrStoreDetached
	}

	switch t.name {
	case types.EditionsTable:
		return t.getEdition(id)
	case types.FingerprintsTable:
		return t.getFingerprint(id)
	case types.DocumentsTable, types.DraftsTable:
		return t.getDocument(id)
	case types.AnnotationsTable:
		return t.getAnnotation(id)
	default:
		return nil, types.ErrTableNotFound
	}
}

// Set creates or replaces the record for an identity and returns its ID.
func (t *table) Set(id string, data any) (string, error) {
	if id == "" {
		return "", types.ErrInvalidID
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if !t.backend.attached {
		return "", types.ErrStoreDetached
	}

	switch t.name {
	case types.EditionsTable:
		return t.setEdition(id, data)
	case types.FingerprintsTable:
		return t.setFingerprint(id, data)
	case types.DocumentsTable, types.DraftsTable:
		return t.setDocument(id, data)
	case types.AnnotationsTable:
		return t.setAnnotation(id, data)
	default:
		return "", types.ErrTableNotFound
	}
}

// Delete removes the record for an identity.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (t *table) Delete(id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	t.backend.mu.Lock()
	defer t.backend.mu.Unlock()
	if !t.backend.attached {
		return types.ErrStoreDetached
	}

	res, err := t.backend.db.Exec("DELETE FROM "+t.name+" WHERE identity_id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting %s row: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// Fetch returns records matching the filter. Empty filter matches all.
// The only supported key is "identity_id" with a string value.
func (t *table) Fetch(filter map[string]any) ([]any, error) {
	where, args, err := buildWhere(filter)
	if err != nil {
		return nil, err
	}
	t.backend.mu.RLock()
	defer t.backend.mu.RUnlock()
	if !t.backend.attached {
		return nil, types.ErrStoreDetached
	}

	switch t.name {
	case types.EditionsTable:
		return t.fetchEditions(where, args)
	case types.FingerprintsTable:
		return t.fetchFingerprints(where, args)
	case types.DocumentsTable, types.DraftsTable:
		return t.fetchDocuments(where, args)
	case types.AnnotationsTable:
		return t.fetchAnnotations(where, args)
	default:
		return nil, types.ErrTableNotFound
	}
}

func buildWhere(filter map[string]any) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	if len(filter) > 1 {
		return "", nil, types.ErrInvalidFilter
	}
	v, ok := filter["identity_id"]
	if !ok {
		return "", nil, types.ErrInvalidFilter
	}
	id, ok := v.(string)
	if !ok {
		return "", nil, types.ErrInvalidFilter
	}
	return " WHERE identity_id = ?", []any{id}, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func parseTime(field, value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %s: %w", field, err)
	}
	return ts, nil
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339Nano)
}

// Edition operations.

func (t *table) getEdition(id string) (any, error) {
	row := t.backend.db.QueryRow(
		"SELECT identity_id, edition, updated_at FROM editions WHERE identity_id = ?", id)
	return scanEdition(row)
}

func scanEdition(row scanner) (*types.EditionRecord, error) {
	var r types.EditionRecord
	var updatedAt string
	err := row.Scan(&r.IdentityID, &r.Edition, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning edition: %w", err)
	}
	if r.UpdatedAt, err = parseTime("edition updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// setEdition never lowers a stored edition.
func (t *table) setEdition(id string, data any) (string, error) {
	r, ok := data.(*types.EditionRecord)
	if !ok || r == nil {
		return "", types.ErrInvalidData
	}
	if r.Edition < 0 {
		return "", types.ErrInvalidData
	}
	_, err := t.backend.db.Exec(`INSERT INTO editions (identity_id, edition, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identity_id) DO UPDATE SET
			updated_at = CASE WHEN excluded.edition > editions.edition THEN excluded.updated_at ELSE editions.updated_at END,
			edition = MAX(editions.edition, excluded.edition)`,
		id, r.Edition, formatTime(r.UpdatedAt))
	if err != nil {
		return "", fmt.Errorf("storing edition: %w", err)
	}
	return id, nil
}

func (t *table) fetchEditions(where string, args []any) ([]any, error) {
	rows, err := t.backend.db.Query(
		"SELECT identity_id, edition, updated_at FROM editions"+where+" ORDER BY identity_id", args...)
	if err != nil {
		return nil, fmt.Errorf("fetching editions: %w", err)
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		r, err := scanEdition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Fingerprint operations.

func (t *table) getFingerprint(id string) (any, error) {
	row := t.backend.db.QueryRow(
		"SELECT identity_id, fingerprint, published_at FROM fingerprints WHERE identity_id = ?", id)
	return scanFingerprint(row)
}

func scanFingerprint(row scanner) (*types.FingerprintRecord, error) {
	var r types.FingerprintRecord
	var publishedAt string
	err := row.Scan(&r.IdentityID, &r.Fingerprint, &publishedAt)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning fingerprint: %w", err)
	}
	if r.PublishedAt, err = parseTime("fingerprint published_at", publishedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *table) setFingerprint(id string, data any) (string, error) {
	r, ok := data.(*types.FingerprintRecord)
	if !ok || r == nil || r.Fingerprint == "" {
		return "", types.ErrInvalidData
	}
	_, err := t.backend.db.Exec(`INSERT INTO fingerprints (identity_id, fingerprint, published_at) VALUES (?, ?, ?)
		ON CONFLICT(identity_id) DO UPDATE SET fingerprint = excluded.fingerprint, published_at = excluded.published_at`,
		id, r.Fingerprint, formatTime(r.PublishedAt))
	if err != nil {
		return "", fmt.Errorf("storing fingerprint: %w", err)
	}
	return id, nil
}

func (t *table) fetchFingerprints(where string, args []any) ([]any, error) {
	rows, err := t.backend.db.Query(
		"SELECT identity_id, fingerprint, published_at FROM fingerprints"+where+" ORDER BY identity_id", args...)
	if err != nil {
		return nil, fmt.Errorf("fetching fingerprints: %w", err)
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		r, err := scanFingerprint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Document operations. Documents and drafts share one layout.

func (t *table) getDocument(id string) (any, error) {
	row := t.backend.db.QueryRow(
		"SELECT identity_id, edition, body, stored_at FROM "+t.name+" WHERE identity_id = ?", id)
	return scanDocument(row)
}

func scanDocument(row scanner) (*types.DocumentRecord, error) {
	var r types.DocumentRecord
	var storedAt string
	err := row.Scan(&r.IdentityID, &r.Edition, &r.Body, &storedAt)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	if r.StoredAt, err = parseTime("document stored_at", storedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (t *table) setDocument(id string, data any) (string, error) {
	r, ok := data.(*types.DocumentRecord)
	if !ok || r == nil || len(r.Body) == 0 {
		return "", types.ErrInvalidData
	}
	_, err := t.backend.db.Exec(`INSERT INTO `+t.name+` (identity_id, edition, body, stored_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(identity_id) DO UPDATE SET edition = excluded.edition, body = excluded.body, stored_at = excluded.stored_at`,
		id, r.Edition, r.Body, formatTime(r.StoredAt))
	if err != nil {
		return "", fmt.Errorf("storing %s row: %w", t.name, err)
	}
	return id, nil
}

func (t *table) fetchDocuments(where string, args []any) ([]any, error) {
	rows, err := t.backend.db.Query(
		"SELECT identity_id, edition, body, stored_at FROM "+t.name+where+" ORDER BY identity_id", args...)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", t.name, err)
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		r, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Annotation operations. Contexts and properties are stored as JSON text.

func (t *table) getAnnotation(id string) (any, error) {
	row := t.backend.db.QueryRow(
		"SELECT identity_id, contexts, properties FROM annotations WHERE identity_id = ?", id)
	return scanAnnotation(row)
}

func scanAnnotation(row scanner) (*types.AnnotationRecord, error) {
	var r types.AnnotationRecord
	var contexts, properties string
	err := row.Scan(&r.IdentityID, &contexts, &properties)
	if err == sql.ErrNoRows {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning annotation: %w", err)
	}
	if err := json.Unmarshal([]byte(contexts), &r.Contexts); err != nil {
		return nil, fmt.Errorf("parsing annotation contexts: %w", err)
	}
	if err := json.Unmarshal([]byte(properties), &r.Properties); err != nil {
		return nil, fmt.Errorf("parsing annotation properties: %w", err)
	}
	if r.Properties == nil {
		r.Properties = map[string]string{}
	}
	return &r, nil
}

func (t *table) setAnnotation(id string, data any) (string, error) {
	r, ok := data.(*types.AnnotationRecord)
	if !ok || r == nil {
		return "", types.ErrInvalidData
	}
	contexts := r.Contexts
	if contexts == nil {
		contexts = []string{}
	}
	properties := r.Properties
	if properties == nil {
		properties = map[string]string{}
	}
	cj, err := json.Marshal(contexts)
	if err != nil {
		return "", fmt.Errorf("encoding annotation contexts: %w", err)
	}
	pj, err := json.Marshal(properties)
	if err != nil {
		return "", fmt.Errorf("encoding annotation properties: %w", err)
	}
	_, err = t.backend.db.Exec(`INSERT INTO annotations (identity_id, contexts, properties) VALUES (?, ?, ?)
		ON CONFLICT(identity_id) DO UPDATE SET contexts = excluded.contexts, properties = excluded.properties`,
		id, string(cj), string(pj))
	if err != nil {
		return "", fmt.Errorf("storing annotation: %w", err)
	}
	return id, nil
}

func (t *table) fetchAnnotations(where string, args []any) ([]any, error) {
	rows, err := t.backend.db.Query(
		"SELECT identity_id, contexts, properties FROM annotations"+where+" ORDER BY identity_id", args...)
	if err != nil {
		return nil, fmt.Errorf("fetching annotations: %w", err)
	}
	defer rows.Close()
	var out []any
	for rows.Next() {
		r, err := scanAnnotation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
