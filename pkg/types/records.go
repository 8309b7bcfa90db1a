package types

import "time"

// Standard table names for Store.GetTable.
const (
	EditionsTable     = "editions"
	FingerprintsTable = "fingerprints"
	DocumentsTable    = "documents"
	DraftsTable       = "drafts"
	AnnotationsTable  = "annotations"
)

// StandardTableNames lists all standard table names for enumeration.
var StandardTableNames = []string{
	EditionsTable,
	FingerprintsTable,
	DocumentsTable,
	DraftsTable,
	AnnotationsTable,
}

// EditionRecord is the highest edition seen for an identity's document.
type EditionRecord struct {
	IdentityID string    `json:"identity_id"`
	Edition    int64     `json:"edition"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FingerprintRecord is the fingerprint of the last successfully published
// graph of an own identity.
type FingerprintRecord struct {
	IdentityID  string    `json:"identity_id"`
	Fingerprint string    `json:"fingerprint"`
	PublishedAt time.Time `json:"published_at"`
}

// DocumentRecord is the last document that parsed successfully for an
// identity. Drafts use the same record for the local graph of an own
// identity.
type DocumentRecord struct {
	IdentityID string    `json:"identity_id"`
	Edition    int64     `json:"edition"`
	Body       []byte    `json:"body"`
	StoredAt   time.Time `json:"stored_at"`
}

// AnnotationRecord holds locally maintained contexts and properties of an
// identity for services that cannot store them remotely.
type AnnotationRecord struct {
	IdentityID string            `json:"identity_id"`
	Contexts   []string          `json:"contexts"`
	Properties map[string]string `json:"properties"`
}
