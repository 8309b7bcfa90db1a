package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mesh-intelligence/sone/pkg/types"
)

func attach(t *testing.T, dir string) *Backend {
	t.Helper()
	b := NewBackend()
	if err := b.Attach(types.StoreConfig{Backend: types.BackendSQLite, DataDir: dir}); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	return b
}

func mustTable(t *testing.T, b *Backend, name string) types.Table {
	t.Helper()
	tbl, err := b.GetTable(name)
	if err != nil {
		t.Fatalf("GetTable(%s) failed: %v", name, err)
	}
	return tbl
}

func TestBackend_Attach(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "nested")
	b := attach(t, tmpDir)
	defer b.Detach()

	if _, err := os.Stat(filepath.Join(tmpDir, DatabaseFile)); os.IsNotExist(err) {
		t.Errorf("%s not created", DatabaseFile)
	}

	err := b.Attach(types.StoreConfig{Backend: types.BackendSQLite, DataDir: tmpDir})
	if err != types.ErrAlreadyAttached {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}
}

func TestBackend_AttachInvalidConfig(t *testing.T) {
	b := NewBackend()
	if err := b.Attach(types.StoreConfig{Backend: "postgres", DataDir: t.TempDir()}); err != types.ErrBackendUnknown {
		t.Fatalf("expected ErrBackendUnknown, got %v", err)
	}
}

func TestBackend_Detach(t *testing.T) {
	b := attach(t, t.TempDir())
	tbl := mustTable(t, b, types.EditionsTable)

	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Errorf("second Detach should not error, got %v", err)
	}
	if _, err := b.GetTable(types.EditionsTable); err != types.ErrStoreDetached {
		t.Errorf("expected ErrStoreDetached, got %v", err)
	}
	if _, err := tbl.Get("alice"); err != types.ErrStoreDetached {
		t.Errorf("expected ErrStoreDetached from held table, got %v", err)
	}
}

func TestBackend_GetTable(t *testing.T) {
	b := attach(t, t.TempDir())
	defer b.Detach()

	for _, name := range types.StandardTableNames {
		if _, err := b.GetTable(name); err != nil {
			t.Errorf("GetTable(%s) failed: %v", name, err)
		}
	}
	if _, err := b.GetTable("posts"); err != types.ErrTableNotFound {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestEditions_Monotonic(t *testing.T) {
	b := attach(t, t.TempDir())
	defer b.Detach()
	tbl := mustTable(t, b, types.EditionsTable)

	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if _, err := tbl.Set("alice", &types.EditionRecord{IdentityID: "alice", Edition: 7, UpdatedAt: first}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := tbl.Set("alice", &types.EditionRecord{IdentityID: "alice", Edition: 3, UpdatedAt: first.Add(time.Hour)}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err := tbl.Get("alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	r := got.(*types.EditionRecord)
	if r.Edition != 7 {
		t.Errorf("expected edition 7, got %d", r.Edition)
	}
	if !r.UpdatedAt.Equal(first) {
		t.Errorf("expected updated_at %v, got %v", first, r.UpdatedAt)
	}

	if _, err := tbl.Set("alice", &types.EditionRecord{IdentityID: "alice", Edition: 9, UpdatedAt: first}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, _ = tbl.Get("alice")
	if got.(*types.EditionRecord).Edition != 9 {
		t.Errorf("expected edition 9, got %d", got.(*types.EditionRecord).Edition)
	}
}

func TestTable_InvalidInput(t *testing.T) {
	b := attach(t, t.TempDir())
	defer b.Detach()

	tests := []struct {
		name  string
		table string
		id    string
		data  any
		want  error
	}{
		{"empty id", types.EditionsTable, "", &types.EditionRecord{}, types.ErrInvalidID},
		{"value instead of pointer", types.EditionsTable, "a", types.EditionRecord{}, types.ErrInvalidData},
		{"negative edition", types.EditionsTable, "a", &types.EditionRecord{Edition: -1}, types.ErrInvalidData},
		{"empty fingerprint", types.FingerprintsTable, "a", &types.FingerprintRecord{}, types.ErrInvalidData},
		{"empty document body", types.DocumentsTable, "a", &types.DocumentRecord{}, types.ErrInvalidData},
		{"wrong record type", types.AnnotationsTable, "a", &types.DocumentRecord{}, types.ErrInvalidData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustTable(t, b, tt.table).Set(tt.id, tt.data)
			if err != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestTable_GetDeleteNotFound(t *testing.T) {
	b := attach(t, t.TempDir())
	defer b.Detach()

	for _, name := range types.StandardTableNames {
		tbl := mustTable(t, b, name)
		if _, err := tbl.Get("nobody"); err != types.ErrNotFound {
			t.Errorf("%s Get: expected ErrNotFound, got %v", name, err)
		}
		if err := tbl.Delete("nobody"); err != types.ErrNotFound {
			t.Errorf("%s Delete: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestDocumentsAndDrafts_Separate(t *testing.T) {
	b := attach(t, t.TempDir())
	defer b.Detach()
	docs := mustTable(t, b, types.DocumentsTable)
	drafts := mustTable(t, b, types.DraftsTable)

	now := time.Now().UTC()
	if _, err := docs.Set("alice", &types.DocumentRecord{IdentityID: "alice", Edition: 4, Body: []byte(`{"a":1}`), StoredAt: now}); err != nil {
		t.Fatalf("Set document failed: %v", err)
	}
	if _, err := drafts.Get("alice"); err != types.ErrNotFound {
		t.Fatalf("expected draft ErrNotFound, got %v", err)
	}

	got, err := docs.Get("alice")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	r := got.(*types.DocumentRecord)
	if r.Edition != 4 || string(r.Body) != `{"a":1}` || !r.StoredAt.Equal(now) {
		t.Errorf("unexpected document %+v", r)
	}

	if err := docs.Delete("alice"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := docs.Get("alice"); err != types.ErrNotFound {
		t.Errorf("expected ErrNotFound after Delete, got %v", err)
	}
}

func TestAnnotations_RoundTrip(t *testing.T) {
	b := attach(t, t.TempDir())
	defer b.Detach()
	tbl := mustTable(t, b, types.AnnotationsTable)

	if _, err := tbl.Set("bob", &types.AnnotationRecord{IdentityID: "bob"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := tbl.Get("bob")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	r := got.(*types.AnnotationRecord)
	if len(r.Contexts) != 0 || r.Properties == nil {
		t.Errorf("expected empty contexts and non-nil properties, got %+v", r)
	}

	r.Contexts = []string{"Sone", "Chat"}
	r.Properties["Sone.Last"] = "42"
	if _, err := tbl.Set("bob", r); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, _ = tbl.Get("bob")
	r = got.(*types.AnnotationRecord)
	if len(r.Contexts) != 2 || r.Contexts[1] != "Chat" || r.Properties["Sone.Last"] != "42" {
		t.Errorf("unexpected annotation %+v", r)
	}
}

func TestFetch_Filter(t *testing.T) {
	b := attach(t, t.TempDir())
	defer b.Detach()
	tbl := mustTable(t, b, types.FingerprintsTable)

	now := time.Now().UTC()
	for _, id := range []string{"carol", "alice", "bob"} {
		if _, err := tbl.Set(id, &types.FingerprintRecord{IdentityID: id, Fingerprint: "fp-" + id, PublishedAt: now}); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	all, err := tbl.Fetch(nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(all) != 3 || all[0].(*types.FingerprintRecord).IdentityID != "alice" {
		t.Fatalf("expected 3 records ordered by id, got %v", all)
	}

	one, err := tbl.Fetch(map[string]any{"identity_id": "bob"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(one) != 1 || one[0].(*types.FingerprintRecord).Fingerprint != "fp-bob" {
		t.Fatalf("unexpected filtered result %v", one)
	}

	if _, err := tbl.Fetch(map[string]any{"identity_id": 5}); err != types.ErrInvalidFilter {
		t.Errorf("expected ErrInvalidFilter for wrong type, got %v", err)
	}
	if _, err := tbl.Fetch(map[string]any{"edition": "1"}); err != types.ErrInvalidFilter {
		t.Errorf("expected ErrInvalidFilter for unknown key, got %v", err)
	}
}

func TestBackend_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	b := attach(t, dir)
	if _, err := mustTable(t, b, types.EditionsTable).Set("alice", &types.EditionRecord{IdentityID: "alice", Edition: 12, UpdatedAt: time.Now()}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := b.Detach(); err != nil {
		t.Fatalf("Detach failed: %v", err)
	}

	b = attach(t, dir)
	defer b.Detach()
	got, err := mustTable(t, b, types.EditionsTable).Get("alice")
	if err != nil {
		t.Fatalf("Get after restart failed: %v", err)
	}
	if got.(*types.EditionRecord).Edition != 12 {
		t.Errorf("expected edition 12 after restart, got %d", got.(*types.EditionRecord).Edition)
	}
}
