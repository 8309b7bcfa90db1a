package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/sone/internal/document"
	"github.com/mesh-intelligence/sone/internal/fingerprint"
	"github.com/mesh-intelligence/sone/pkg/types"
)

func TestLoadConfigWritesDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cfg")
	v, err := loadConfig(dir)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	cfg, err := engineConfig(v, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, types.BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, types.DefaultIdentityContext, cfg.Context)
	assert.Equal(t, 15*time.Minute, cfg.IdentityPollInterval)
	assert.Equal(t, 10*time.Minute, cfg.ContentPollInterval)
	assert.Equal(t, time.Minute, cfg.QuietPeriod)
	assert.Equal(t, time.Second, cfg.CheckInterval)
	assert.Empty(t, cfg.Relays)
}

func TestLoadConfigReadsFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `relays: [wss://one.example, wss://two.example]
keys: [abc]
identity:
  context: Test
publish:
  quiet_period: 0s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	v, err := loadConfig(dir)
	require.NoError(t, err)

	cfg, err := engineConfig(v, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"wss://one.example", "wss://two.example"}, cfg.Relays)
	assert.Equal(t, []string{"abc"}, cfg.Keys)
	assert.Equal(t, "Test", cfg.Context)
	assert.Zero(t, cfg.QuietPeriod)
	assert.Equal(t, 15*time.Minute, cfg.IdentityPollInterval, "unset keys keep defaults")
}

func TestEngineConfigRejectsBadTimings(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("publish:\n  check_interval: 0s\n"), 0o600))
	v, err := loadConfig(dir)
	require.NoError(t, err)
	_, err = engineConfig(v, t.TempDir())
	assert.ErrorIs(t, err, types.ErrConfigIntervalInvalid)
}

func TestCollectStatus(t *testing.T) {
	backend, err := attachBackend(t.TempDir())
	require.NoError(t, err)
	defer backend.Detach()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	editions, err := backend.GetTable(types.EditionsTable)
	require.NoError(t, err)
	_, err = editions.Set("alice", &types.EditionRecord{IdentityID: "alice", Edition: 4, UpdatedAt: now})
	require.NoError(t, err)
	_, err = editions.Set("me", &types.EditionRecord{IdentityID: "me", Edition: 2, UpdatedAt: now})
	require.NoError(t, err)

	g := types.NewGraph("me")
	g.Time = now
	require.NoError(t, g.AddFriend("alice"))
	body, err := document.Marshal(g)
	require.NoError(t, err)
	drafts, err := backend.GetTable(types.DraftsTable)
	require.NoError(t, err)
	_, err = drafts.Set("me", &types.DocumentRecord{IdentityID: "me", Edition: 2, Body: body, StoredAt: now})
	require.NoError(t, err)

	rows, err := collectStatus(backend)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0].IdentityID)
	assert.False(t, rows[0].Own)
	assert.Equal(t, int64(4), rows[0].Edition)
	assert.True(t, rows[1].Own)
	assert.True(t, rows[1].Modified, "never published")

	fps, err := backend.GetTable(types.FingerprintsTable)
	require.NoError(t, err)
	_, err = fps.Set("me", &types.FingerprintRecord{IdentityID: "me", Fingerprint: string(fingerprint.Of(g)), PublishedAt: now})
	require.NoError(t, err)
	rows, err = collectStatus(backend)
	require.NoError(t, err)
	assert.False(t, rows[1].Modified)
}
