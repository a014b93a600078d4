package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err, "explicit missing file must fail")

	// No explicit path: missing files fall back to defaults.
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.SyncInterval)
	assert.Equal(t, 15*time.Second, cfg.ProbeInterval)
	assert.Equal(t, 8080, cfg.DashboardPort)
	assert.False(t, cfg.Debug)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `db_path: /tmp/test-ledger.db
remote_url: postgres://ledger@db.example.com/ledger
account: alice
sync_interval: 30s
dashboard_port: 9000
debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test-ledger.db", cfg.DBPath)
	assert.Equal(t, "postgres://ledger@db.example.com/ledger", cfg.RemoteURL)
	assert.Equal(t, "alice", cfg.Account)
	assert.Equal(t, 30*time.Second, cfg.SyncInterval)
	assert.Equal(t, 9000, cfg.DashboardPort)
	assert.True(t, cfg.Debug)

	// Unset keys keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.ProbeInterval)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account: alice\n"), 0o644))

	t.Setenv("LEDGER_ACCOUNT", "bob")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Account)
}
