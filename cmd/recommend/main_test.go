package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"Storefront/internal/config"
)

func TestRun_ReturnsSnapshotStoreError(t *testing.T) {
	// A regular file where badger expects a directory.
	path := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	cfg := config.Defaults()
	cfg.Cache.PersistPath = path

	err := run(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open snapshot store")
}
