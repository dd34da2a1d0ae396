package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlattice/corenode/config"
)

func TestDefaultIsCurrentVersion(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, config.CurrentVersion, cfg.Version)
	assert.NoError(t, config.Upgrade(cfg))
}

func TestUpgradeWalksEveryMigrationInOrder(t *testing.T) {
	cfg := &config.Config{Version: 0}
	require.NoError(t, config.Upgrade(cfg))
	assert.Equal(t, config.CurrentVersion, cfg.Version)
	assert.Equal(t, config.Default().GapCache, cfg.GapCache)
	assert.Equal(t, config.Default().VoteQueue, cfg.VoteQueue)
}

func TestUpgradeFromMidVersionOnlyRunsRemainingSteps(t *testing.T) {
	cfg := &config.Config{Version: 1, GapCache: config.GapCacheConfig{Size: 42}}
	require.NoError(t, config.Upgrade(cfg))
	assert.Equal(t, config.CurrentVersion, cfg.Version)
	// a non-zero gap cache from the file itself must survive; only the
	// vote-queue field (the v1->v2 migration's concern) gets defaulted.
	assert.Equal(t, 42, cfg.GapCache.Size)
	assert.Equal(t, config.Default().VoteQueue.Capacity, cfg.VoteQueue.Capacity)
}

func TestUpgradeRejectsFutureVersion(t *testing.T) {
	cfg := &config.Config{Version: config.CurrentVersion + 1}
	err := config.Upgrade(cfg)
	assert.Error(t, err)
}

func TestLoadParsesYAMLAndUpgrades(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	contents := "version: 1\ndata_dir: /var/lib/ledgercore\nwork_threshold: 123\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.CurrentVersion, cfg.Version)
	assert.Equal(t, "/var/lib/ledgercore", cfg.DataDir)
	assert.Equal(t, uint64(123), cfg.WorkThreshold)
	// v1->v2 migration still fires even though the rest came from the
	// file rather than Default().
	assert.Equal(t, config.Default().VoteQueue.Capacity, cfg.VoteQueue.Capacity)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadParsesBootstrapTogglesAndBatchSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yaml")
	contents := "version: 2\nbatch_size: 64\n" +
		"gap_cache:\n  disable_legacy_bootstrap: true\n" +
		"bootstrap:\n  disable_unchecked_drop: true\n  fast_bootstrap: true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.True(t, cfg.GapCache.DisableLegacyBootstrap)
	assert.False(t, cfg.GapCache.DisableLazyBootstrap)
	assert.True(t, cfg.Bootstrap.DisableUncheckedDrop)
	assert.True(t, cfg.Bootstrap.FastBootstrap)
	assert.False(t, cfg.Bootstrap.DisableBackup)
}
