// Package config holds the node's on-disk configuration: a versioned
// YAML document, decoded into a typed Config, with explicit migrations
// carrying older files forward to the current version. Parsing the
// file format itself stays minimal (a direct yaml.v3 Unmarshal); what
// this package owns is the versioned struct and the upgrade path.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ledgerlattice/corenode/thor"
)

// CurrentVersion is the Config schema version this binary understands
// after every migration in Upgrade has run.
const CurrentVersion = 2

// Config is the node's full runtime configuration.
type Config struct {
	Version        uint32          `yaml:"version" json:"version"`
	DataDir        string          `yaml:"data_dir" json:"data_dir"`
	ListenAddr     string          `yaml:"listen_addr" json:"listen_addr"`
	MetricsAddr    string          `yaml:"metrics_addr" json:"metrics_addr"`
	WorkThreshold  uint64          `yaml:"work_threshold" json:"work_threshold"`
	EpochAuthority thor.Address    `yaml:"epoch_authority" json:"epoch_authority"`
	// BatchSize bounds how many blocks blockproc.Processor commits per
	// write transaction.
	BatchSize int             `yaml:"batch_size" json:"batch_size"`
	Election  ElectionConfig  `yaml:"election" json:"election"`
	VoteQueue VoteQueueConfig `yaml:"vote_queue" json:"vote_queue"`
	GapCache  GapCacheConfig  `yaml:"gap_cache" json:"gap_cache"`
	Bootstrap BootstrapConfig `yaml:"bootstrap" json:"bootstrap"`
}

// BootstrapConfig carries the remaining CLI surface that toggles
// subsystems this tree doesn't implement a background job for
// (backup, a bootstrap listener, unchecked-table housekeeping).
// They're still accepted and round-tripped through config/CLI so an
// operator's existing flag set parses cleanly; see cmd/ledgercore's
// DESIGN.md entry for which of these are wired to real behavior.
type BootstrapConfig struct {
	DisableBackup            bool `yaml:"disable_backup" json:"disable_backup"`
	DisableBootstrapListener bool `yaml:"disable_bootstrap_listener" json:"disable_bootstrap_listener"`
	DisableUncheckedCleanup  bool `yaml:"disable_unchecked_cleanup" json:"disable_unchecked_cleanup"`
	DisableUncheckedDrop     bool `yaml:"disable_unchecked_drop" json:"disable_unchecked_drop"`
	FastBootstrap            bool `yaml:"fast_bootstrap" json:"fast_bootstrap"`
}

// ElectionConfig tunes election/election.go's Manager.
type ElectionConfig struct {
	QuorumPercent   uint64 `yaml:"quorum_percent" json:"quorum_percent"`
	CandidateCap    int    `yaml:"candidate_cap" json:"candidate_cap"`
	RecentCacheSize int    `yaml:"recent_cache_size" json:"recent_cache_size"`
}

// VoteQueueConfig tunes voteproc.Queue's admission capacity.
type VoteQueueConfig struct {
	Capacity int `yaml:"capacity" json:"capacity"`
}

// GapCacheConfig tunes gapcache.Cache's bootstrap thresholds.
type GapCacheConfig struct {
	Size                int    `yaml:"size" json:"size"`
	LegacyNumerator     uint64 `yaml:"legacy_numerator" json:"legacy_numerator"`
	OnlineWeightMinimum uint64 `yaml:"online_weight_minimum" json:"online_weight_minimum"`
	BootstrapDelayMS    int    `yaml:"bootstrap_delay_ms" json:"bootstrap_delay_ms"`
	// DisableLegacyBootstrap/DisableLazyBootstrap mirror gapcache.Cache's
	// DisableLegacy/DisableLazy fields; either threshold can be turned
	// off independently of the other.
	DisableLegacyBootstrap bool `yaml:"disable_legacy_bootstrap" json:"disable_legacy_bootstrap"`
	DisableLazyBootstrap   bool `yaml:"disable_lazy_bootstrap" json:"disable_lazy_bootstrap"`
}

// Default returns a fully populated, ready-to-run Config.
func Default() *Config {
	return &Config{
		Version:       CurrentVersion,
		DataDir:       "./data",
		ListenAddr:    ":9735",
		MetricsAddr:   ":9945",
		WorkThreshold: 1 << 44,
		BatchSize:     256,
		Election: ElectionConfig{
			QuorumPercent:   67,
			CandidateCap:    10,
			RecentCacheSize: 1 << 16,
		},
		VoteQueue: VoteQueueConfig{
			Capacity: 1 << 16,
		},
		GapCache: GapCacheConfig{
			Size:                1 << 16,
			LegacyNumerator:     1,
			OnlineWeightMinimum: 1000,
			BootstrapDelayMS:    15000,
		},
	}
}

// Load reads and decodes the YAML config at path, starting from
// Default() so any field the file omits keeps its default, then
// brings the result forward to CurrentVersion via Upgrade.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := Upgrade(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// migration carries a Config from schema version `from` to `to`.
// Each apply func must be idempotent: migrations run exactly once per
// version gap, in strictly increasing `from` order, with no
// switch-fallthrough between them.
type migration struct {
	from, to uint32
	apply    func(*Config) error
}

var migrations = []migration{
	{
		from: 0, to: 1,
		// v0 files predate the gap-cache section entirely.
		apply: func(c *Config) error {
			if c.GapCache.Size == 0 {
				c.GapCache = Default().GapCache
			}
			return nil
		},
	},
	{
		from: 1, to: 2,
		// v1 files predate the vote-queue capacity field.
		apply: func(c *Config) error {
			if c.VoteQueue.Capacity == 0 {
				c.VoteQueue.Capacity = Default().VoteQueue.Capacity
			}
			return nil
		},
	},
}

// Upgrade walks cfg forward through every applicable migration until
// it reaches CurrentVersion, or returns an error if cfg's version is
// newer than this binary understands.
func Upgrade(cfg *Config) error {
	if cfg.Version > CurrentVersion {
		return fmt.Errorf("config: version %d is newer than this binary supports (%d)", cfg.Version, CurrentVersion)
	}
	for _, m := range migrations {
		if cfg.Version != m.from {
			continue
		}
		if err := m.apply(cfg); err != nil {
			return fmt.Errorf("config: migrate v%d->v%d: %w", m.from, m.to, err)
		}
		cfg.Version = m.to
	}
	if cfg.Version != CurrentVersion {
		return fmt.Errorf("config: unsupported version %d", cfg.Version)
	}
	return nil
}
