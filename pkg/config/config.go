// Package config loads the ingest-time knobs an external HTTP surface
// would otherwise plumb in directly: WAL durability, the default
// chunk_window, and log verbosity.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"

	"github.com/bobboyms/write-validator/pkg/wal"
)

// Config holds everything Initialize/ParseAndUpdateSchema/ConvertToWriteBatch
// need that isn't part of the line-protocol payload itself.
type Config struct {
	CatalogDir    string
	RowBufferDir  string
	ChunkWindowNs int64
	LogLevel      string

	WALSyncPolicy         wal.SyncPolicy
	WALSyncIntervalMillis int64
	WALSyncBatchBytes     int64
}

// Load reads configuration from path (if it exists) layered over
// defaults, with WV_-prefixed environment variables taking precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("wv")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	cfg := &Config{
		CatalogDir:            v.GetString("catalog_dir"),
		RowBufferDir:          v.GetString("row_buffer_dir"),
		ChunkWindowNs:         v.GetInt64("chunk_window_ns"),
		LogLevel:              v.GetString("log_level"),
		WALSyncIntervalMillis: v.GetInt64("wal_sync_interval_millis"),
		WALSyncBatchBytes:     v.GetInt64("wal_sync_batch_bytes"),
	}

	policy, err := parseSyncPolicy(v.GetString("wal_sync_policy"))
	if err != nil {
		return nil, err
	}
	cfg.WALSyncPolicy = policy

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog_dir", "./data/catalog")
	v.SetDefault("row_buffer_dir", "./data/rows")
	v.SetDefault("chunk_window_ns", int64(5*time.Minute))
	v.SetDefault("log_level", "info")
	v.SetDefault("wal_sync_policy", "interval")
	v.SetDefault("wal_sync_interval_millis", int64(200))
	v.SetDefault("wal_sync_batch_bytes", int64(1*1024*1024))
}

func parseSyncPolicy(s string) (wal.SyncPolicy, error) {
	switch s {
	case "every_write":
		return wal.SyncEveryWrite, nil
	case "interval":
		return wal.SyncInterval, nil
	case "batch":
		return wal.SyncBatch, nil
	default:
		return 0, fmt.Errorf("config: unknown wal_sync_policy %q", s)
	}
}

// WALOptions translates the loaded config into the options the teacher's
// WAL writer expects.
func (c *Config) WALOptions() wal.Options {
	opts := wal.DefaultOptions()
	opts.SyncPolicy = c.WALSyncPolicy
	opts.SyncIntervalDuration = time.Duration(c.WALSyncIntervalMillis) * time.Millisecond
	opts.SyncBatchBytes = c.WALSyncBatchBytes
	return opts
}
