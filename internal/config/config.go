// Package config assembles the sync engine configuration from defaults and
// environment variables. Defaults come first; env values are merged over
// them, and the result is validated before use.
package config

import (
	"time"
)

// Config is the full configuration of the sync engine.
type Config struct {
	Server    Server    `envPrefix:"SYNC_SERVER_"`
	Storage   Storage   `envPrefix:"SYNC_STORAGE_"`
	Engine    Engine    `envPrefix:"SYNC_ENGINE_"`
	Conflicts Conflicts `envPrefix:"SYNC_CONFLICTS_"`
}

// Server configures the remote sync endpoint.
type Server struct {
	// Host is the base URL of the sync server, e.g. "https://sync.example.com".
	Host string `env:"HOST"`

	// WSHost is the websocket endpoint for the realtime stream. Derived
	// from Host when empty.
	WSHost string `env:"WS_HOST"`

	// ConnectTimeout bounds the realtime connection handshake.
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT"`

	// RequestTimeout bounds a single HTTP call (batch send, notify).
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"`
}

// Storage configures the durable local store.
type Storage struct {
	// DSN is the sqlite data source, e.g. "file:sync.db" or ":memory:".
	DSN string `env:"DSN"`

	// BlobDir holds attachment binaries, one file per content hash.
	BlobDir string `env:"BLOB_DIR"`
}

// Engine configures the collection and upload pipeline.
type Engine struct {
	// BatchSize bounds items per chunk and per upload batch.
	BatchSize int `env:"BATCH_SIZE"`

	// AutoSyncDebounce is the quiet period after a local mutation before a
	// sync is requested.
	AutoSyncDebounce time.Duration `env:"AUTOSYNC_DEBOUNCE"`
}

// Conflicts configures the auto-resolution thresholds: edits closer together
// than the threshold are resolved by recency instead of raising a conflict.
type Conflicts struct {
	// ContentThreshold applies to rich content records.
	ContentThreshold time.Duration `env:"CONTENT_THRESHOLD"`

	// ItemThreshold applies to settings and notebook records.
	ItemThreshold time.Duration `env:"ITEM_THRESHOLD"`
}

// defaults returns the built-in configuration the env layer is merged over.
func defaults() *Config {
	return &Config{
		Server: Server{
			Host:           "http://localhost:8080",
			ConnectTimeout: 30 * time.Second,
			RequestTimeout: 15 * time.Second,
		},
		Storage: Storage{
			DSN:     "file:syncengine.db",
			BlobDir: "attachments",
		},
		Engine: Engine{
			BatchSize:        30,
			AutoSyncDebounce: time.Second,
		},
		Conflicts: Conflicts{
			ContentThreshold: time.Minute,
			ItemThreshold:    time.Second,
		},
	}
}
