// Package config loads the server's configuration with layered
// precedence: hardcoded defaults, then a user config file, then
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete mcp-bookmark server configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Data    DataConfig   `yaml:"data" json:"data"`
	Index   IndexConfig  `yaml:"index" json:"index"`
	Search  SearchConfig `yaml:"search" json:"search"`
	Server  ServerConfig `yaml:"server" json:"server"`
}

// DataConfig configures where indices are stored on disk.
type DataConfig struct {
	// Dir is the root directory holding one subdirectory per named index.
	Dir string `yaml:"dir" json:"dir"`

	// DefaultIndexName is the index the search and mcp commands use. RPC
	// methods that omit index_name use rpc.DefaultIndexName instead.
	DefaultIndexName string `yaml:"default_index_name" json:"default_index_name"`
}

// IndexConfig holds index-writer and batch-manager settings. They are
// loaded and validated, but no other package reads them: the writer, the
// batch manager and the chunk reassembler use their own built-in limits.
type IndexConfig struct {
	// WriterHeapMB is the configured writer heap size in MiB.
	WriterHeapMB int `yaml:"writer_heap_mb" json:"writer_heap_mb"`

	// BatchFlushThreshold is the configured number of pending adds at
	// which a batch would be committed.
	BatchFlushThreshold int `yaml:"batch_flush_threshold" json:"batch_flush_threshold"`

	// BatchIdleTimeout is the configured idle time after which a batch
	// session counts as abandoned.
	BatchIdleTimeout time.Duration `yaml:"batch_idle_timeout" json:"batch_idle_timeout"`

	// ChunkSessionTimeout is the configured lifetime of an incomplete
	// chunk reassembly session.
	ChunkSessionTimeout time.Duration `yaml:"chunk_session_timeout" json:"chunk_session_timeout"`
}

// SearchConfig holds search settings. Only ContentFetchTimeout is read by
// another package; the limits and the snippet length are loaded and
// validated, while the searcher and the MCP adapter use their own
// constants.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`

	// SnippetMaxLength is the configured snippet length in bytes.
	SnippetMaxLength int `yaml:"snippet_max_length" json:"snippet_max_length"`

	// ContentFetchTimeout bounds the HTTP fallback fetch.
	ContentFetchTimeout time.Duration `yaml:"content_fetch_timeout" json:"content_fetch_timeout"`
}

// ServerConfig configures the stdio JSON-RPC/MCP server process.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`

	// MaxInboundMessageBytes is the configured cap on a single framed
	// request; the rpc transport enforces its own MaxInboundBytes constant
	// and does not read this field.
	MaxInboundMessageBytes int `yaml:"max_inbound_message_bytes" json:"max_inbound_message_bytes"`
}

// NewConfig returns the hardcoded defaults, the first layer of the
// load order documented on Load.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Data: DataConfig{
			Dir:              defaultDataDir(),
			DefaultIndexName: "default",
		},
		Index: IndexConfig{
			WriterHeapMB:        64,
			BatchFlushThreshold: 200,
			BatchIdleTimeout:    5 * time.Minute,
			ChunkSessionTimeout: 2 * time.Minute,
		},
		Search: SearchConfig{
			DefaultLimit:        10,
			MaxLimit:            100,
			SnippetMaxLength:    300,
			ContentFetchTimeout: 8 * time.Second,
		},
		Server: ServerConfig{
			LogLevel:               "info",
			MaxInboundMessageBytes: 100 * 1024 * 1024,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mcp-bookmark")
	}
	return filepath.Join(home, ".mcp-bookmark")
}

// UserConfigPath returns the path to the user-level config file.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "mcp-bookmark", "config.yaml")
}

// Load builds the effective configuration by layering, in increasing
// precedence: hardcoded defaults, the user config file (if present), then
// environment variables (`MCP_BOOKMARK_*`).
func Load() (*Config, error) {
	cfg := NewConfig()

	if path := UserConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero fields of other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.Data.Dir != "" {
		c.Data.Dir = other.Data.Dir
	}
	if other.Data.DefaultIndexName != "" {
		c.Data.DefaultIndexName = other.Data.DefaultIndexName
	}
	if other.Index.WriterHeapMB != 0 {
		c.Index.WriterHeapMB = other.Index.WriterHeapMB
	}
	if other.Index.BatchFlushThreshold != 0 {
		c.Index.BatchFlushThreshold = other.Index.BatchFlushThreshold
	}
	if other.Index.BatchIdleTimeout != 0 {
		c.Index.BatchIdleTimeout = other.Index.BatchIdleTimeout
	}
	if other.Index.ChunkSessionTimeout != 0 {
		c.Index.ChunkSessionTimeout = other.Index.ChunkSessionTimeout
	}
	if other.Search.DefaultLimit != 0 {
		c.Search.DefaultLimit = other.Search.DefaultLimit
	}
	if other.Search.MaxLimit != 0 {
		c.Search.MaxLimit = other.Search.MaxLimit
	}
	if other.Search.SnippetMaxLength != 0 {
		c.Search.SnippetMaxLength = other.Search.SnippetMaxLength
	}
	if other.Search.ContentFetchTimeout != 0 {
		c.Search.ContentFetchTimeout = other.Search.ContentFetchTimeout
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.MaxInboundMessageBytes != 0 {
		c.Server.MaxInboundMessageBytes = other.Server.MaxInboundMessageBytes
	}
}

// applyEnvOverrides applies MCP_BOOKMARK_* environment variables, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MCP_BOOKMARK_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("MCP_BOOKMARK_DEFAULT_INDEX"); v != "" {
		c.Data.DefaultIndexName = v
	}
	if v := os.Getenv("MCP_BOOKMARK_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("MCP_BOOKMARK_WRITER_HEAP_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Index.WriterHeapMB = n
		}
	}
	if v := os.Getenv("MCP_BOOKMARK_SNIPPET_MAX_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.SnippetMaxLength = n
		}
	}
}

// Validate checks invariants that would otherwise surface as confusing
// failures deep inside the writer or searcher.
func (c *Config) Validate() error {
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir must not be empty")
	}
	if c.Data.DefaultIndexName == "" {
		return fmt.Errorf("data.default_index_name must not be empty")
	}
	if c.Index.WriterHeapMB <= 0 {
		return fmt.Errorf("index.writer_heap_mb must be positive")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit <= 0 {
		return fmt.Errorf("search.default_limit and search.max_limit must be positive")
	}
	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit must not exceed search.max_limit")
	}
	return nil
}

// WriteYAML writes the configuration to path, creating parent
// directories as needed. Used by tests and by a future `config init`.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
