// Package config loads docpipe configuration.
//
// Precedence, highest first:
//  1. Environment variables (DOCPIPE_BATCH_WORKERS, DOCPIPE_DATA_DIR, ...)
//  2. A .env file in the working directory
//  3. The config file (~/.docpipe/config.toml by default, TOML or YAML)
//  4. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config is the full docpipe configuration.
type Config struct {
	// DataDir is the root of the catalog tree.
	DataDir string `koanf:"data_dir" toml:"data_dir" yaml:"data_dir"`

	// ArchiveDir holds snapshot archives, outside the catalog tree.
	ArchiveDir string `koanf:"archive_dir" toml:"archive_dir" yaml:"archive_dir"`

	Limits    LimitsConfig    `koanf:"limits" toml:"limits" yaml:"limits"`
	Batch     BatchConfig     `koanf:"batch" toml:"batch" yaml:"batch"`
	Timeouts  TimeoutsConfig  `koanf:"timeouts" toml:"timeouts" yaml:"timeouts"`
	Embedding EmbeddingConfig `koanf:"embedding" toml:"embedding" yaml:"embedding"`
	Log       LogConfig       `koanf:"log" toml:"log" yaml:"log"`
}

// LimitsConfig bounds uploads.
type LimitsConfig struct {
	MaxFileSizeMB             int `koanf:"max_file_size_mb" toml:"max_file_size_mb" yaml:"max_file_size_mb"`
	MaxDocumentsPerSubcatalog int `koanf:"max_documents_per_subcatalog" toml:"max_documents_per_subcatalog" yaml:"max_documents_per_subcatalog"`
}

// BatchConfig sizes the batch worker pools.
type BatchConfig struct {
	Workers        int `koanf:"workers" toml:"workers" yaml:"workers"`
	ChunkerWorkers int `koanf:"chunker_workers" toml:"chunker_workers" yaml:"chunker_workers"`
}

// TimeoutsConfig bounds collaborator calls.
type TimeoutsConfig struct {
	Conversion time.Duration `koanf:"conversion" toml:"conversion" yaml:"conversion"`
	Chunking   time.Duration `koanf:"chunking" toml:"chunking" yaml:"chunking"`
}

// EmbeddingConfig selects the embedding provider used by semantic chunking.
type EmbeddingConfig struct {
	// Provider is "none", "ollama" or "openai".
	Provider          string  `koanf:"provider" toml:"provider" yaml:"provider"`
	BaseURL           string  `koanf:"base_url" toml:"base_url" yaml:"base_url"`
	Model             string  `koanf:"model" toml:"model" yaml:"model"`
	APIKey            string  `koanf:"api_key" toml:"api_key,omitempty" yaml:"api_key,omitempty"`
	RequestsPerSecond float64 `koanf:"requests_per_second" toml:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `koanf:"burst" toml:"burst" yaml:"burst"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `koanf:"level" toml:"level" yaml:"level"`
	Format string `koanf:"format" toml:"format" yaml:"format"`
}

// Embedding providers.
const (
	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	return &Config{
		DataDir:    filepath.Join(home, "data"),
		ArchiveDir: filepath.Join(home, "archive"),
		Limits: LimitsConfig{
			MaxFileSizeMB:             10,
			MaxDocumentsPerSubcatalog: 15,
		},
		Batch: BatchConfig{
			Workers:        4,
			ChunkerWorkers: 2,
		},
		Timeouts: TimeoutsConfig{
			Conversion: 2 * time.Minute,
			Chunking:   5 * time.Minute,
		},
		Embedding: EmbeddingConfig{
			Provider:          ProviderNone,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// applyDefaults fills zero values from def.
func applyDefaults(cfg, def *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.ArchiveDir == "" {
		cfg.ArchiveDir = def.ArchiveDir
	}
	if cfg.Limits.MaxFileSizeMB == 0 {
		cfg.Limits.MaxFileSizeMB = def.Limits.MaxFileSizeMB
	}
	if cfg.Limits.MaxDocumentsPerSubcatalog == 0 {
		cfg.Limits.MaxDocumentsPerSubcatalog = def.Limits.MaxDocumentsPerSubcatalog
	}
	if cfg.Batch.Workers == 0 {
		cfg.Batch.Workers = def.Batch.Workers
	}
	if cfg.Batch.ChunkerWorkers == 0 {
		cfg.Batch.ChunkerWorkers = def.Batch.ChunkerWorkers
	}
	if cfg.Timeouts.Conversion == 0 {
		cfg.Timeouts.Conversion = def.Timeouts.Conversion
	}
	if cfg.Timeouts.Chunking == 0 {
		cfg.Timeouts.Chunking = def.Timeouts.Chunking
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = def.Embedding.Provider
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = def.Embedding.RequestsPerSecond
	}
	if cfg.Embedding.Burst == 0 {
		cfg.Embedding.Burst = def.Embedding.Burst
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.ArchiveDir == "" {
		errs = append(errs, errors.New("archive_dir is required"))
	}
	if c.Limits.MaxFileSizeMB < 0 {
		errs = append(errs, fmt.Errorf("limits.max_file_size_mb must be positive, got %d", c.Limits.MaxFileSizeMB))
	}
	if c.Limits.MaxDocumentsPerSubcatalog < 0 {
		errs = append(errs, fmt.Errorf("limits.max_documents_per_subcatalog must be positive, got %d", c.Limits.MaxDocumentsPerSubcatalog))
	}
	if c.Batch.Workers < 0 || c.Batch.ChunkerWorkers < 0 {
		errs = append(errs, errors.New("batch workers must be positive"))
	}
	if c.Timeouts.Conversion < 0 || c.Timeouts.Chunking < 0 {
		errs = append(errs, errors.New("timeouts must be positive"))
	}
	switch strings.ToLower(c.Embedding.Provider) {
	case ProviderNone, ProviderOllama, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("embedding.provider must be one of none, ollama, openai; got %q", c.Embedding.Provider))
	}
	if c.Embedding.RequestsPerSecond < 0 || c.Embedding.Burst < 0 {
		errs = append(errs, errors.New("embedding rate limits must be positive"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// MaxFileSize returns the upload size limit in bytes.
func (c *Config) MaxFileSize() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}
