package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "cts-structure/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries is the number of retries on HTTP 429/503. Zero disables retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ResolverConfig holds settings for the CTS resolver.
type ResolverConfig struct {
	HTTPConfig `yaml:",inline"`

	// Endpoint is the CTS API URL (default http://cts.perseids.org/api/cts).
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// APIToken is an optional bearer token for endpoints that require one.
	APIToken string `json:"api_token,omitempty" yaml:"api_token,omitempty"`

	// CacheSize is the number of work metadata replies kept in memory (default 128).
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

// DownloadConfig holds settings for the download stage.
type DownloadConfig struct {
	// OutputDir is the directory that receives one JSON file per work.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// Delay is the pause between consecutive works in a batch.
	Delay time.Duration `json:"delay" yaml:"delay"`
}

// KnowledgeBaseConfig holds settings for the knowledge base stage.
type KnowledgeBaseConfig struct {
	// KnowledgeDir is the base directory for the knowledge base (contains index/).
	KnowledgeDir string `json:"knowledge_dir" yaml:"knowledge_dir"`

	// Driver selects the database/sql driver: "sqlite3" (default) or "pgx".
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the connection string for the pgx driver. The sqlite3 driver
	// ignores it and opens KnowledgeDir/index/structures.db.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// PublishConfig holds settings for uploading downloaded structures to an
// S3-compatible object store.
type PublishConfig struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	Region    string `json:"region" yaml:"region"`
	AccessKey string `json:"access_key,omitempty" yaml:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty" yaml:"secret_key,omitempty"`
	Bucket    string `json:"bucket" yaml:"bucket"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`

	// Prefix is prepended to every object key (e.g. "text_structures").
	Prefix string `json:"prefix" yaml:"prefix"`
}
