package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for pharmaflow-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (classification cache)
	Redis RedisConfig `yaml:"redis"`

	// LLM configuration (table classification oracle)
	LLM LLMConfig `yaml:"llm"`

	// Object storage configuration (uploaded document blobs)
	ObjectStore ObjectStoreConfig `yaml:"object_store"`

	// Search index configuration (document full-text search)
	Search SearchConfig `yaml:"search"`

	// Cleanup scheduler configuration
	Cleanup CleanupConfig `yaml:"cleanup"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"pharmaflow"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"pharmaflow"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MinConnections int32  `yaml:"min_connections" env:"PGMIN_CONNECTIONS" env-default:"2"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration for the classification cache.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	// CacheTTLMinutes is how long a cached classification verdict stays
	// valid for a given column-set fingerprint.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" env:"REDIS_CACHE_TTL_MINUTES" env-default:"1440"`
}

// Addr returns the host:port address for the Redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LLMConfig holds settings for the table classification oracle.
type LLMConfig struct {
	// Provider selects the backing API: "openai" or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	Model    string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o-mini"`
	// BaseURL overrides the provider endpoint (proxies, self-hosted gateways).
	BaseURL string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	// APIKey is the provider API key. Secret - not in YAML.
	APIKey string `yaml:"-" env:"LLM_API_KEY"`
	// RequestsPerMinute caps outbound classification calls.
	RequestsPerMinute int `yaml:"requests_per_minute" env:"LLM_REQUESTS_PER_MINUTE" env-default:"30"`
	// TimeoutSeconds bounds a single classification call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"60"`
}

// ObjectStoreConfig holds S3-compatible object storage settings.
// Works against AWS S3 and MinIO (set Endpoint and UsePathStyle for MinIO).
type ObjectStoreConfig struct {
	Endpoint     string `yaml:"endpoint" env:"S3_ENDPOINT" env-default:""`
	Region       string `yaml:"region" env:"S3_REGION" env-default:"ap-northeast-2"`
	Bucket       string `yaml:"bucket" env:"S3_BUCKET" env-default:"pharmaflow-documents"`
	AccessKey    string `yaml:"-" env:"S3_ACCESS_KEY"` // Secret - not in YAML
	SecretKey    string `yaml:"-" env:"S3_SECRET_KEY"` // Secret - not in YAML
	UsePathStyle bool   `yaml:"use_path_style" env:"S3_USE_PATH_STYLE" env-default:"false"`
}

// SearchConfig holds OpenSearch settings for document indexing.
type SearchConfig struct {
	// AddressesStr is a comma-separated list of node URLs.
	AddressesStr string `yaml:"addresses" env:"OPENSEARCH_ADDRESSES" env-default:"http://localhost:9200"`
	Username     string `yaml:"username" env:"OPENSEARCH_USERNAME" env-default:""`
	Password     string `yaml:"-" env:"OPENSEARCH_PASSWORD"` // Secret - not in YAML
	IndexPrefix  string `yaml:"index_prefix" env:"OPENSEARCH_INDEX_PREFIX" env-default:"pharmaflow"`

	// Addresses is the parsed list from AddressesStr (not from config file).
	Addresses []string `yaml:"-"`
}

// CleanupConfig holds settings for the scheduled data cleanup job.
type CleanupConfig struct {
	Enabled bool `yaml:"enabled" env:"CLEANUP_ENABLED" env-default:"true"`
	// Schedule is a cron expression; the default runs daily at 03:00.
	Schedule string `yaml:"schedule" env:"CLEANUP_SCHEDULE" env-default:"0 3 * * *"`
	// OrphanRetentionDays is how long unreferenced documents are kept
	// before the cleanup job deletes their blobs and index entries.
	OrphanRetentionDays int `yaml:"orphan_retention_days" env:"CLEANUP_ORPHAN_RETENTION_DAYS" env-default:"30"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// Secrets (PGPASSWORD, LLM_API_KEY, S3 and OpenSearch credentials) must come
// from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.Search.Addresses = splitAddresses(c.Search.AddressesStr)
	return nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown llm provider %q (want openai or anthropic)", c.LLM.Provider)
	}
	if c.Cleanup.Enabled && c.Cleanup.Schedule == "" {
		return fmt.Errorf("cleanup enabled but schedule is empty")
	}
	return nil
}

// splitAddresses parses a comma-separated node list, dropping empty entries.
func splitAddresses(value string) []string {
	var addrs []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	return addrs
}
