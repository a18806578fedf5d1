package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Config is the bnb client configuration.
type Config struct {
	Version string        `yaml:"version" toml:"version" json:"version,omitempty" jsonschema:"description=Configuration version (e.g. '1.0')"`
	API     APIConfig     `yaml:"api,omitempty" toml:"api,omitempty" json:"api" jsonschema:"description=Remote marketplace API settings"`
	Storage StorageConfig `yaml:"storage,omitempty" toml:"storage,omitempty" json:"storage" jsonschema:"description=Durable session storage"`

	// Extensions captures all other top-level keys (e.g. "logging").
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`
}

// APIConfig configures the HTTP transport to the marketplace backend.
type APIConfig struct {
	BaseURL   string          `yaml:"base_url,omitempty" toml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"description=Base URL of the REST backend"`
	Timeout   string          `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Per-request timeout as a Go duration (default 15s)"`
	UserAgent string          `yaml:"user_agent,omitempty" toml:"user_agent,omitempty" json:"user_agent,omitempty" jsonschema:"description=User-Agent header sent with every request"`
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty" toml:"rate_limit,omitempty" json:"rate_limit" jsonschema:"description=Client-side request pacing"`
}

// RateLimitConfig paces outgoing requests. RPS of 0 disables pacing.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps,omitempty" toml:"rps,omitempty" json:"rps,omitempty" jsonschema:"minimum=0,description=Requests per second (0 disables pacing)"`
	Burst int     `yaml:"burst,omitempty" toml:"burst,omitempty" json:"burst,omitempty" jsonschema:"minimum=0,description=Maximum burst size"`
}

// StorageConfig selects where the session credential is persisted.
type StorageConfig struct {
	Backend string      `yaml:"backend,omitempty" toml:"backend,omitempty" json:"backend,omitempty" jsonschema:"enum=file,enum=memory,enum=redis,description=Storage backend"`
	Path    string      `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" jsonschema:"description=Session file path for the file backend"`
	Redis   RedisConfig `yaml:"redis,omitempty" toml:"redis,omitempty" json:"redis" jsonschema:"description=Redis backend settings"`
}

// RedisConfig configures the redis storage backend.
type RedisConfig struct {
	Addr     string `yaml:"addr,omitempty" toml:"addr,omitempty" json:"addr,omitempty" jsonschema:"description=host:port of the redis server"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty" json:"password,omitempty" jsonschema:"description=Redis password"`
	DB       int    `yaml:"db,omitempty" toml:"db,omitempty" json:"db,omitempty" jsonschema:"minimum=0,description=Redis database index"`
	Prefix   string `yaml:"prefix,omitempty" toml:"prefix,omitempty" json:"prefix,omitempty" jsonschema:"description=Key prefix (default bnb:)"`
}

const (
	DefaultBaseURL     = "http://127.0.0.1:5000"
	DefaultTimeout     = 15 * time.Second
	DefaultRedisPrefix = "bnb:"

	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// TimeoutDuration returns the parsed request timeout, falling back to
// DefaultTimeout when unset or unparsable. Validate rejects bad values first.
func (a APIConfig) TimeoutDuration() time.Duration {
	if a.Timeout == "" {
		return DefaultTimeout
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == "" {
		c.API.Timeout = DefaultTimeout.String()
	}
	if c.API.RateLimit.RPS > 0 && c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 1
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.Backend == BackendRedis && c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = DefaultRedisPrefix
	}
}

// UnmarshalExtension decodes the configuration for a specific extension from the
// loaded bnb.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// A missing key leaves the target zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}

// ConfigSource identifies the origin of a configuration layer.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceGlobal   ConfigSource = "global"
	SourceProject  ConfigSource = "project"
	SourceOverride ConfigSource = "override"
	SourceEnv      ConfigSource = "env"
)

// LayeredConfig holds the raw configuration from each source file,
// as well as the final merged configuration, for analysis purposes.
type LayeredConfig struct {
	Global    *Config
	Project   *Config
	Override  *Config
	Final     *Config
	FilePaths map[ConfigSource]string
}
