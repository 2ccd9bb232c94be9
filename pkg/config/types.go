package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/papercomputeco/rapport/pkg/persona"
)

// Config represents the persistent rapport configuration stored as
// config.toml in the .rapport/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version" mapstructure:"version"`
	Storage     StorageConfig     `toml:"storage" mapstructure:"storage"`
	Relay       RelayConfig       `toml:"relay" mapstructure:"relay"`
	API         APIConfig         `toml:"api" mapstructure:"api"`
	Client      ClientConfig      `toml:"client" mapstructure:"client"`
	Providers   ProvidersConfig   `toml:"providers" mapstructure:"providers"`
	Encryption  EncryptionConfig  `toml:"encryption" mapstructure:"encryption"`
	Memory      MemoryConfig      `toml:"memory" mapstructure:"memory"`
	EventStream EventStreamConfig `toml:"eventstream" mapstructure:"eventstream"`
	Personas    []persona.Persona `toml:"personas,omitempty" mapstructure:"personas"`
}

// StorageConfig selects the durable store shared by the relay and the API.
type StorageConfig struct {
	// Driver is one of "memory", "sqlite" or "postgres".
	Driver      string `toml:"driver,omitempty" mapstructure:"driver"`
	SQLitePath  string `toml:"sqlite_path,omitempty" mapstructure:"sqlite_path"`
	PostgresDSN string `toml:"postgres_dsn,omitempty" mapstructure:"postgres_dsn"`
}

// RelayConfig holds relay server and post-processing pool settings.
type RelayConfig struct {
	Listen     string  `toml:"listen,omitempty" mapstructure:"listen"`
	RateLimit  float64 `toml:"rate_limit,omitempty" mapstructure:"rate_limit"`
	RateBurst  int     `toml:"rate_burst,omitempty" mapstructure:"rate_burst"`
	Workers    uint    `toml:"workers,omitempty" mapstructure:"workers"`
	QueueSize  uint    `toml:"queue_size,omitempty" mapstructure:"queue_size"`
	JobTimeout string  `toml:"job_timeout,omitempty" mapstructure:"job_timeout"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty" mapstructure:"listen"`
	MCP    bool   `toml:"mcp" mapstructure:"mcp"`
}

// ClientConfig holds settings for CLI commands that connect to the running
// relay (e.g. rapport chat). Values are full URLs (scheme + host + port).
type ClientConfig struct {
	RelayTarget string `toml:"relay_target,omitempty" mapstructure:"relay_target"`
	APITarget   string `toml:"api_target,omitempty" mapstructure:"api_target"`
}

// ProvidersConfig holds upstream endpoints and credentials. Empty base URLs
// use each provider's public endpoint.
type ProvidersConfig struct {
	Timeout           string `toml:"timeout,omitempty" mapstructure:"timeout"`
	AnthropicBaseURL  string `toml:"anthropic_base_url,omitempty" mapstructure:"anthropic_base_url"`
	AnthropicAPIKey   string `toml:"anthropic_api_key,omitempty" mapstructure:"anthropic_api_key"`
	OpenAIBaseURL     string `toml:"openai_base_url,omitempty" mapstructure:"openai_base_url"`
	OpenAIAPIKey      string `toml:"openai_api_key,omitempty" mapstructure:"openai_api_key"`
	OpenRouterBaseURL string `toml:"openrouter_base_url,omitempty" mapstructure:"openrouter_base_url"`
	OpenRouterAPIKey  string `toml:"openrouter_api_key,omitempty" mapstructure:"openrouter_api_key"`
	OllamaBaseURL     string `toml:"ollama_base_url,omitempty" mapstructure:"ollama_base_url"`
}

// EncryptionConfig controls at-rest encryption of message and fact text.
type EncryptionConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Secret  string `toml:"secret,omitempty" mapstructure:"secret"`
}

// MemoryConfig holds fact extraction and recall settings.
type MemoryConfig struct {
	Enabled            bool   `toml:"enabled" mapstructure:"enabled"`
	ExtractionProvider string `toml:"extraction_provider,omitempty" mapstructure:"extraction_provider"`
	ExtractionModel    string `toml:"extraction_model,omitempty" mapstructure:"extraction_model"`
	FactLimit          int    `toml:"fact_limit,omitempty" mapstructure:"fact_limit"`
	CacheSize          int64  `toml:"cache_size,omitempty" mapstructure:"cache_size"`
	CacheTTL           string `toml:"cache_ttl,omitempty" mapstructure:"cache_ttl"`
}

// EventStreamConfig selects where exchange events are published.
type EventStreamConfig struct {
	// Provider is "nop" or "kafka".
	Provider string   `toml:"provider,omitempty" mapstructure:"provider"`
	Brokers  []string `toml:"brokers,omitempty" mapstructure:"brokers"`
	Topic    string   `toml:"topic,omitempty" mapstructure:"topic"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error

	// secret values are masked by "config list".
	secret bool
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func secretKey(field func(c *Config) *string) configKeyInfo {
	k := stringKey(field)
	k.secret = true
	return k
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func intKey(name string, field func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid value for %s: must be a non-negative integer", name)
			}
			*field(c) = n
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatUint(uint64(*field(c)), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported scalar config keys.
// Keys use dotted notation matching the TOML section structure. Personas
// are edited in the file directly.
var configKeys = map[string]configKeyInfo{
	"storage.driver":       stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": secretKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"relay.listen": stringKey(func(c *Config) *string { return &c.Relay.Listen }),
	"relay.rate_limit": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Relay.RateLimit, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("invalid value for relay.rate_limit: must be a non-negative number")
			}
			c.Relay.RateLimit = f
			return nil
		},
	},
	"relay.rate_burst":  intKey("relay.rate_burst", func(c *Config) *int { return &c.Relay.RateBurst }),
	"relay.workers":     uintKey("relay.workers", func(c *Config) *uint { return &c.Relay.Workers }),
	"relay.queue_size":  uintKey("relay.queue_size", func(c *Config) *uint { return &c.Relay.QueueSize }),
	"relay.job_timeout": durationKey("relay.job_timeout", func(c *Config) *string { return &c.Relay.JobTimeout }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),
	"api.mcp":    boolKey("api.mcp", func(c *Config) *bool { return &c.API.MCP }),

	"client.relay_target": stringKey(func(c *Config) *string { return &c.Client.RelayTarget }),
	"client.api_target":   stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"providers.timeout":             durationKey("providers.timeout", func(c *Config) *string { return &c.Providers.Timeout }),
	"providers.anthropic_base_url":  stringKey(func(c *Config) *string { return &c.Providers.AnthropicBaseURL }),
	"providers.anthropic_api_key":   secretKey(func(c *Config) *string { return &c.Providers.AnthropicAPIKey }),
	"providers.openai_base_url":     stringKey(func(c *Config) *string { return &c.Providers.OpenAIBaseURL }),
	"providers.openai_api_key":      secretKey(func(c *Config) *string { return &c.Providers.OpenAIAPIKey }),
	"providers.openrouter_base_url": stringKey(func(c *Config) *string { return &c.Providers.OpenRouterBaseURL }),
	"providers.openrouter_api_key":  secretKey(func(c *Config) *string { return &c.Providers.OpenRouterAPIKey }),
	"providers.ollama_base_url":     stringKey(func(c *Config) *string { return &c.Providers.OllamaBaseURL }),

	"encryption.enabled": boolKey("encryption.enabled", func(c *Config) *bool { return &c.Encryption.Enabled }),
	"encryption.secret":  secretKey(func(c *Config) *string { return &c.Encryption.Secret }),

	"memory.enabled":             boolKey("memory.enabled", func(c *Config) *bool { return &c.Memory.Enabled }),
	"memory.extraction_provider": stringKey(func(c *Config) *string { return &c.Memory.ExtractionProvider }),
	"memory.extraction_model":    stringKey(func(c *Config) *string { return &c.Memory.ExtractionModel }),
	"memory.fact_limit":          intKey("memory.fact_limit", func(c *Config) *int { return &c.Memory.FactLimit }),
	"memory.cache_size": {
		get: func(c *Config) string { return strconv.FormatInt(c.Memory.CacheSize, 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid value for memory.cache_size: must be a non-negative integer")
			}
			c.Memory.CacheSize = n
			return nil
		},
	},

	"memory.cache_ttl": durationKey("memory.cache_ttl", func(c *Config) *string { return &c.Memory.CacheTTL }),

	"eventstream.provider": stringKey(func(c *Config) *string { return &c.EventStream.Provider }),
	"eventstream.brokers": {
		get: func(c *Config) string { return strings.Join(c.EventStream.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.EventStream.Brokers = splitList(v)
			return nil
		},
	},
	"eventstream.topic": stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := parseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
