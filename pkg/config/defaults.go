package config

import (
	"fmt"
	"time"
)

const (
	defaultStorageDriver = "sqlite"
	defaultSQLitePath    = "rapport.sqlite"

	defaultRelayListen = ":8080"
	defaultAPIListen   = ":8081"
	defaultRateLimit   = 2.0
	defaultRateBurst   = 10
	defaultWorkers     = 3
	defaultQueueSize   = 256
	defaultJobTimeout  = "2m"

	defaultClientRelayTarget = "http://localhost:8080"
	defaultClientAPITarget   = "http://localhost:8081"

	defaultProviderTimeout = "2m"
	defaultOllamaBaseURL   = "http://localhost:11434"

	defaultExtractionProvider = "ollama"
	defaultExtractionModel    = "llama3.2"
	defaultFactLimit          = 20
	defaultCacheSize          = 10000
	defaultCacheTTL           = "30s"

	defaultEventStreamProvider = "nop"
	defaultEventStreamTopic    = "rapport.exchanges"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver:     defaultStorageDriver,
			SQLitePath: defaultSQLitePath,
		},
		Relay: RelayConfig{
			Listen:     defaultRelayListen,
			RateLimit:  defaultRateLimit,
			RateBurst:  defaultRateBurst,
			Workers:    defaultWorkers,
			QueueSize:  defaultQueueSize,
			JobTimeout: defaultJobTimeout,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
			MCP:    true,
		},
		Client: ClientConfig{
			RelayTarget: defaultClientRelayTarget,
			APITarget:   defaultClientAPITarget,
		},
		Providers: ProvidersConfig{
			Timeout:       defaultProviderTimeout,
			OllamaBaseURL: defaultOllamaBaseURL,
		},
		Memory: MemoryConfig{
			Enabled:            true,
			ExtractionProvider: defaultExtractionProvider,
			ExtractionModel:    defaultExtractionModel,
			FactLimit:          defaultFactLimit,
			CacheSize:          defaultCacheSize,
			CacheTTL:           defaultCacheTTL,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventStreamProvider,
			Topic:    defaultEventStreamTopic,
		},
	}
}

// ProviderTimeout returns the parsed upstream timeout.
func (c *Config) ProviderTimeout() time.Duration {
	d, err := parseDuration(c.Providers.Timeout)
	if err != nil || d == 0 {
		d, _ = parseDuration(defaultProviderTimeout)
	}
	return d
}

// JobTimeout returns the parsed post-processing job timeout.
func (c *Config) JobTimeout() time.Duration {
	d, err := parseDuration(c.Relay.JobTimeout)
	if err != nil || d == 0 {
		d, _ = parseDuration(defaultJobTimeout)
	}
	return d
}

// CacheTTL returns how long the relay may serve a cached fact list.
func (c *Config) CacheTTL() time.Duration {
	d, err := parseDuration(c.Memory.CacheTTL)
	if err != nil || d == 0 {
		d, _ = parseDuration(defaultCacheTTL)
	}
	return d
}

func parseDuration(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", v)
	}
	return d, nil
}
