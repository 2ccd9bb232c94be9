package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/papercomputeco/rapport/pkg/dotdir"
)

// providerKeyEnv lists the well-known vendor variables read when the
// RAPPORT_ prefixed variable is unset.
var providerKeyEnv = map[string]string{
	"providers.anthropic_api_key":  "ANTHROPIC_API_KEY",
	"providers.openai_api_key":     "OPENAI_API_KEY",
	"providers.openrouter_api_key": "OPENROUTER_API_KEY",
	"encryption.secret":            "ENCRYPTION_SECRET",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the RAPPORT_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (RAPPORT_RELAY_LISTEN, ANTHROPIC_API_KEY, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("RAPPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range providerKeyEnv {
		prefixed := "RAPPORT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}

	return v, nil
}

// FromViper decodes the merged viper state into a Config and fills any
// remaining zero values from the defaults.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Relay
	v.SetDefault("relay.listen", d.Relay.Listen)
	v.SetDefault("relay.rate_limit", d.Relay.RateLimit)
	v.SetDefault("relay.rate_burst", d.Relay.RateBurst)
	v.SetDefault("relay.workers", d.Relay.Workers)
	v.SetDefault("relay.queue_size", d.Relay.QueueSize)
	v.SetDefault("relay.job_timeout", d.Relay.JobTimeout)

	// API
	v.SetDefault("api.listen", d.API.Listen)
	v.SetDefault("api.mcp", d.API.MCP)

	// Client
	v.SetDefault("client.relay_target", d.Client.RelayTarget)
	v.SetDefault("client.api_target", d.Client.APITarget)

	// Providers
	v.SetDefault("providers.timeout", d.Providers.Timeout)
	v.SetDefault("providers.anthropic_base_url", d.Providers.AnthropicBaseURL)
	v.SetDefault("providers.anthropic_api_key", d.Providers.AnthropicAPIKey)
	v.SetDefault("providers.openai_base_url", d.Providers.OpenAIBaseURL)
	v.SetDefault("providers.openai_api_key", d.Providers.OpenAIAPIKey)
	v.SetDefault("providers.openrouter_base_url", d.Providers.OpenRouterBaseURL)
	v.SetDefault("providers.openrouter_api_key", d.Providers.OpenRouterAPIKey)
	v.SetDefault("providers.ollama_base_url", d.Providers.OllamaBaseURL)

	// Encryption
	v.SetDefault("encryption.enabled", d.Encryption.Enabled)
	v.SetDefault("encryption.secret", d.Encryption.Secret)

	// Memory
	v.SetDefault("memory.enabled", d.Memory.Enabled)
	v.SetDefault("memory.extraction_provider", d.Memory.ExtractionProvider)
	v.SetDefault("memory.extraction_model", d.Memory.ExtractionModel)
	v.SetDefault("memory.fact_limit", d.Memory.FactLimit)
	v.SetDefault("memory.cache_size", d.Memory.CacheSize)
	v.SetDefault("memory.cache_ttl", d.Memory.CacheTTL)

	// Event stream
	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}
