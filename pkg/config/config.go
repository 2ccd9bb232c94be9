package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/rapport/pkg/dotdir"
	"github.com/papercomputeco/rapport/pkg/encryption"
	"github.com/papercomputeco/rapport/pkg/llm/provider"
	"github.com/papercomputeco/rapport/pkg/persona"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Storage driver names.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Event stream provider names.
const (
	EventStreamNop   = "nop"
	EventStreamKafka = "kafka"
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .rapport/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns all supported configuration key names in TOML
// section order.
func ValidConfigKeys() []string {
	sections := []string{"storage", "relay", "api", "client", "providers", "encryption", "memory", "eventstream"}

	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		sa, _, _ := strings.Cut(a, ".")
		sb, _, _ := strings.Cut(b, ".")
		if ia, ib := slices.Index(sections, sa), slices.Index(sections, sb); ia != ib {
			return ia - ib
		}
		return strings.Compare(a, b)
	})
	return keys
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// IsSecretConfigKey reports whether key holds a credential.
func IsSecretConfigKey(key string) bool {
	return configKeys[key].secret
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target .rapport/ directory.
// If the file does not exist, returns NewDefaultConfig() so callers always receive
// a fully-populated Config with sane defaults. Fields explicitly set in the file
// override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Decoding over the defaults keeps booleans the file leaves unset.
	cfg := NewDefaultConfig()
	if err := parseInto(data, cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
// Booleans are left alone: an explicit false must survive.
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	if cfg.Version == 0 {
		cfg.Version = d.Version
	}

	fill(&cfg.Storage.Driver, d.Storage.Driver)
	if cfg.Storage.Driver == DriverSQLite {
		fill(&cfg.Storage.SQLitePath, d.Storage.SQLitePath)
	}

	fill(&cfg.Relay.Listen, d.Relay.Listen)
	if cfg.Relay.RateBurst == 0 {
		cfg.Relay.RateBurst = d.Relay.RateBurst
	}
	if cfg.Relay.Workers == 0 {
		cfg.Relay.Workers = d.Relay.Workers
	}
	if cfg.Relay.QueueSize == 0 {
		cfg.Relay.QueueSize = d.Relay.QueueSize
	}
	fill(&cfg.Relay.JobTimeout, d.Relay.JobTimeout)

	fill(&cfg.API.Listen, d.API.Listen)

	fill(&cfg.Client.RelayTarget, d.Client.RelayTarget)
	fill(&cfg.Client.APITarget, d.Client.APITarget)

	fill(&cfg.Providers.Timeout, d.Providers.Timeout)
	fill(&cfg.Providers.OllamaBaseURL, d.Providers.OllamaBaseURL)

	fill(&cfg.Memory.ExtractionProvider, d.Memory.ExtractionProvider)
	fill(&cfg.Memory.ExtractionModel, d.Memory.ExtractionModel)
	if cfg.Memory.FactLimit == 0 {
		cfg.Memory.FactLimit = d.Memory.FactLimit
	}
	if cfg.Memory.CacheSize == 0 {
		cfg.Memory.CacheSize = d.Memory.CacheSize
	}
	fill(&cfg.Memory.CacheTTL, d.Memory.CacheTTL)

	fill(&cfg.EventStream.Provider, d.EventStream.Provider)
	fill(&cfg.EventStream.Topic, d.EventStream.Topic)
}

// Validate checks the settings the servers cannot start without.
func (cfg *Config) Validate() error {
	switch cfg.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if cfg.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if cfg.Storage.PostgresDSN == "" {
			return errors.New("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q (available: memory, sqlite, postgres)", cfg.Storage.Driver)
	}

	if cfg.Encryption.Enabled && cfg.Encryption.Secret == "" {
		return fmt.Errorf("encryption.enabled is set: %w", encryption.ErrNoSecret)
	}

	switch cfg.EventStream.Provider {
	case EventStreamNop:
	case EventStreamKafka:
		if len(cfg.EventStream.Brokers) == 0 || cfg.EventStream.Topic == "" {
			return errors.New("eventstream.brokers and eventstream.topic are required for kafka")
		}
	default:
		return fmt.Errorf("unknown eventstream provider %q (available: nop, kafka)", cfg.EventStream.Provider)
	}

	if cfg.Memory.Enabled && !slices.Contains(provider.SupportedProviders(), cfg.Memory.ExtractionProvider) {
		return fmt.Errorf("memory.extraction_provider: %w: %q", provider.ErrUnknownProvider, cfg.Memory.ExtractionProvider)
	}

	for _, p := range cfg.Personas {
		if err := p.Validate(); err != nil {
			return err
		}
		if !slices.Contains(provider.SupportedProviders(), p.ProviderID) {
			return fmt.Errorf("persona %q: %w: %q", p.ID, provider.ErrUnknownProvider, p.ProviderID)
		}
	}

	return nil
}

// SaveConfig persists the configuration to config.toml in the target .rapport/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a default Config with a starter coach persona served
// by the named provider. Supported presets: "anthropic", "openai",
// "openrouter", "ollama".
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	var model string
	switch strings.ToLower(name) {
	case provider.Anthropic:
		model = "claude-3-5-haiku-latest"
	case provider.OpenAI:
		model = "gpt-4o-mini"
	case provider.OpenRouter:
		model = "meta-llama/llama-3.1-8b-instruct"
	case provider.Ollama:
		model = "llama3.2"
	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	id := strings.ToLower(name)
	cfg.Memory.ExtractionProvider = id
	cfg.Memory.ExtractionModel = model
	cfg.Personas = []persona.Persona{{
		ID:           "coach",
		Name:         "Coach",
		ProviderID:   id,
		ModelID:      model,
		SystemPrompt: "You are a warm, practical personal coach. Keep answers short and specific.",
		Domain:       "personal growth",
	}}
	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return provider.SupportedProviders()
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := parseInto(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseInto(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return nil
}
