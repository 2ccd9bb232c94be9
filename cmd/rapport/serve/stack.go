package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/rapport/api"
	apimcp "github.com/papercomputeco/rapport/api/mcp"
	"github.com/papercomputeco/rapport/pkg/config"
	"github.com/papercomputeco/rapport/pkg/dotdir"
	"github.com/papercomputeco/rapport/pkg/encryption"
	"github.com/papercomputeco/rapport/pkg/eventstream"
	"github.com/papercomputeco/rapport/pkg/eventstream/kafka"
	"github.com/papercomputeco/rapport/pkg/eventstream/nop"
	"github.com/papercomputeco/rapport/pkg/history"
	"github.com/papercomputeco/rapport/pkg/llm/provider"
	"github.com/papercomputeco/rapport/pkg/memory"
	"github.com/papercomputeco/rapport/pkg/persona"
	"github.com/papercomputeco/rapport/pkg/storage"
	"github.com/papercomputeco/rapport/pkg/storage/inmemory"
	"github.com/papercomputeco/rapport/pkg/storage/postgres"
	"github.com/papercomputeco/rapport/pkg/storage/sqlite"
	"github.com/papercomputeco/rapport/relay"
	"github.com/papercomputeco/rapport/relay/worker"
)

const kafkaWriteTimeout = 5 * time.Second

// stack holds the components shared by the relay and the API server.
type stack struct {
	cfg    *config.Config
	logger *slog.Logger

	driver    storage.Driver
	codec     *encryption.Codec
	registry  *provider.Registry
	catalog   *persona.Catalog
	history   *history.Writer
	facts     *memory.Store
	extractor memory.Extractor
	publisher eventstream.Publisher
}

// newStack builds every shared component from cfg. configDir anchors a
// relative sqlite path.
func newStack(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (*stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &stack{
		cfg:    cfg,
		logger: logger,
		codec:  encryption.New(cfg.Encryption.Secret, cfg.Encryption.Enabled),
	}

	var err error
	s.driver, err = newStorageDriver(ctx, cfg.Storage, configDir, logger)
	if err != nil {
		return nil, err
	}

	s.catalog, err = persona.NewCatalog(cfg.Personas)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("loading personas: %w", err)
	}
	if s.catalog.Len() == 0 {
		logger.Warn("no personas configured, every chat request will be rejected")
	}

	s.registry = provider.NewRegistry(provider.Config{
		Timeout:           cfg.ProviderTimeout(),
		AnthropicBaseURL:  cfg.Providers.AnthropicBaseURL,
		AnthropicAPIKey:   cfg.Providers.AnthropicAPIKey,
		OpenAIBaseURL:     cfg.Providers.OpenAIBaseURL,
		OpenAIAPIKey:      cfg.Providers.OpenAIAPIKey,
		OpenRouterBaseURL: cfg.Providers.OpenRouterBaseURL,
		OpenRouterAPIKey:  cfg.Providers.OpenRouterAPIKey,
		OllamaBaseURL:     cfg.Providers.OllamaBaseURL,
	}, logger)

	s.history = history.NewWriter(s.driver, s.codec, logger)

	s.facts, err = memory.NewStore(s.driver, s.codec, memory.StoreConfig{
		CacheSize: cfg.Memory.CacheSize,
		CacheTTL:  cfg.CacheTTL(),
	}, logger)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating fact store: %w", err)
	}

	if cfg.Memory.Enabled {
		s.extractor = memory.NewLLMExtractor(s.registry, memory.ExtractorConfig{
			ProviderID: cfg.Memory.ExtractionProvider,
			ModelID:    cfg.Memory.ExtractionModel,
		}, logger)
	}

	s.publisher, err = newPublisher(cfg.EventStream)
	if err != nil {
		s.Close()
		return nil, err
	}

	logger.Info("rapport stack ready",
		"storage", cfg.Storage.Driver,
		"encryption", s.codec.Enabled(),
		"memory", cfg.Memory.Enabled,
		"eventstream", cfg.EventStream.Provider,
		"personas", s.catalog.Len(),
	)

	return s, nil
}

func newStorageDriver(ctx context.Context, cfg config.StorageConfig, configDir string, logger *slog.Logger) (storage.Driver, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		path, err := dotdir.NewManager().Resolve(configDir, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Info("using SQLite storage", "path", path)
		return driver, nil

	case config.DriverPostgres:
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create Postgres driver: %w", err)
		}
		logger.Info("using Postgres storage")
		return driver, nil

	case config.DriverMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func newPublisher(cfg config.EventStreamConfig) (eventstream.Publisher, error) {
	if cfg.Provider != config.EventStreamKafka {
		return nop.NewPublisher(), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		WriteTimeout: kafkaWriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	return p, nil
}

// relayConfig wires the stack into a relay configuration.
func (s *stack) relayConfig() relay.Config {
	rc := relay.Config{
		ListenAddr: s.cfg.Relay.Listen,
		RateLimit:  s.cfg.Relay.RateLimit,
		RateBurst:  s.cfg.Relay.RateBurst,
		Personas:   s.catalog,
		Streamer:   s.registry,
		Worker: worker.Config{
			History:    s.history,
			Publisher:  s.publisher,
			NumWorkers: s.cfg.Relay.Workers,
			QueueSize:  s.cfg.Relay.QueueSize,
			JobTimeout: s.cfg.JobTimeout(),
			Logger:     s.logger,
		},
	}

	if s.cfg.Memory.Enabled {
		rc.FactLimit = s.cfg.Memory.FactLimit
		rc.Facts = s.facts
		rc.Worker.Extractor = s.extractor
		rc.Worker.Facts = s.facts
	}

	return rc
}

// newAPIServer builds the API server, mounting the MCP endpoint when enabled.
func (s *stack) newAPIServer() (*api.Server, error) {
	mcpServer, err := apimcp.NewServer(apimcp.Config{
		Facts:  s.facts,
		Noop:   !s.cfg.API.MCP,
		Logger: s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	return api.NewServer(api.Config{
		ListenAddr: s.cfg.API.Listen,
	}, s.history, s.facts, s.catalog, mcpServer, s.logger)
}

// Close releases everything the stack opened. Call it after the servers
// have stopped so in-flight jobs can still write.
func (s *stack) Close() {
	var errs []error
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.facts != nil {
		s.facts.Close()
	}
	if s.driver != nil {
		errs = append(errs, s.driver.Close())
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("closing rapport stack", "error", err)
	}
}
