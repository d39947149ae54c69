package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/career-mentor/internal/analysis"
	"github.com/spigell/career-mentor/internal/archive"
	"github.com/spigell/career-mentor/internal/events"
	"github.com/spigell/career-mentor/internal/gap"
	"github.com/spigell/career-mentor/internal/llm"
	"github.com/spigell/career-mentor/internal/llm/cache"
	"github.com/spigell/career-mentor/internal/logger"
	"github.com/spigell/career-mentor/internal/mentor"
	"github.com/spigell/career-mentor/internal/roles"
	"github.com/spigell/career-mentor/internal/secrets"
	"github.com/spigell/career-mentor/internal/skills"
	"github.com/spigell/career-mentor/internal/storage"
	"github.com/spigell/career-mentor/internal/taxonomy"
)

// apiKeyEnv names the conventional variables holding provider keys.
var apiKeyEnv = map[string]string{
	llm.ProviderGemini:    "GOOGLE_API_KEY",
	llm.ProviderOpenAI:    "OPENAI_API_KEY",
	llm.ProviderAnthropic: "ANTHROPIC_API_KEY",
}

// deps holds everything a command may need. Fields for parts a command did not
// ask for stay nil.
type deps struct {
	logger   *zap.Logger
	config   *Config
	roles    *roles.Registry
	store    storage.Store
	analysis *analysis.Service

	closers []func() error
}

type wiringOptions struct {
	store    bool
	analysis bool
}

func newLogger() (*zap.Logger, error) {
	return logger.New(app, viper.GetBool("json"), viper.GetBool("debug"))
}

func wire(ctx context.Context, log *zap.Logger, opts wiringOptions) (*deps, error) {
	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}
	if config == nil {
		return nil, errors.New("config is required")
	}

	d := &deps{logger: log, config: config}
	d.roles = roles.Load(config.RolesFile, log)

	if opts.store {
		dsn := ""
		if config.Database != nil {
			dsn = config.Database.URL
		}
		store, err := storage.Open(ctx, dsn)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("opening %s store: %w", storage.Backend(dsn), err)
		}
		log.Info("store opened", zap.String("backend", storage.Backend(dsn)))
		d.store = store
		d.closers = append(d.closers, store.Close)
	}

	if opts.analysis {
		if err := d.wireAnalysis(ctx); err != nil {
			d.Close()
			return nil, err
		}
	}

	return d, nil
}

func (d *deps) wireAnalysis(ctx context.Context) error {
	cfg := d.config

	snapshot := taxonomy.NewStore(cfg.TaxonomyFile, d.logger).Load()

	generator, err := d.generator(ctx)
	if err != nil {
		return err
	}

	var mentorOpts mentor.Options
	if cfg.LLM != nil {
		mentorOpts = mentor.Options{Timeout: cfg.LLM.Timeout, MaxLogLength: cfg.LLM.MaxLogLength}
	}

	archiver, err := d.archiver(ctx)
	if err != nil {
		return err
	}

	publisher, err := d.publisher()
	if err != nil {
		return err
	}

	d.analysis = analysis.NewService(analysis.Deps{
		Extractor: skills.NewExtractor(snapshot),
		Analyzer:  gap.NewAnalyzer(d.roles),
		Mentor:    mentor.New(generator, d.logger, mentorOpts),
		Store:     d.store,
		Archiver:  archiver,
		Publisher: publisher,
		Logger:    d.logger,
	})
	return nil
}

// generator builds the configured provider. A missing API key is not fatal: the
// service runs with deterministic output only.
func (d *deps) generator(ctx context.Context) (llm.Generator, error) {
	cfg := d.config.LLM
	if cfg == nil {
		return nil, nil
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || provider == llm.ProviderNone {
		d.logger.Info("llm disabled, using deterministic guidance")
		return nil, nil
	}

	var pc ProviderConfig
	switch provider {
	case llm.ProviderGemini:
		pc = derefProvider(cfg.Gemini)
	case llm.ProviderOpenAI:
		pc = derefProvider(cfg.OpenAI)
	case llm.ProviderAnthropic:
		pc = derefProvider(cfg.Anthropic)
	default:
		return nil, fmt.Errorf("%w: %q", llm.ErrUnknownProvider, cfg.Provider)
	}

	key, err := secrets.Load(secrets.Source{
		Name:  provider + " api key",
		Value: pc.APIKey,
		File:  pc.APIKeyFile,
		Env:   apiKeyEnv[provider],
	})
	if errors.Is(err, secrets.ErrNotConfigured) {
		d.logger.Warn("llm api key is not configured, using deterministic guidance",
			zap.String(logger.FieldProvider, provider), zap.Error(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	generator, err := llm.New(ctx, llm.Settings{
		Provider:    provider,
		APIKey:      key,
		Model:       pc.Model,
		BaseURL:     pc.BaseURL,
		Temperature: cfg.Temperature,
		MaxRetries:  cfg.MaxRetries,
		MaxTokens:   pc.MaxTokens,
	}, d.logger)
	if err != nil {
		return nil, fmt.Errorf("creating %s generator: %w", provider, err)
	}

	providerName, model := llm.Describe(generator)
	d.logger.Info("llm enabled", zap.String(logger.FieldProvider, providerName), zap.String(logger.FieldModel, model))

	return d.withCache(ctx, generator)
}

func (d *deps) withCache(ctx context.Context, generator llm.Generator) (llm.Generator, error) {
	cfg := d.config.Cache
	if cfg == nil || !cfg.Enabled {
		return generator, nil
	}

	if cfg.RedisURL == "" {
		d.logger.Info("llm cache enabled", zap.String("backend", "memory"), zap.Duration("ttl", cfg.TTL))
		return cache.Wrap(generator, cache.NewMemory(), cfg.TTL, d.logger), nil
	}

	store, err := cache.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connecting llm cache: %w", err)
	}
	d.closers = append(d.closers, store.Close)
	d.logger.Info("llm cache enabled", zap.String("backend", "redis"), zap.Duration("ttl", cfg.TTL))
	return cache.Wrap(generator, store, cfg.TTL, d.logger), nil
}

func (d *deps) archiver(ctx context.Context) (archive.Archiver, error) {
	cfg := d.config.Archive
	if cfg == nil || !cfg.Enabled {
		return archive.Nop{}, nil
	}

	a, err := archive.NewS3(ctx, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("creating upload archive: %w", err)
	}
	d.logger.Info("upload archive enabled", zap.String("bucket", cfg.S3.Bucket))
	return a, nil
}

func (d *deps) publisher() (events.Publisher, error) {
	cfg := d.config.Events
	if cfg == nil || cfg.AMQPURL == "" {
		return events.Nop{}, nil
	}

	p, err := events.DialAMQP(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	d.closers = append(d.closers, p.Close)
	d.logger.Info("analysis events enabled", zap.String("exchange", cfg.Exchange))
	return p, nil
}

// Close releases resources in reverse order of acquisition.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Warn("closing resource", zap.Error(err))
		}
	}
	d.closers = nil
}

func derefProvider(p *ProviderConfig) ProviderConfig {
	if p == nil {
		return ProviderConfig{}
	}
	return *p
}
