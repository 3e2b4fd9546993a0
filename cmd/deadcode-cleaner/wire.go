package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/bryanwahyu/deadcode-cleaner/internal/application"
	appcleaning "github.com/bryanwahyu/deadcode-cleaner/internal/application/cleaning"
	"github.com/bryanwahyu/deadcode-cleaner/internal/config"
	"github.com/bryanwahyu/deadcode-cleaner/internal/infra/ai/analysis"
	"github.com/bryanwahyu/deadcode-cleaner/internal/infra/ai/openai"
	"github.com/bryanwahyu/deadcode-cleaner/internal/infra/ai/prompt"
	"github.com/bryanwahyu/deadcode-cleaner/internal/infra/source"
	"github.com/bryanwahyu/deadcode-cleaner/internal/infra/storage"
	"github.com/bryanwahyu/deadcode-cleaner/internal/logging"
)

// deps is everything a command needs, built from configuration.
type deps struct {
	cfg    *config.Config
	logger zerolog.Logger
	svc    *appcleaning.Service
	store  *storage.Store // nil unless object storage is configured
}

// loadConfig reads and validates configuration, applying flag overrides
// before validation.
func loadConfig(c *cli.Context, override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if override != nil {
		override(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setup(c *cli.Context, override func(*config.Config)) (*deps, error) {
	cfg, err := loadConfig(c, override)
	if err != nil {
		return nil, err
	}

	logger := logging.NewWithWriter(c.App.ErrWriter, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logging.RedirectStdlib(logger)

	model, err := analysis.NewModel(analysis.ModelOptions{
		Provider: cfg.Analysis.Provider,
		APIKey:   cfg.Analysis.APIKey,
		BaseURL:  cfg.Analysis.BaseURL,
		Model:    cfg.Analysis.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("analysis model init error: %w", err)
	}

	d := &deps{cfg: cfg, logger: logger}

	loader := &source.Loader{}
	if cfg.MinioEnabled() {
		d.store, err = storage.New(c.Context,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("minio init error: %w", err)
		}
		loader.Objects = d.store
	}

	d.svc = &appcleaning.Service{
		Analyzer: analysis.NewDispatcher(model,
			analysis.WithLanguage(cfg.Analysis.Language),
			analysis.WithTemperature(cfg.Analysis.Temperature),
			analysis.WithMaxConcurrency(cfg.Analysis.MaxConcurrency),
			analysis.WithLogger(logger),
		),
		Chat:    openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL),
		Sources: loader,
		Prompt:  prompt.Builder(cfg.Analysis.Language),
		Clock:   application.SystemClock{},
		Logger:  logger,
	}

	logger.Debug().
		Str("chat_model", cfg.OpenAI.Model).
		Str("analysis_provider", cfg.Analysis.Provider).
		Str("analysis_model", cfg.Analysis.Model).
		Str("language", cfg.Analysis.Language).
		Bool("object_storage", d.store != nil).
		Msg("dependencies ready")
	return d, nil
}
