package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/greenscale93/IIsys/ai"
	"github.com/greenscale93/IIsys/config"
	"github.com/greenscale93/IIsys/dataset"
	"github.com/greenscale93/IIsys/mapping"
	"github.com/greenscale93/IIsys/query"
	"github.com/greenscale93/IIsys/schema"
	"github.com/greenscale93/IIsys/template"
)

// LoadDatasets reads the configured data source.
func LoadDatasets(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dataset.Registry, error) {
	switch cfg.Data.Source {
	case "postgres":
		pg, err := dataset.ConnectPG(ctx, cfg.Data.DSN, logger)
		if err != nil {
			return nil, err
		}
		defer pg.Close()
		ds, err := pg.LoadSchema(ctx, cfg.Data.Schema)
		if err != nil {
			return nil, errors.Wrap(err, "load postgres tables")
		}
		return dataset.NewRegistry(ds...), nil
	case "csv", "":
		ds, err := dataset.LoadDir(ctx, cfg.Data.Dir, logger)
		if err != nil {
			return nil, errors.Wrap(err, "load csv tables")
		}
		return dataset.NewRegistry(ds...), nil
	}
	return nil, errors.WithHint(errors.Newf("unknown data source %q", cfg.Data.Source),
		"set data.source to csv or postgres")
}

// Open loads everything cfg points at and builds an engine. A provider
// that cannot be built only disables inference.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	registry, err := LoadDatasets(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("datasets loaded", zap.Int("count", registry.Len()), zap.String("source", cfg.Data.Source))

	idx, err := schema.Load(cfg.Path(cfg.Files.Schema))
	if err != nil {
		return nil, err
	}
	store, err := mapping.NewStore(
		mapping.FileLayer{Path: cfg.Path(cfg.Files.MappingsDefaults)},
		mapping.FileLayer{Path: cfg.Path(cfg.Files.MappingsUser)},
		logger)
	if err != nil {
		return nil, errors.Wrap(err, "load mappings")
	}
	values, err := mapping.NewValueStore(cfg.Path(cfg.Files.Values), idx, logger)
	if err != nil {
		return nil, errors.Wrap(err, "load value aliases")
	}
	templates, err := template.OpenStore(cfg.Path(cfg.Files.Templates), cfg.Path(cfg.Files.TemplateAliases), logger)
	if err != nil {
		return nil, err
	}

	var inferer template.Inferer
	provider, err := ai.NewProvider(cfg.AI)
	if err != nil {
		logger.Warn("inference disabled", zap.String("provider", cfg.AI.Provider), zap.Error(err))
	} else {
		inferer = ai.NewInferer(provider, logger)
	}

	return New(Components{
		Mapping:   store,
		Values:    values,
		Schema:    idx,
		Registry:  registry,
		Templates: templates,
		Inferer:   inferer,
		Logger:    logger,
	}, Options{
		ColumnTopN:    cfg.Fuzzy.ColumnTopN,
		ValueTopN:     cfg.Fuzzy.ValueTopN,
		MinConfidence: cfg.Inference.MinConfidence,
		Executor: query.Options{
			Timeout:      cfg.Executor.Timeout,
			PreviewLimit: cfg.Executor.PreviewLimit,
		},
	})
}

// WatchedFiles are the documents whose external edits call for Reload.
func WatchedFiles(cfg *config.Config) []string {
	return []string{
		cfg.Path(cfg.Files.Schema),
		cfg.Path(cfg.Files.MappingsDefaults),
		cfg.Path(cfg.Files.MappingsUser),
		cfg.Path(cfg.Files.Values),
		cfg.Path(cfg.Files.Templates),
		cfg.Path(cfg.Files.TemplateAliases),
	}
}
