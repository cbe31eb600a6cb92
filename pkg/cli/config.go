package cli

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/adapter"
	"github.com/m-mizutani/querymem/pkg/config"
	"github.com/m-mizutani/querymem/pkg/memory"
	"github.com/m-mizutani/querymem/pkg/metrics"
	"github.com/m-mizutani/querymem/pkg/usecase/backup"
	"github.com/m-mizutani/querymem/pkg/utils/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
)

// options holds flag values. Flags that are set override the config file.
type options struct {
	configFile string

	dir       string
	logLevel  string
	logFormat string

	provider       string
	model          string
	dimension      int64
	cacheTTL       time.Duration
	geminiProject  string
	geminiLocation string
	openaiAPIKey   string
	openaiBaseURL  string
	ollamaHost     string

	bucket string
	prefix string
}

// globalFlags returns common flags used across commands with destination options
func globalFlags(opts *options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file",
			Sources:     cli.EnvVars("QUERYMEM_CONFIG"),
			Destination: &opts.configFile,
		},
		&cli.StringFlag{
			Name:        "dir",
			Aliases:     []string{"d"},
			Usage:       "Store directory",
			Sources:     cli.EnvVars("QUERYMEM_DIR"),
			Destination: &opts.dir,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Sources:     cli.EnvVars("QUERYMEM_LOG_LEVEL"),
			Destination: &opts.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Sources:     cli.EnvVars("QUERYMEM_LOG_FORMAT"),
			Destination: &opts.logFormat,
		},
	}
}

// embeddingFlags returns flags for the embedding provider with destination options
func embeddingFlags(opts *options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "provider",
			Usage:       "Embedding provider (gemini, openai, ollama, hash)",
			Sources:     cli.EnvVars("QUERYMEM_EMBEDDING_PROVIDER"),
			Destination: &opts.provider,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Embedding model name",
			Sources:     cli.EnvVars("QUERYMEM_EMBEDDING_MODEL"),
			Destination: &opts.model,
		},
		&cli.IntFlag{
			Name:        "dimension",
			Usage:       "Embedding dimension",
			Sources:     cli.EnvVars("QUERYMEM_EMBEDDING_DIMENSION"),
			Destination: &opts.dimension,
		},
		&cli.DurationFlag{
			Name:        "cache-ttl",
			Usage:       "TTL of the query embedding cache, 0 disables it",
			Sources:     cli.EnvVars("QUERYMEM_EMBEDDING_CACHE_TTL"),
			Destination: &opts.cacheTTL,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &opts.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &opts.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Sources:     cli.EnvVars("OPENAI_API_KEY"),
			Destination: &opts.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-base-url",
			Usage:       "Base URL of an OpenAI compatible API",
			Sources:     cli.EnvVars("OPENAI_BASE_URL"),
			Destination: &opts.openaiBaseURL,
		},
		&cli.StringFlag{
			Name:        "ollama-host",
			Usage:       "Ollama server URL",
			Sources:     cli.EnvVars("OLLAMA_HOST"),
			Destination: &opts.ollamaHost,
		},
	}
}

// backupFlags returns flags for the backup location with destination options
func backupFlags(opts *options) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Aliases:     []string{"b"},
			Usage:       "Cloud Storage bucket for backups",
			Sources:     cli.EnvVars("QUERYMEM_BACKUP_BUCKET"),
			Destination: &opts.bucket,
		},
		&cli.StringFlag{
			Name:        "prefix",
			Usage:       "Object prefix for backups",
			Sources:     cli.EnvVars("QUERYMEM_BACKUP_PREFIX"),
			Destination: &opts.prefix,
		},
	}
}

// load reads the config file, applies the flags that were set and validates
// the result
func (opts *options) load(c *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag  string
		apply func()
	}{
		{"dir", func() { cfg.Store.Dir = opts.dir }},
		{"log-level", func() { cfg.Log.Level = opts.logLevel }},
		{"log-format", func() { cfg.Log.Format = opts.logFormat }},
		{"provider", func() { cfg.Embedding.Provider = opts.provider }},
		{"model", func() { cfg.Embedding.Model = opts.model }},
		{"dimension", func() { cfg.Embedding.Dimension = int(opts.dimension) }},
		{"cache-ttl", func() { cfg.Embedding.CacheTTL = opts.cacheTTL }},
		{"gemini-project", func() { cfg.Embedding.Gemini.Project = opts.geminiProject }},
		{"gemini-location", func() { cfg.Embedding.Gemini.Location = opts.geminiLocation }},
		{"openai-api-key", func() { cfg.Embedding.OpenAI.APIKey = opts.openaiAPIKey }},
		{"openai-base-url", func() { cfg.Embedding.OpenAI.BaseURL = opts.openaiBaseURL }},
		{"ollama-host", func() { cfg.Embedding.Ollama.Host = opts.ollamaHost }},
		{"bucket", func() { cfg.Backup.Bucket = opts.bucket }},
		{"prefix", func() { cfg.Backup.Prefix = opts.prefix }},
	}
	for _, o := range overrides {
		if c.IsSet(o.flag) {
			o.apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the config and attaches the configured logger to ctx
func (opts *options) setup(ctx context.Context, c *cli.Command) (context.Context, *config.Config, error) {
	cfg, err := opts.load(c)
	if err != nil {
		return ctx, nil, err
	}

	logger := logging.NewWithFormat(cfg.Log.Format, cfg.Log.Level, c.Root().ErrWriter)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), cfg, nil
}

// newEmbedder creates the embedding provider selected by cfg
func newEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (adapter.Embedder, error) {
	var (
		embedder adapter.Embedder
		err      error
	)

	switch cfg.Provider {
	case config.ProviderGemini:
		var opts []adapter.GeminiOption
		if cfg.Model != "" {
			opts = append(opts, adapter.WithGeminiModel(cfg.Model))
		}
		embedder, err = adapter.NewGemini(ctx, cfg.Gemini.Project, cfg.Gemini.Location, cfg.Dimension, opts...)

	case config.ProviderOpenAI:
		var opts []adapter.OpenAIOption
		if cfg.Model != "" {
			opts = append(opts, adapter.WithOpenAIModel(cfg.Model))
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, adapter.WithOpenAIBaseURL(cfg.OpenAI.BaseURL))
		}
		embedder, err = adapter.NewOpenAI(cfg.OpenAI.APIKey, cfg.Dimension, opts...)

	case config.ProviderOllama:
		embedder, err = adapter.NewOllama(cfg.Ollama.Host, cfg.Model, cfg.Dimension)

	case config.ProviderHash:
		embedder, err = adapter.NewHash(cfg.Dimension)

	default:
		return nil, goerr.New("unknown embedding provider", goerr.V("provider", cfg.Provider))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedder", goerr.V("provider", cfg.Provider))
	}

	if cfg.CacheTTL > 0 {
		embedder = adapter.NewCachedEmbedder(embedder, cfg.CacheTTL)
	}
	return embedder, nil
}

// openStore opens the memory store with collectors registered on reg
func openStore(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*memory.Store, error) {
	embedder, err := newEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		return nil, err
	}

	store, err := memory.Open(ctx, cfg.Store.Dir, embedder,
		memory.WithIndexFile(cfg.Store.IndexFile),
		memory.WithMetadataFile(cfg.Store.MetadataFile),
		memory.WithMetrics(metrics.New(reg)),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open memory store", goerr.V("dir", cfg.Store.Dir))
	}
	return store, nil
}

// newBackup creates the backup usecase on the configured bucket
func newBackup(ctx context.Context, cfg *config.Config) (*backup.UseCase, error) {
	if cfg.Backup.Bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	storage, err := adapter.NewStorage(ctx, cfg.Backup.Bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return backup.New(storage, cfg.Backup.Prefix), nil
}
