// Package config loads the querymem configuration file
package config

import (
	"math"
	"os"
	"slices"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Embedding providers
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderHash   = "hash"
)

var (
	ErrInvalidConfig = goerr.New("invalid config")

	providers  = []string{ProviderGemini, ProviderOpenAI, ProviderOllama, ProviderHash}
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"console", "json"}
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Log       LogConfig       `yaml:"log"`
	Backup    BackupConfig    `yaml:"backup"`
}

type StoreConfig struct {
	Dir          string `yaml:"dir"`
	IndexFile    string `yaml:"index_file"`
	MetadataFile string `yaml:"metadata_file"`
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	// CacheTTL enables the query embedding cache when positive
	CacheTTL time.Duration `yaml:"cache_ttl"`

	Gemini GeminiConfig `yaml:"gemini"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Ollama OllamaConfig `yaml:"ollama"`
}

type GeminiConfig struct {
	Project  string `yaml:"project"`
	Location string `yaml:"location"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type OllamaConfig struct {
	Host string `yaml:"host"`
}

type SearchConfig struct {
	TopKSession         int     `yaml:"top_k_session"`
	TopKGlobal          int     `yaml:"top_k_global"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BackupConfig selects the Cloud Storage location of store backups
type BackupConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Dir:          "./querymem_data",
			IndexFile:    "memory.index",
			MetadataFile: "metadata.json",
		},
		Embedding: EmbeddingConfig{
			Provider:  ProviderHash,
			Dimension: 256,
			Gemini: GeminiConfig{
				Location: "us-central1",
			},
		},
		Search: SearchConfig{
			TopKSession:         3,
			TopKGlobal:          2,
			SimilarityThreshold: 0.7,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Backup: BackupConfig{
			Prefix: "querymem",
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("file", path))
	}

	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse YAML config", goerr.V("file", path))
	}

	return cfg, nil
}

// Validate reports the first invalid value
func (c *Config) Validate() error {
	if c.Store.Dir == "" {
		return goerr.Wrap(ErrInvalidConfig, "store.dir is required")
	}
	if c.Store.IndexFile == "" || c.Store.MetadataFile == "" {
		return goerr.Wrap(ErrInvalidConfig, "store file names are required")
	}
	if c.Store.IndexFile == c.Store.MetadataFile {
		return goerr.Wrap(ErrInvalidConfig, "index and metadata files must differ",
			goerr.V("file", c.Store.IndexFile))
	}

	if err := c.Embedding.Validate(); err != nil {
		return err
	}

	if c.Search.TopKSession < 0 || c.Search.TopKGlobal < 0 {
		return goerr.Wrap(ErrInvalidConfig, "search quotas must not be negative",
			goerr.V("top_k_session", c.Search.TopKSession), goerr.V("top_k_global", c.Search.TopKGlobal))
	}
	if math.IsNaN(c.Search.SimilarityThreshold) {
		return goerr.Wrap(ErrInvalidConfig, "search.similarity_threshold is NaN")
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		return goerr.Wrap(ErrInvalidConfig, "unknown log level", goerr.V("level", c.Log.Level))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		return goerr.Wrap(ErrInvalidConfig, "unknown log format", goerr.V("format", c.Log.Format))
	}

	return nil
}

func (c *EmbeddingConfig) Validate() error {
	if !slices.Contains(providers, c.Provider) {
		return goerr.Wrap(ErrInvalidConfig, "unknown embedding provider",
			goerr.V("provider", c.Provider), goerr.V("supported", providers))
	}
	if c.Dimension <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "embedding.dimension must be positive",
			goerr.V("dimension", c.Dimension))
	}
	if c.CacheTTL < 0 {
		return goerr.Wrap(ErrInvalidConfig, "embedding.cache_ttl must not be negative")
	}

	switch c.Provider {
	case ProviderGemini:
		if c.Gemini.Project == "" {
			return goerr.Wrap(ErrInvalidConfig, "embedding.gemini.project is required")
		}
		if c.Gemini.Location == "" {
			return goerr.Wrap(ErrInvalidConfig, "embedding.gemini.location is required")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return goerr.Wrap(ErrInvalidConfig, "embedding.openai.api_key is required")
		}
	case ProviderOllama:
		if c.Model == "" {
			return goerr.Wrap(ErrInvalidConfig, "embedding.model is required for ollama")
		}
	}

	return nil
}
