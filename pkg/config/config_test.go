package config_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/querymem/pkg/config"
)

func TestDefaultIsValid(t *testing.T) {
	gt.NoError(t, config.Default().Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "querymem.yaml")
	content := `
store:
  dir: /var/lib/querymem
embedding:
  provider: ollama
  model: nomic-embed-text
  dimension: 768
  cache_ttl: 10m
  ollama:
    host: http://ollama:11434
search:
  top_k_session: 4
log:
  format: json
`
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	gt.NoError(t, err)
	gt.NoError(t, cfg.Validate())

	gt.Equal(t, cfg.Store.Dir, "/var/lib/querymem")
	gt.Equal(t, cfg.Store.IndexFile, "memory.index")
	gt.Equal(t, cfg.Embedding.Provider, config.ProviderOllama)
	gt.Equal(t, cfg.Embedding.Dimension, 768)
	gt.Equal(t, cfg.Embedding.CacheTTL, 10*time.Minute)
	gt.Equal(t, cfg.Embedding.Ollama.Host, "http://ollama:11434")
	gt.Equal(t, cfg.Search.TopKSession, 4)
	gt.Equal(t, cfg.Search.TopKGlobal, 2)
	gt.Equal(t, cfg.Log.Level, "info")
	gt.Equal(t, cfg.Log.Format, "json")
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := config.Load("")
	gt.NoError(t, err)
	gt.Equal(t, cfg, config.Default())
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load("/nonexistent/querymem.yaml")
	gt.Error(t, err)

	path := filepath.Join(t.TempDir(), "invalid.yaml")
	gt.NoError(t, os.WriteFile(path, []byte("store: [unclosed"), 0o600))
	_, err = config.Load(path)
	gt.Error(t, err)
}

func TestValidate(t *testing.T) {
	testCases := map[string]func(*config.Config){
		"empty dir":          func(c *config.Config) { c.Store.Dir = "" },
		"same file names":    func(c *config.Config) { c.Store.MetadataFile = c.Store.IndexFile },
		"unknown provider":   func(c *config.Config) { c.Embedding.Provider = "word2vec" },
		"zero dimension":     func(c *config.Config) { c.Embedding.Dimension = 0 },
		"negative cache ttl": func(c *config.Config) { c.Embedding.CacheTTL = -time.Second },
		"gemini no project":  func(c *config.Config) { c.Embedding.Provider = config.ProviderGemini },
		"openai no key":      func(c *config.Config) { c.Embedding.Provider = config.ProviderOpenAI },
		"ollama no model":    func(c *config.Config) { c.Embedding.Provider = config.ProviderOllama },
		"negative quota":     func(c *config.Config) { c.Search.TopKGlobal = -1 },
		"NaN threshold":      func(c *config.Config) { c.Search.SimilarityThreshold = math.NaN() },
		"bad log level":      func(c *config.Config) { c.Log.Level = "verbose" },
		"bad log format":     func(c *config.Config) { c.Log.Format = "xml" },
	}

	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Default()
			mutate(cfg)
			err := cfg.Validate()
			gt.True(t, errors.Is(err, config.ErrInvalidConfig))
		})
	}
}
