package adapter

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/goerr/v2"
	ollama "github.com/ollama/ollama/api"
)

const DefaultOllamaHost = "http://localhost:11434"

// OllamaEmbedder computes embeddings with a local Ollama server
type OllamaEmbedder struct {
	client    *ollama.Client
	model     string
	dimension int
}

// NewOllama creates an embedder for model served at host. The dimension must
// match what the model produces.
func NewOllama(host, model string, dimension int) (*OllamaEmbedder, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	if model == "" {
		return nil, goerr.New("ollama model is required")
	}
	if dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", dimension))
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid ollama host", goerr.V("host", host))
	}

	httpClient := &http.Client{
		Timeout: 60 * time.Second,
	}

	return &OllamaEmbedder{
		client:    ollama.NewClient(u, httpClient),
		model:     model,
		dimension: dimension,
	}, nil
}

func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.Embed(ctx, &ollama.EmbedRequest{
		Model: o.model,
		Input: text,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed with ollama", goerr.V("model", o.model))
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, goerr.New("empty embedding response from ollama", goerr.V("model", o.model))
	}

	return resp.Embeddings[0], nil
}

func (o *OllamaEmbedder) Dimension() int {
	return o.dimension
}
