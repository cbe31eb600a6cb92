package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// GeminiEmbedder computes embeddings with the Gemini embedding models on
// Vertex AI
type GeminiEmbedder struct {
	client    *genai.Client
	model     string
	dimension int
}

type GeminiOption func(*GeminiEmbedder)

func WithGeminiModel(model string) GeminiOption {
	return func(g *GeminiEmbedder) {
		g.model = model
	}
}

// NewGemini creates an embedder that asks the model for vectors of the given
// dimension
func NewGemini(ctx context.Context, projectID, location string, dimension int, opts ...GeminiOption) (*GeminiEmbedder, error) {
	if dimension <= 0 {
		return nil, goerr.New("embedding dimension must be positive", goerr.V("dimension", dimension))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &GeminiEmbedder{
		client:    client,
		model:     "gemini-embedding-001",
		dimension: dimension,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	dim := int32(g.dimension)
	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", g.model))
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, goerr.New("empty embedding response from gemini", goerr.V("model", g.model))
	}

	return resp.Embeddings[0].Values, nil
}

func (g *GeminiEmbedder) Dimension() int {
	return g.dimension
}
