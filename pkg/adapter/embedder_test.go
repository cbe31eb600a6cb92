package adapter_test

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/querymem/pkg/adapter"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder(t *testing.T) {
	ctx := context.Background()
	h, err := adapter.NewHash(64)
	gt.NoError(t, err)
	gt.Equal(t, h.Dimension(), 64)

	a, err := h.Embed(ctx, "orders per region last week")
	gt.NoError(t, err)
	gt.A(t, a).Length(64)

	again, err := h.Embed(ctx, "Orders per REGION, last week")
	gt.NoError(t, err)
	gt.Equal(t, a, again)

	related, err := h.Embed(ctx, "orders per region")
	gt.NoError(t, err)
	unrelated, err := h.Embed(ctx, "revenue by product category")
	gt.NoError(t, err)
	gt.True(t, cosine(a, related) > cosine(a, unrelated))

	_, err = adapter.NewHash(0)
	gt.Error(t, err)
}

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) Dimension() int {
	return 2
}

func TestCachedEmbedder(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{}
	c := adapter.NewCachedEmbedder(inner, time.Minute)
	gt.Equal(t, c.Dimension(), 2)

	v1, err := c.Embed(ctx, "hello")
	gt.NoError(t, err)
	v2, err := c.Embed(ctx, "hello")
	gt.NoError(t, err)
	gt.Equal(t, v1, v2)
	gt.Equal(t, inner.calls, 1)
	gt.Equal(t, c.Len(), 1)

	// Cached vectors are not shared with callers
	v2[0] = 100
	v3, err := c.Embed(ctx, "hello")
	gt.NoError(t, err)
	gt.Equal(t, v3[0], float32(5))

	_, err = c.Embed(ctx, "world")
	gt.NoError(t, err)
	gt.Equal(t, inner.calls, 2)
}

func TestCachedEmbedderDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	inner := &countingEmbedder{err: goerr.New("unavailable")}
	c := adapter.NewCachedEmbedder(inner, time.Minute)

	_, err := c.Embed(ctx, "hello")
	gt.Error(t, err)
	_, err = c.Embed(ctx, "hello")
	gt.Error(t, err)
	gt.Equal(t, inner.calls, 2)
	gt.Equal(t, c.Len(), 0)
}

func TestCachedEmbedderExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("zero ttl never expires", func(t *testing.T) {
		inner := &countingEmbedder{}
		c := adapter.NewCachedEmbedder(inner, 0)
		_, err := c.Embed(ctx, "hello")
		gt.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
		_, err = c.Embed(ctx, "hello")
		gt.NoError(t, err)
		gt.Equal(t, inner.calls, 1)
	})

	t.Run("positive ttl expires", func(t *testing.T) {
		inner := &countingEmbedder{}
		c := adapter.NewCachedEmbedder(inner, 5*time.Millisecond)
		_, err := c.Embed(ctx, "hello")
		gt.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
		_, err = c.Embed(ctx, "hello")
		gt.NoError(t, err)
		gt.Equal(t, inner.calls, 2)
	})
}

func TestOllamaEmbedder(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/api/embed")
		var req map[string]any
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel, _ = req["model"].(string)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":      gotModel,
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	o, err := adapter.NewOllama(srv.URL, "nomic-embed-text", 3)
	gt.NoError(t, err)

	vec, err := o.Embed(context.Background(), "hello")
	gt.NoError(t, err)
	gt.Equal(t, vec, []float32{0.1, 0.2, 0.3})
	gt.Equal(t, gotModel, "nomic-embed-text")
	gt.Equal(t, o.Dimension(), 3)
}

func TestOllamaEmbedderEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"m","embeddings":[]}`))
	}))
	defer srv.Close()

	o, err := adapter.NewOllama(srv.URL, "m", 3)
	gt.NoError(t, err)
	_, err = o.Embed(context.Background(), "hello")
	gt.Error(t, err)
}

func TestOllamaRequiresModel(t *testing.T) {
	_, err := adapter.NewOllama("", "", 3)
	gt.Error(t, err)
}

func TestOpenAIEmbedder(t *testing.T) {
	var gotDimensions float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/v1/embeddings")
		gt.Equal(t, r.Header.Get("Authorization"), "Bearer test-key")

		var req map[string]any
		gt.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotDimensions, _ = req["dimensions"].(float64)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": []float32{0.5, 0.5}},
			},
		})
	}))
	defer srv.Close()

	e, err := adapter.NewOpenAI("test-key", 2, adapter.WithOpenAIBaseURL(srv.URL+"/v1"))
	gt.NoError(t, err)

	vec, err := e.Embed(context.Background(), "hello")
	gt.NoError(t, err)
	gt.Equal(t, vec, []float32{0.5, 0.5})
	gt.Equal(t, gotDimensions, 2.0)
}

func TestOpenAIRequiresKey(t *testing.T) {
	_, err := adapter.NewOpenAI("", 2)
	gt.Error(t, err)
}

func TestGeminiEmbedder(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT is not set")
	}

	ctx := context.Background()
	g, err := adapter.NewGemini(ctx, projectID, "us-central1", 256)
	gt.NoError(t, err)

	vec, err := g.Embed(ctx, "How many orders were placed last week?")
	gt.NoError(t, err)
	gt.A(t, vec).Length(256)
}
