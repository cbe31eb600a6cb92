package model

import (
	"time"

	"github.com/google/uuid"
)

type EntryID string

// NewEntryID generates a new unique EntryID
func NewEntryID() EntryID {
	return EntryID(uuid.New().String())
}

// MemoryEntry is one stored interaction of the query pipeline. Entries are
// never modified after they are written.
type MemoryEntry struct {
	ID        EntryID   `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`

	UserQuery      string `json:"user_query"`
	GeneratedQuery string `json:"generated_query"`
	AnalysisText   string `json:"analysis_text"`
	ResultPreview  string `json:"result_preview,omitempty"`

	// EmbeddingText is the canonical text the embedding was computed from
	EmbeddingText string `json:"embedding_text"`
	// Embedding is unit-norm and duplicates the vector index row for recovery
	Embedding []float32 `json:"embedding,omitempty"`

	Extra ExtraMetadata `json:"extra_metadata,omitempty"`
}

// WithoutEmbedding returns a shallow copy that drops the embedding vector.
// Extra is copied so callers cannot reach the stored map.
func (e *MemoryEntry) WithoutEmbedding() *MemoryEntry {
	cp := *e
	cp.Embedding = nil
	cp.Extra = e.Extra.Clone()
	return &cp
}

type Scope string

const (
	ScopeSession Scope = "session"
	ScopeGlobal  Scope = "global"
)

// SearchResult is a ranked memory returned by a similarity search
type SearchResult struct {
	Entry      *MemoryEntry `json:"entry"`
	Similarity float64      `json:"similarity"`
	Scope      Scope        `json:"scope"`
	Snippet    string       `json:"snippet"`
}

// SessionSummary aggregates the entries of one session
type SessionSummary struct {
	SessionID       string    `json:"session_id"`
	Count           int       `json:"count"`
	LatestTimestamp time.Time `json:"latest_timestamp"`
}
