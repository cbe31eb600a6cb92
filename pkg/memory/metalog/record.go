package metalog

import (
	"time"

	"github.com/m-mizutani/querymem/pkg/model"
)

// record is the on-disk form of one entry. Every field is written
// explicitly; extra metadata stays in its own object so caller keys can
// never shadow core fields.
type record struct {
	ID             string              `json:"id"`
	SessionID      string              `json:"session_id"`
	Timestamp      string              `json:"timestamp"`
	UserQuery      string              `json:"user_query"`
	GeneratedQuery string              `json:"generated_query"`
	AnalysisText   string              `json:"analysis_text"`
	ResultPreview  string              `json:"result_preview"`
	EmbeddingText  string              `json:"embedding_text"`
	Embedding      []float32           `json:"embedding"`
	Extra          model.ExtraMetadata `json:"extra_metadata,omitempty"`
}

func toRecord(e *model.MemoryEntry) record {
	return record{
		ID:             string(e.ID),
		SessionID:      e.SessionID,
		Timestamp:      e.Timestamp.UTC().Format(time.RFC3339Nano),
		UserQuery:      e.UserQuery,
		GeneratedQuery: e.GeneratedQuery,
		AnalysisText:   e.AnalysisText,
		ResultPreview:  e.ResultPreview,
		EmbeddingText:  e.EmbeddingText,
		Embedding:      e.Embedding,
		Extra:          e.Extra,
	}
}

func (r record) toEntry() (*model.MemoryEntry, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return nil, err
	}
	return &model.MemoryEntry{
		ID:             model.EntryID(r.ID),
		SessionID:      r.SessionID,
		Timestamp:      ts.UTC(),
		UserQuery:      r.UserQuery,
		GeneratedQuery: r.GeneratedQuery,
		AnalysisText:   r.AnalysisText,
		ResultPreview:  r.ResultPreview,
		EmbeddingText:  r.EmbeddingText,
		Embedding:      r.Embedding,
		Extra:          r.Extra,
	}, nil
}
