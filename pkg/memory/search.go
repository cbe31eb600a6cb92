package memory

import (
	"context"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/metrics"
	"github.com/m-mizutani/querymem/pkg/model"
	"github.com/m-mizutani/querymem/pkg/utils/logging"
)

// SearchInput selects memories for a new query. SessionID may be empty, in
// which case every hit counts toward the global quota.
type SearchInput struct {
	Query               string
	SessionID           string
	TopKSession         int
	TopKGlobal          int
	SimilarityThreshold float64
}

// SearchResponse holds session results followed by global results. Warning
// is set when retrieval degraded to nothing because the provider failed.
type SearchResponse struct {
	Results []*model.SearchResult `json:"results"`
	Warning string                `json:"warning,omitempty"`
}

// Search returns past interactions similar to the query. Provider failures do
// not fail the call; they produce an empty response with a warning.
func (s *Store) Search(ctx context.Context, input SearchInput) (*SearchResponse, error) {
	if input.TopKSession < 0 || input.TopKGlobal < 0 {
		return nil, goerr.Wrap(ErrInvalidArgument, "quotas must not be negative",
			goerr.V("top_k_session", input.TopKSession), goerr.V("top_k_global", input.TopKGlobal))
	}
	if math.IsNaN(input.SimilarityThreshold) {
		return nil, goerr.Wrap(ErrInvalidArgument, "similarity threshold is NaN")
	}

	if (input.TopKSession == 0 && input.TopKGlobal == 0) || s.size() == 0 {
		s.observeSearch(metrics.OutcomeEmpty, 0)
		return &SearchResponse{}, nil
	}

	query, err := s.embed(ctx, input.Query)
	if err != nil {
		logging.From(ctx).Warn("memory retrieval skipped", "error", err)
		s.observeSearch(metrics.OutcomeDegraded, 0)
		return &SearchResponse{Warning: "memory retrieval unavailable: embedding provider failed"}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	fetch := 2 * max(input.TopKSession, input.TopKGlobal)
	matches, err := s.index.Search(query, fetch)
	if err != nil {
		logging.From(ctx).Warn("memory retrieval skipped", "error", err)
		s.observeSearch(metrics.OutcomeDegraded, 0)
		return &SearchResponse{Warning: "memory retrieval unavailable: index search failed"}, nil
	}

	var session, global []*model.SearchResult
	seen := make(map[model.EntryID]struct{}, len(matches))
	for _, m := range matches {
		if len(session) >= input.TopKSession && len(global) >= input.TopKGlobal {
			break
		}
		if m.Score < input.SimilarityThreshold {
			continue
		}

		entry := s.log.At(m.Ordinal)
		if _, ok := seen[entry.ID]; ok {
			continue
		}

		if input.SessionID != "" && entry.SessionID == input.SessionID {
			if len(session) < input.TopKSession {
				session = append(session, newResult(entry, m.Score, model.ScopeSession))
				seen[entry.ID] = struct{}{}
			}
		} else if len(global) < input.TopKGlobal {
			global = append(global, newResult(entry, m.Score, model.ScopeGlobal))
			seen[entry.ID] = struct{}{}
		}
	}

	results := append(session, global...)
	s.observeSearch(metrics.OutcomeOK, len(results))
	logging.From(ctx).Debug("memory search",
		"session_id", input.SessionID, "candidates", len(matches),
		"session_hits", len(session), "global_hits", len(global))

	return &SearchResponse{Results: results}, nil
}

func newResult(entry *model.MemoryEntry, score float64, scope model.Scope) *model.SearchResult {
	return &model.SearchResult{
		Entry:      entry.WithoutEmbedding(),
		Similarity: score,
		Scope:      scope,
		Snippet:    Snippet(entry),
	}
}

func (s *Store) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.log.Len()
}

func (s *Store) observeSearch(outcome string, n int) {
	s.metrics.Searches.WithLabelValues(outcome).Inc()
	s.metrics.SearchResults.Observe(float64(n))
}
