package memory

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/memory/index"
	"github.com/m-mizutani/querymem/pkg/metrics"
	"github.com/m-mizutani/querymem/pkg/model"
	"github.com/m-mizutani/querymem/pkg/utils/logging"
)

// AddEntryInput is one completed interaction to remember
type AddEntryInput struct {
	SessionID      string
	UserQuery      string
	GeneratedQuery string
	AnalysisText   string
	ResultPreview  string
	Extra          map[string]any
}

// AddEntry embeds the interaction and persists it to both files. On any
// persistence failure the store is left as it was before the call.
func (s *Store) AddEntry(ctx context.Context, input AddEntryInput) (*model.MemoryEntry, error) {
	if input.SessionID == "" {
		s.metrics.AddFailures.WithLabelValues(metrics.FailureInvalid).Inc()
		return nil, goerr.Wrap(ErrInvalidArgument, "session id is required")
	}
	extra, err := model.NewExtraMetadata(input.Extra)
	if err != nil {
		s.metrics.AddFailures.WithLabelValues(metrics.FailureInvalid).Inc()
		return nil, goerr.Wrap(errors.Join(ErrInvalidArgument, err), "invalid extra metadata",
			goerr.V("session_id", input.SessionID))
	}

	text := EmbeddingText(input.UserQuery, input.GeneratedQuery, input.AnalysisText, input.ResultPreview)
	vec, err := s.embed(ctx, text)
	if err != nil {
		if errors.Is(err, ErrDimensionMismatch) {
			s.metrics.AddFailures.WithLabelValues(metrics.FailureInvalid).Inc()
		} else {
			s.metrics.AddFailures.WithLabelValues(metrics.FailureProvider).Inc()
		}
		return nil, err
	}

	entry := &model.MemoryEntry{
		ID:             model.NewEntryID(),
		SessionID:      input.SessionID,
		Timestamp:      s.clock().UTC(),
		UserQuery:      input.UserQuery,
		GeneratedQuery: input.GeneratedQuery,
		AnalysisText:   input.AnalysisText,
		ResultPreview:  input.ResultPreview,
		EmbeddingText:  text,
		Embedding:      vec,
		Extra:          extra,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendLocked(ctx, entry); err != nil {
		s.metrics.AddFailures.WithLabelValues(metrics.FailurePersistence).Inc()
		return nil, err
	}

	s.metrics.EntriesAdded.Inc()
	s.metrics.Entries.Set(float64(s.log.Len()))
	logging.From(ctx).Debug("memory entry added",
		"id", entry.ID, "session_id", entry.SessionID, "entries", s.log.Len())

	return entry.WithoutEmbedding(), nil
}

func (s *Store) appendLocked(ctx context.Context, entry *model.MemoryEntry) error {
	n := s.log.Len()
	if err := s.log.Append(entry); err != nil {
		return goerr.Wrap(ErrPersistence, "failed to append to metadata log",
			goerr.V("id", entry.ID), goerr.V("cause", err.Error()))
	}

	if _, err := s.index.Add(entry.Embedding); err != nil {
		s.rollbackAppend(ctx, n)
		return goerr.Wrap(err, "failed to add vector", goerr.V("id", entry.ID))
	}

	if err := s.index.Save(s.IndexPath()); err != nil {
		s.rollbackAppend(ctx, n)
		return goerr.Wrap(ErrPersistence, "failed to save index",
			goerr.V("id", entry.ID), goerr.V("cause", err.Error()))
	}
	return nil
}

// rollbackAppend undoes a partially applied append. Both structures return to
// n entries in memory. The log file is rewritten best-effort; if that fails
// the file keeps the extra entry and the next Open rebuilds the index from it.
func (s *Store) rollbackAppend(ctx context.Context, n int) {
	s.index.Truncate(n)
	if err := s.log.Truncate(n); err != nil {
		logging.From(ctx).Error("failed to roll back metadata log",
			"error", err, "entries", n)
	}
}

// ResetSession removes every entry of sessionID and returns how many were
// removed. An empty id or an unknown session changes nothing on disk.
func (s *Store) ResetSession(ctx context.Context, sessionID string) (int, error) {
	if sessionID == "" {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prevEntries := s.log.Entries()
	prevVectors := s.index.Vectors()

	removed, err := s.log.Retain(func(e *model.MemoryEntry) bool {
		return e.SessionID != sessionID
	})
	if err != nil {
		return 0, goerr.Wrap(ErrPersistence, "failed to rewrite metadata log",
			goerr.V("session_id", sessionID), goerr.V("cause", err.Error()))
	}
	if removed == 0 {
		return 0, nil
	}

	survivors := s.log.Entries()
	vectors := make([][]float32, len(survivors))
	for i, e := range survivors {
		vectors[i] = e.Embedding
	}

	// Memory always returns to the previous pair. A failed log rewrite leaves
	// survivors on disk next to the old index, which Open repairs.
	rollback := func() {
		if err := s.index.Rebuild(prevVectors); err != nil {
			logging.From(ctx).Error("failed to restore index", "error", err)
		}
		if err := s.log.Restore(prevEntries); err != nil {
			logging.From(ctx).Error("failed to restore metadata log", "error", err)
		}
	}

	if err := s.index.Rebuild(vectors); err != nil {
		rollback()
		return 0, goerr.Wrap(ErrConsistency, "failed to rebuild index for reset",
			goerr.V("session_id", sessionID), goerr.V("cause", err.Error()))
	}
	if err := s.index.Save(s.IndexPath()); err != nil {
		rollback()
		return 0, goerr.Wrap(ErrPersistence, "failed to save index after reset",
			goerr.V("session_id", sessionID), goerr.V("cause", err.Error()))
	}

	s.metrics.SessionResets.Inc()
	s.metrics.Rebuilds.WithLabelValues(metrics.RebuildReset).Inc()
	s.metrics.Entries.Set(float64(s.log.Len()))
	logging.From(ctx).Info("session reset",
		"session_id", sessionID, "removed", removed, "entries", s.log.Len())

	return removed, nil
}

// embed calls the provider and returns a unit vector of the store dimension
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	raw, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(ErrProvider, "failed to embed text", goerr.V("cause", err.Error()))
	}

	dim := s.index.Dimension()
	if len(raw) != dim {
		return nil, goerr.Wrap(ErrDimensionMismatch, "provider returned unexpected dimension",
			goerr.V("expected", dim), goerr.V("actual", len(raw)))
	}

	vec, err := index.Normalize(raw)
	if err != nil {
		return nil, goerr.Wrap(ErrProvider, "provider returned an unusable vector", goerr.V("cause", err.Error()))
	}
	return vec, nil
}
