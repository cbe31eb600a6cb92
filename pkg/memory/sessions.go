package memory

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/m-mizutani/querymem/pkg/model"
)

// ListSessions summarizes every session, most recently active first. Sessions
// with the same latest timestamp are ordered by id.
func (s *Store) ListSessions(ctx context.Context) []*model.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := map[string]*model.SessionSummary{}
	for i := range s.log.Len() {
		e := s.log.At(i)
		sum, ok := sessions[e.SessionID]
		if !ok {
			sum = &model.SessionSummary{SessionID: e.SessionID}
			sessions[e.SessionID] = sum
		}
		sum.Count++
		if e.Timestamp.After(sum.LatestTimestamp) {
			sum.LatestTimestamp = e.Timestamp
		}
	}

	out := slices.Collect(maps.Values(sessions))
	slices.SortFunc(out, func(a, b *model.SessionSummary) int {
		if c := b.LatestTimestamp.Compare(a.LatestTimestamp); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

// SessionHistory returns the entries of sessionID, oldest first. Entries with
// equal timestamps keep insertion order. Embeddings are not included.
func (s *Store) SessionHistory(ctx context.Context, sessionID string) []*model.MemoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.MemoryEntry
	for i := range s.log.Len() {
		if e := s.log.At(i); e.SessionID == sessionID {
			out = append(out, e.WithoutEmbedding())
		}
	}

	slices.SortStableFunc(out, func(a, b *model.MemoryEntry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out
}

// Stats describes the size of a store
type Stats struct {
	Entries   int
	Sessions  int
	Dimension int
}

func (s *Store) Stats(ctx context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := map[string]struct{}{}
	for i := range s.log.Len() {
		sessions[s.log.At(i).SessionID] = struct{}{}
	}
	return Stats{
		Entries:   s.log.Len(),
		Sessions:  len(sessions),
		Dimension: s.index.Dimension(),
	}
}
