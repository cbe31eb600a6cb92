package memory

import (
	"bytes"
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// Snapshot encodes both store files from the current in-memory state and
// passes them to fn, index first. Writers are blocked until fn returns, so the
// pair is always consistent.
func (s *Store) Snapshot(ctx context.Context, fn func(name string, data []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var idx bytes.Buffer
	if _, err := s.index.WriteTo(&idx); err != nil {
		return goerr.Wrap(ErrPersistence, "failed to encode index", goerr.V("cause", err.Error()))
	}
	meta, err := s.log.Encode()
	if err != nil {
		return goerr.Wrap(ErrPersistence, "failed to encode metadata log", goerr.V("cause", err.Error()))
	}

	if err := fn(s.indexFile, idx.Bytes()); err != nil {
		return goerr.Wrap(err, "snapshot handler failed", goerr.V("file", s.indexFile))
	}
	if err := fn(s.metadataFile, meta); err != nil {
		return goerr.Wrap(err, "snapshot handler failed", goerr.V("file", s.metadataFile))
	}
	return nil
}
