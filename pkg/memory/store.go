// Package memory is the conversational memory of the query pipeline. A Store
// pairs a vector index with a metadata log on disk and keeps them in lockstep:
// ordinal i of the index is entry i of the log after every public operation.
package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/adapter"
	"github.com/m-mizutani/querymem/pkg/memory/index"
	"github.com/m-mizutani/querymem/pkg/memory/metalog"
	"github.com/m-mizutani/querymem/pkg/metrics"
	"github.com/m-mizutani/querymem/pkg/utils/logging"
)

const (
	DefaultIndexFile    = "memory.index"
	DefaultMetadataFile = "metadata.json"
)

// Store is the memory manager. It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	dir          string
	indexFile    string
	metadataFile string

	embedder adapter.Embedder
	clock    func() time.Time
	metrics  *metrics.Metrics

	index   *index.Index
	log     *metalog.Log
	logOpts []metalog.Option
}

type Option func(*Store)

// WithClock replaces the time source used for entry timestamps
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// WithIndexFile sets the file name of the vector index inside the store directory
func WithIndexFile(name string) Option {
	return func(s *Store) {
		s.indexFile = name
	}
}

// WithMetadataFile sets the file name of the metadata log inside the store directory
func WithMetadataFile(name string) Option {
	return func(s *Store) {
		s.metadataFile = name
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// Open loads the store in dir, creating the directory if needed. The vector
// dimension is taken from embedder. When the index file is missing, corrupt
// or out of step with the log, it is rebuilt from the log.
func Open(ctx context.Context, dir string, embedder adapter.Embedder, opts ...Option) (*Store, error) {
	if embedder == nil {
		return nil, goerr.Wrap(ErrInvalidArgument, "embedder is required")
	}
	dim := embedder.Dimension()
	if dim <= 0 {
		return nil, goerr.Wrap(ErrInvalidArgument, "embedding dimension must be positive", goerr.V("dimension", dim))
	}

	s := &Store{
		dir:          dir,
		indexFile:    DefaultIndexFile,
		metadataFile: DefaultMetadataFile,
		embedder:     embedder,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(ErrPersistence, "failed to create store directory",
			goerr.V("dir", dir), goerr.V("cause", err.Error()))
	}

	log, err := metalog.Open(s.MetadataPath(), s.logOpts...)
	if err != nil {
		if errors.Is(err, metalog.ErrCorruptLog) {
			return nil, goerr.Wrap(err, "metadata log cannot be used")
		}
		return nil, goerr.Wrap(ErrPersistence, "failed to open metadata log", goerr.V("cause", err.Error()))
	}
	s.log = log

	if err := s.loadIndex(ctx, dim); err != nil {
		return nil, err
	}
	for i, e := range s.log.Entries() {
		if len(e.Embedding) != dim {
			return nil, goerr.Wrap(ErrConsistency, "stored embedding has wrong dimension",
				goerr.V("ordinal", i), goerr.V("id", e.ID),
				goerr.V("expected", dim), goerr.V("actual", len(e.Embedding)))
		}
	}

	s.metrics.Entries.Set(float64(s.log.Len()))
	logging.From(ctx).Debug("memory store opened",
		"dir", dir, "entries", s.log.Len(), "dimension", dim)
	return s, nil
}

// IndexPath returns the full path of the vector index file
func (s *Store) IndexPath() string {
	return filepath.Join(s.dir, s.indexFile)
}

// MetadataPath returns the full path of the metadata log file
func (s *Store) MetadataPath() string {
	return filepath.Join(s.dir, s.metadataFile)
}

// Dimension returns the vector dimension the store is pinned to
func (s *Store) Dimension() int {
	return s.index.Dimension()
}

func (s *Store) loadIndex(ctx context.Context, dim int) error {
	idx, err := index.Load(s.IndexPath(), dim)
	var reason string
	switch {
	case err == nil:
		if idx.Len() == s.log.Len() {
			s.index = idx
			return nil
		}
		reason = metrics.RebuildCountMismatch

	case errors.Is(err, index.ErrDimensionMismatch):
		return goerr.Wrap(err, "persisted index does not match the embedder dimension",
			goerr.V("path", s.IndexPath()))

	case errors.Is(err, os.ErrNotExist):
		if s.log.Len() == 0 {
			s.index = index.New(dim)
			return nil
		}
		reason = metrics.RebuildMissingIndex

	case errors.Is(err, index.ErrCorruptIndex):
		reason = metrics.RebuildCorruptIndex

	default:
		return goerr.Wrap(ErrPersistence, "failed to read index file",
			goerr.V("path", s.IndexPath()), goerr.V("cause", err.Error()))
	}

	indexed := 0
	if idx != nil {
		indexed = idx.Len()
	}
	logging.From(ctx).Warn("rebuilding vector index from metadata log",
		"error", goerr.Wrap(ErrConsistency, "index is not usable",
			goerr.V("reason", reason), goerr.V("indexed", indexed), goerr.V("logged", s.log.Len())))

	rebuilt, err := s.rebuildFromLog(dim)
	if err != nil {
		return err
	}
	if err := rebuilt.Save(s.IndexPath()); err != nil {
		return goerr.Wrap(ErrPersistence, "failed to save rebuilt index", goerr.V("cause", err.Error()))
	}

	s.index = rebuilt
	s.metrics.Rebuilds.WithLabelValues(reason).Inc()
	return nil
}

// rebuildFromLog recomputes the index from the embeddings kept in the log.
// A record that cannot reproduce its vector is fatal.
func (s *Store) rebuildFromLog(dim int) (*index.Index, error) {
	vectors := make([][]float32, s.log.Len())
	for i, e := range s.log.Entries() {
		if len(e.Embedding) != dim {
			return nil, goerr.Wrap(ErrConsistency, "stored embedding has wrong dimension",
				goerr.V("ordinal", i), goerr.V("id", e.ID),
				goerr.V("expected", dim), goerr.V("actual", len(e.Embedding)))
		}
		vec, err := index.Normalize(e.Embedding)
		if err != nil {
			return nil, goerr.Wrap(ErrConsistency, "stored embedding cannot be normalized",
				goerr.V("ordinal", i), goerr.V("id", e.ID))
		}
		vectors[i] = vec
	}

	idx := index.New(dim)
	if err := idx.Rebuild(vectors); err != nil {
		return nil, goerr.Wrap(ErrConsistency, "failed to rebuild index", goerr.V("cause", err.Error()))
	}
	return idx, nil
}
