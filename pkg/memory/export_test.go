package memory

import (
	"os"

	"github.com/m-mizutani/querymem/pkg/memory/metalog"
)

func WithLogWriteFile(fn func(path string, data []byte, perm os.FileMode) error) Option {
	return func(s *Store) {
		s.logOpts = append(s.logOpts, metalog.WithWriteFile(fn))
	}
}

func IndexLen(s *Store) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}
