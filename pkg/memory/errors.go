package memory

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/memory/index"
)

var (
	// ErrProvider means the embedding backend failed or returned an unusable vector
	ErrProvider = goerr.New("embedding provider error")

	// ErrPersistence means a store file could not be read or written
	ErrPersistence = goerr.New("persistence error")

	// ErrConsistency means the vector index and metadata log disagree. It is
	// repaired on open unless the log itself cannot reproduce the index.
	ErrConsistency = goerr.New("index and metadata log are inconsistent")

	// ErrDimensionMismatch means a vector does not have the store dimension
	ErrDimensionMismatch = index.ErrDimensionMismatch

	ErrInvalidArgument = goerr.New("invalid argument")
)
