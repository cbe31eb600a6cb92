// Package metalog keeps the ordered list of memory entries on disk. Entry i
// of the log corresponds to ordinal i of the vector index, and the log is
// the source of truth when the two disagree.
package metalog

import (
	"bytes"
	"errors"
	"os"
	"slices"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/model"
	"github.com/m-mizutani/querymem/pkg/utils/atomicfile"
)

var (
	ErrCorruptLog = goerr.New("corrupt metadata log")
)

// Log is the in-memory copy of the metadata file. Every mutation rewrites
// the whole file before returning. It is not safe for concurrent use.
type Log struct {
	path      string
	entries   []*model.MemoryEntry
	writeFile func(path string, data []byte, perm os.FileMode) error
}

type Option func(*Log)

// WithWriteFile replaces the function that persists the log file
func WithWriteFile(fn func(path string, data []byte, perm os.FileMode) error) Option {
	return func(l *Log) {
		l.writeFile = fn
	}
}

// Open reads the log at path. A missing file yields an empty log.
func Open(path string, opts ...Option) (*Log, error) {
	l := &Log{path: path, writeFile: atomicfile.WriteFile}
	for _, opt := range opts {
		opt(l)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, goerr.Wrap(err, "failed to read metadata log", goerr.V("path", path))
	}

	entries, err := decode(data)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to decode metadata log", goerr.V("path", path))
	}
	l.entries = entries
	return l, nil
}

// Path returns the file backing the log
func (l *Log) Path() string {
	return l.path
}

// Len returns the number of entries
func (l *Log) Len() int {
	return len(l.entries)
}

// At returns the entry at ordinal i
func (l *Log) At(i int) *model.MemoryEntry {
	return l.entries[i]
}

// Entries returns the entries in ordinal order. The slice is a copy; the
// entries themselves are shared and must not be modified.
func (l *Log) Entries() []*model.MemoryEntry {
	return slices.Clone(l.entries)
}

// Append adds entry at the end and persists the log. On failure the log is
// left as it was.
func (l *Log) Append(entry *model.MemoryEntry) error {
	n := len(l.entries)
	l.entries = append(l.entries, entry)
	if err := l.save(); err != nil {
		l.entries[n] = nil
		l.entries = l.entries[:n]
		return err
	}
	return nil
}

// Truncate drops entries at ordinal n or later and persists the log. The
// in-memory content is truncated even when the write fails, so the file may
// then be longer than the log.
func (l *Log) Truncate(n int) error {
	if n < 0 || n >= len(l.entries) {
		return nil
	}
	l.entries = slices.Clone(l.entries[:n])
	return l.save()
}

// Retain keeps the entries for which keep returns true, in their original
// order. If nothing is removed the file is not touched.
func (l *Log) Retain(keep func(*model.MemoryEntry) bool) (int, error) {
	survivors := make([]*model.MemoryEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if keep(e) {
			survivors = append(survivors, e)
		}
	}

	removed := len(l.entries) - len(survivors)
	if removed == 0 {
		return 0, nil
	}

	prev := l.entries
	l.entries = survivors
	if err := l.save(); err != nil {
		l.entries = prev
		return 0, err
	}
	return removed, nil
}

// Restore replaces the content with entries and persists it. Like Truncate,
// the in-memory content is replaced even when the write fails.
func (l *Log) Restore(entries []*model.MemoryEntry) error {
	l.entries = slices.Clone(entries)
	return l.save()
}

// Encode returns the file representation of the current content
func (l *Log) Encode() ([]byte, error) {
	records := make([]record, len(l.entries))
	for i, e := range l.entries {
		records[i] = toRecord(e)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode metadata log")
	}
	return append(data, '\n'), nil
}

func (l *Log) save() error {
	data, err := l.Encode()
	if err != nil {
		return err
	}
	if err := l.writeFile(l.path, data, 0o600); err != nil {
		return goerr.Wrap(err, "failed to write metadata log", goerr.V("path", l.path))
	}
	return nil
}

func decode(data []byte) ([]*model.MemoryEntry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, goerr.Wrap(ErrCorruptLog, "invalid JSON", goerr.V("cause", err.Error()))
	}

	entries := make([]*model.MemoryEntry, len(records))
	for i, r := range records {
		e, err := r.toEntry()
		if err != nil {
			return nil, goerr.Wrap(ErrCorruptLog, "invalid timestamp",
				goerr.V("ordinal", i), goerr.V("id", r.ID), goerr.V("cause", err.Error()))
		}
		entries[i] = e
	}
	return entries, nil
}
