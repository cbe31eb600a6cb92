// Package backup copies memory store files to and from object storage.
//
// A backup is a directory <prefix>/<id>/ holding the index file, the metadata
// file and a manifest. The manifest is written last, so a backup without one
// is incomplete and ignored.
package backup

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/querymem/pkg/adapter"
	"github.com/m-mizutani/querymem/pkg/memory"
	"github.com/m-mizutani/querymem/pkg/utils/atomicfile"
	"github.com/m-mizutani/querymem/pkg/utils/logging"
)

const (
	manifestFile = "manifest.json"
	idLayout     = "20060102T150405.000Z"
)

var (
	ErrBackupNotFound   = goerr.New("backup not found")
	ErrIncompleteBackup = goerr.New("backup is incomplete")
)

// Manifest describes one backup
type Manifest struct {
	ID           string           `json:"id"`
	CreatedAt    time.Time        `json:"created_at"`
	IndexFile    string           `json:"index_file"`
	MetadataFile string           `json:"metadata_file"`
	Files        map[string]int64 `json:"files"`
}

// UseCase provides backup related operations
type UseCase struct {
	storage   adapter.Storage
	prefix    string
	clock     func() time.Time
	writeFile func(path string, data []byte, perm os.FileMode) error
}

// Option is a functional option for UseCase
type Option func(*UseCase)

func WithClock(clock func() time.Time) Option {
	return func(uc *UseCase) {
		uc.clock = clock
	}
}

// New creates a new backup UseCase storing objects under prefix
func New(storage adapter.Storage, prefix string, opts ...Option) *UseCase {
	uc := &UseCase{
		storage:   storage,
		prefix:    strings.Trim(prefix, "/"),
		clock:     time.Now,
		writeFile: atomicfile.WriteFile,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func (uc *UseCase) key(id, name string) string {
	return path.Join(uc.prefix, id, name)
}

// Backup uploads a consistent snapshot of store and returns its manifest
func (uc *UseCase) Backup(ctx context.Context, store *memory.Store) (*Manifest, error) {
	now := uc.clock().UTC()
	manifest := &Manifest{
		ID:        now.Format(idLayout),
		CreatedAt: now,
		Files:     map[string]int64{},
	}

	err := store.Snapshot(ctx, func(name string, data []byte) error {
		if err := uc.put(ctx, uc.key(manifest.ID, name), data); err != nil {
			return err
		}
		// Snapshot hands over the index first
		if manifest.IndexFile == "" {
			manifest.IndexFile = name
		} else {
			manifest.MetadataFile = name
		}
		manifest.Files[name] = int64(len(data))
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to upload snapshot", goerr.V("id", manifest.ID))
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal manifest")
	}
	if err := uc.put(ctx, uc.key(manifest.ID, manifestFile), data); err != nil {
		return nil, err
	}

	logging.From(ctx).Info("backup created", "id", manifest.ID, "files", manifest.Files)
	return manifest, nil
}

// List returns the complete backups, newest first
func (uc *UseCase) List(ctx context.Context) ([]*Manifest, error) {
	prefix := uc.prefix
	if prefix != "" {
		prefix += "/"
	}
	keys, err := uc.storage.List(ctx, prefix)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list backups", goerr.V("prefix", uc.prefix))
	}

	var manifests []*Manifest
	for _, key := range keys {
		if path.Base(key) != manifestFile {
			continue
		}
		m, err := uc.manifest(ctx, key)
		if err != nil {
			logging.From(ctx).Warn("skip unreadable backup manifest", "key", key, "error", err)
			continue
		}
		manifests = append(manifests, m)
	}

	slices.SortFunc(manifests, func(a, b *Manifest) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return manifests, nil
}

// Target is where a backup is restored. Empty file names keep the names
// recorded in the backup.
type Target struct {
	Dir          string
	IndexFile    string
	MetadataFile string
}

// Restore downloads backup id into the target. Every file is fetched and
// checked before anything is written. The store must not be open while
// restoring; the next open validates the pair and rebuilds the index if needed.
func (uc *UseCase) Restore(ctx context.Context, id string, target Target) (*Manifest, error) {
	manifest, err := uc.manifest(ctx, uc.key(id, manifestFile))
	if err != nil {
		return nil, goerr.Wrap(ErrBackupNotFound, "failed to read manifest",
			goerr.V("id", id), goerr.V("cause", err.Error()))
	}

	if manifest.IndexFile == "" || manifest.MetadataFile == "" {
		return nil, goerr.Wrap(ErrIncompleteBackup, "manifest does not name both store files", goerr.V("id", id))
	}
	names := []string{manifest.MetadataFile, manifest.IndexFile}

	contents := make(map[string][]byte, len(names))
	for _, name := range names {
		if name != filepath.Base(name) {
			return nil, goerr.Wrap(ErrIncompleteBackup, "invalid file name in manifest",
				goerr.V("id", id), goerr.V("name", name))
		}

		data, err := uc.get(ctx, uc.key(id, name))
		if err != nil {
			return nil, goerr.Wrap(ErrIncompleteBackup, "failed to download backup file",
				goerr.V("id", id), goerr.V("name", name), goerr.V("cause", err.Error()))
		}
		if size, ok := manifest.Files[name]; !ok || int64(len(data)) != size {
			return nil, goerr.Wrap(ErrIncompleteBackup, "backup file size does not match manifest",
				goerr.V("id", id), goerr.V("name", name),
				goerr.V("expected", manifest.Files[name]), goerr.V("actual", len(data)))
		}
		contents[name] = data
	}

	if err := os.MkdirAll(target.Dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create store directory", goerr.V("dir", target.Dir))
	}

	dstNames := []string{
		cmp.Or(target.MetadataFile, manifest.MetadataFile),
		cmp.Or(target.IndexFile, manifest.IndexFile),
	}

	// The old index goes first. If the restore stops after the metadata file,
	// the next open finds no index and rebuilds it from the restored log
	// instead of pairing the new log with stale vectors.
	indexPath := filepath.Join(target.Dir, dstNames[1])
	if err := os.Remove(indexPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, goerr.Wrap(err, "failed to remove existing index", goerr.V("path", indexPath))
	}

	for i, name := range names {
		dst := filepath.Join(target.Dir, dstNames[i])
		if err := uc.writeFile(dst, contents[name], 0o600); err != nil {
			return nil, goerr.Wrap(err, "failed to write restored file", goerr.V("path", dst))
		}
	}

	logging.From(ctx).Info("backup restored", "id", id, "dir", target.Dir)
	return manifest, nil
}

func (uc *UseCase) manifest(ctx context.Context, key string) (*Manifest, error) {
	data, err := uc.get(ctx, key)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal manifest", goerr.V("key", key))
	}
	return &m, nil
}

func (uc *UseCase) put(ctx context.Context, key string, data []byte) error {
	writer, err := uc.storage.Put(ctx, key)
	if err != nil {
		return goerr.Wrap(err, "failed to create storage writer", goerr.V("key", key))
	}

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return goerr.Wrap(err, "failed to write to storage", goerr.V("key", key))
	}

	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to close storage writer", goerr.V("key", key))
	}
	return nil
}

func (uc *UseCase) get(ctx context.Context, key string) ([]byte, error) {
	reader, err := uc.storage.Get(ctx, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get object from storage", goerr.V("key", key))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object", goerr.V("key", key))
	}
	return data, nil
}
