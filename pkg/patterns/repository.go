package patterns

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rote-dev/rote-go/pkg/errors"
)

// Repository persists the full pattern collection. Implementations load
// everything at startup and rewrite everything on save; the store keeps
// the working set in memory.
type Repository interface {
	Load(ctx context.Context) ([]*AutomationPattern, error)
	Save(ctx context.Context, patterns []*AutomationPattern) error
	Close() error
}

// documentVersion is written into every saved file so future readers can
// detect older layouts.
const documentVersion = "1"

type repositoryDocument struct {
	Version     string               `json:"version"`
	LastUpdated time.Time            `json:"lastUpdated"`
	Patterns    []*AutomationPattern `json:"patterns"`
}

// FileRepository stores the collection as a single JSON document.
// It uses a mutex for in-process concurrency and file locking for
// cross-process safety.
type FileRepository struct {
	Path string
	mu   sync.Mutex
}

// NewFileRepository creates a repository backed by the given path. The
// file is created on first save.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{Path: path}
}

// Load reads every stored pattern. A missing file is an empty collection,
// not an error.
func (f *FileRepository) Load(ctx context.Context) ([]*AutomationPattern, error) {
	if err := errors.CheckContext(ctx, "load patterns"); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	lockFile, err := f.acquireFileLock(syscall.LOCK_SH)
	if err != nil {
		return nil, errors.Wrap(err, errors.PersistenceFailed, "failed to lock pattern file")
	}
	defer f.releaseFileLock(lockFile)

	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		return []*AutomationPattern{}, nil
	}
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.PersistenceFailed, "failed to read pattern file"),
			errors.Fields{"path": f.Path})
	}

	var doc repositoryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.PersistenceFailed, "pattern file is not valid JSON"),
			errors.Fields{"path": f.Path})
	}

	return doc.Patterns, nil
}

// Save atomically rewrites the whole collection.
func (f *FileRepository) Save(ctx context.Context, patterns []*AutomationPattern) error {
	if err := errors.CheckContext(ctx, "save patterns"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	lockFile, err := f.acquireFileLock(syscall.LOCK_EX)
	if err != nil {
		return errors.Wrap(err, errors.PersistenceFailed, "failed to lock pattern file")
	}
	defer f.releaseFileLock(lockFile)

	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return errors.Wrap(err, errors.PersistenceFailed, "failed to create pattern directory")
	}

	doc := repositoryDocument{
		Version:     documentVersion,
		LastUpdated: time.Now().UTC(),
		Patterns:    patterns,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.PersistenceFailed, "failed to encode patterns")
	}

	tmpPath := f.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.PersistenceFailed, "failed to write pattern file"),
			errors.Fields{"path": tmpPath})
	}

	if err := os.Rename(tmpPath, f.Path); err != nil {
		os.Remove(tmpPath)
		return errors.WithFields(
			errors.Wrap(err, errors.PersistenceFailed, "failed to replace pattern file"),
			errors.Fields{"path": f.Path})
	}

	return nil
}

// Close is a no-op; the file is only held open during load and save.
func (f *FileRepository) Close() error { return nil }

// acquireFileLock acquires a file lock and returns the lock file handle.
// The caller is responsible for calling releaseFileLock when done.
func (f *FileRepository) acquireFileLock(lockType int) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return nil, err
	}

	lockPath := f.Path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	if err := syscall.Flock(int(lockFile.Fd()), lockType); err != nil {
		lockFile.Close()
		return nil, err
	}

	return lockFile, nil
}

// releaseFileLock releases a file lock acquired by acquireFileLock.
func (f *FileRepository) releaseFileLock(lockFile *os.File) {
	if lockFile != nil {
		_ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
	}
}
