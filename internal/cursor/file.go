package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// flushInterval is the number of Advance calls between automatic flushes.
const flushInterval = 100

// FileStore is a single-file, serialized-map cursor backend. Read errors at
// construction are fatal only when the file exists and cannot be read;
// otherwise the store starts empty.
type FileStore struct {
	log  *logrus.Logger
	path string

	mu      sync.Mutex
	indices map[string]int64
	counter int
	dirty   bool
}

// NewFileStore loads path if it exists, or starts with an empty cursor set
// if it doesn't.
func NewFileStore(log *logrus.Logger, path string) (*FileStore, error) {
	fs := &FileStore{
		log:     log,
		path:    path,
		indices: make(map[string]int64),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}

		return nil, fmt.Errorf("cursor: read %s: %w", path, err)
	}

	if len(data) == 0 {
		return fs, nil
	}

	if err := json.Unmarshal(data, &fs.indices); err != nil {
		return nil, fmt.Errorf("cursor: parse %s: %w", path, err)
	}

	return fs, nil
}

func (fs *FileStore) Load(_ context.Context, url string) (int64, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	idx, ok := fs.indices[url]

	return idx, ok, nil
}

func (fs *FileStore) Advance(ctx context.Context, url string, index int64) error {
	fs.mu.Lock()
	fs.indices[url] = index
	fs.counter++
	fs.dirty = true
	shouldFlush := fs.counter%flushInterval == 0
	fs.mu.Unlock()

	if shouldFlush {
		if err := fs.Flush(ctx); err != nil {
			if fs.log != nil {
				fs.log.WithError(err).Warn("cursor flush failed, will retry on next save opportunity")
			}

			return nil
		}
	}

	return nil
}

func (fs *FileStore) Flush(_ context.Context) error {
	fs.mu.Lock()
	if !fs.dirty {
		fs.mu.Unlock()
		return nil
	}

	snapshot := make(map[string]int64, len(fs.indices))
	for k, v := range fs.indices {
		snapshot[k] = v
	}
	fs.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("cursor: marshal: %w", err)
	}

	dir := filepath.Dir(filepath.Clean(fs.path))

	tmp, err := os.CreateTemp(dir, ".cursor-*.json.tmp")
	if err != nil {
		return fmt.Errorf("cursor: create temp: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()

	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)

		if writeErr != nil {
			return fmt.Errorf("cursor: write: %w", writeErr)
		}

		return fmt.Errorf("cursor: close: %w", closeErr)
	}

	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cursor: rename: %w", err)
	}

	fs.mu.Lock()
	fs.dirty = false
	fs.mu.Unlock()

	return nil
}

func (fs *FileStore) List(_ context.Context) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	urls := make([]string, 0, len(fs.indices))
	for url := range fs.indices {
		urls = append(urls, url)
	}

	return urls, nil
}
