// ABOUTME: File-backed JSON key-value store mirroring small state documents
// ABOUTME: Writes are atomic via temp-file rename; external edits can be watched

package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("key not found")

// Well-known keys.
const (
	KeySettings        = "settings"
	KeySettingsEnabled = "settings_enabled"
	KeyLastSync        = "settings_last_sync"
)

// Store is a small JSON document store backed by a single file. It mirrors
// state that must survive independently of the SQLite database and remain
// hand-inspectable.
type Store struct {
	path   string
	logger *slog.Logger

	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// Open loads (or creates) the store file at path.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		logger: slog.Default().With("component", "kvstore"),
		data:   make(map[string]json.RawMessage),
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating kvstore directory: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading kvstore file: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}

	data := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing kvstore file: %w", err)
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// flush writes the full document atomically: encode, write a temp file
// alongside, then rename over the target. The caller must hold mu so a
// slower flush cannot rename over a newer one.
func (s *Store) flush() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding kvstore: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("writing kvstore temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing kvstore file: %w", err)
	}
	return nil
}

// Get decodes the value stored under key into v.
func (s *Store) Get(key string, v any) error {
	s.mu.RLock()
	raw, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding value for %s: %w", key, err)
	}
	return nil
}

// Set stores v under key and persists the file.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding value for %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = raw
	return s.flush()
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	if !ok {
		return nil
	}
	delete(s.data, key)
	return s.flush()
}

// Keys returns the stored keys in unspecified order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Watch reloads the store whenever the backing file changes on disk and
// invokes onChange after each reload. It blocks until the context is
// cancelled. The parent directory is watched so the rename-based writes of
// other processes are seen too.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watching kvstore directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if ev.Name != s.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.load(); err != nil {
				s.logger.Warn("reloading kvstore failed", "error", err)
				continue
			}
			if onChange != nil {
				onChange()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("kvstore watcher error", "error", err)
		}
	}
}
