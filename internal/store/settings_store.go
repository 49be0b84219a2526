package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"nostrid/internal/domain"
)

// SettingsFilename is the JSON file a FileStore keeps under its directory.
const SettingsFilename = "settings.json"

// FileStore persists the identity settings as a JSON file.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a FileStore rooted at dir. Nothing is touched on
// disk until the first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, SettingsFilename)
}

// LoadSettings reads the settings file. A missing file yields zero
// Settings.
func (s *FileStore) LoadSettings(ctx context.Context) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var settings domain.Settings
	if err := readJSON(s.Path(), &settings); err != nil {
		return domain.Settings{}, fmt.Errorf("read %s: %w", SettingsFilename, err)
	}
	return settings, nil
}

// SaveSettings replaces the settings file.
func (s *FileStore) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSON(s.Path(), settings); err != nil {
		return fmt.Errorf("write %s: %w", SettingsFilename, err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

// Compile-time assertion that FileStore implements domain.SettingsStore.
var _ domain.SettingsStore = (*FileStore)(nil)
