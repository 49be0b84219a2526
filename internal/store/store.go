package store

import (
	"fmt"
	"os"

	"nostrid/internal/domain"
)

// Kind names a settings backend.
type Kind string

const (
	// KindFile keeps settings in a JSON file.
	KindFile Kind = "file"
	// KindBolt keeps settings in a bbolt database.
	KindBolt Kind = "bolt"
)

// Store is a SettingsStore that holds resources until closed.
type Store interface {
	domain.SettingsStore
	Close() error
}

// Open returns the backend named by kind, rooted at dir.
func Open(kind Kind, dir string) (Store, error) {
	switch kind {
	case KindFile, "":
		return NewFileStore(dir), nil
	case KindBolt:
		return OpenBoltStore(dir)
	default:
		return nil, fmt.Errorf("unknown settings store %q", kind)
	}
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, dirMode)
}
