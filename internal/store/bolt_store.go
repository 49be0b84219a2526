package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"nostrid/internal/domain"
)

const (
	// BoltFilename is the database file a BoltStore opens under its
	// directory.
	BoltFilename = "settings.db"

	// dbTimeout bounds how long Open waits for another process to release
	// the database lock.
	dbTimeout = time.Second

	latestBoltVersion = 0x01
)

var (
	settingsBucket = []byte("settings")

	publicKeyKey           = []byte("public_key")
	encryptedPrivateKeyKey = []byte("encrypted_private_key")
	versionKey             = []byte("version")
)

// ErrBoltVersion is returned when the database was written by a newer
// layout.
var ErrBoltVersion = errors.New("settings database has an unsupported version")

// BoltStore persists the identity settings in a bbolt database.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens or creates the database under dir.
func OpenBoltStore(dir string) (*BoltStore, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	db, err := bolt.Open(filepath.Join(dir, BoltFilename), fileMode, &bolt.Options{Timeout: dbTimeout})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", BoltFilename, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(settingsBucket)
		if err != nil {
			return err
		}
		v := b.Get(versionKey)
		switch {
		case v == nil:
			return b.Put(versionKey, []byte{latestBoltVersion})
		case len(v) != 1 || v[0] > latestBoltVersion:
			return ErrBoltVersion
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// LoadSettings reads both identity fields in one transaction.
func (s *BoltStore) LoadSettings(ctx context.Context) (domain.Settings, error) {
	if err := ctx.Err(); err != nil {
		return domain.Settings{}, err
	}

	var settings domain.Settings
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(settingsBucket)
		if b == nil {
			return nil
		}
		if v := b.Get(publicKeyKey); v != nil {
			var pk domain.PublicKey
			if len(v) != len(pk) {
				return fmt.Errorf("stored public key has %d bytes", len(v))
			}
			copy(pk[:], v)
			settings.PublicKey = &pk
		}
		if v := b.Get(encryptedPrivateKeyKey); v != nil {
			epk := string(v)
			settings.EncryptedPrivateKey = &epk
		}
		return nil
	})
	if err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}

// SaveSettings writes both identity fields in one transaction. Absent
// fields are deleted.
func (s *BoltStore) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(settingsBucket)
		if err != nil {
			return err
		}
		if settings.PublicKey != nil {
			err = b.Put(publicKeyKey, settings.PublicKey.Slice())
		} else {
			err = b.Delete(publicKeyKey)
		}
		if err != nil {
			return err
		}
		if settings.EncryptedPrivateKey != nil {
			return b.Put(encryptedPrivateKeyKey, []byte(*settings.EncryptedPrivateKey))
		}
		return b.Delete(encryptedPrivateKeyKey)
	})
}

// Close releases the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Compile-time assertion that BoltStore implements domain.SettingsStore.
var _ domain.SettingsStore = (*BoltStore)(nil)
