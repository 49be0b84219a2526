// Package store provides persistence for nostrid's identity settings.
//
// It contains concrete implementations of domain.SettingsStore. Only the
// public key and the encrypted private key are ever written; the
// decrypted key never reaches a store. Stored files live under the user's
// configured home directory.
//
// The package includes:
//   - FileStore, a JSON file written atomically via temp file and rename
//   - BoltStore, a bbolt database with one settings bucket
package store
