// Package identity holds custody of the single active Nostr identity.
//
// A Custodian owns the public key, the password-encrypted private key and,
// once unlocked, the decrypted private key. It enforces which of the three
// is authoritative, re-encrypts keys protected by weak key derivation, and
// signs events. Background persistence runs on one worker goroutine so
// migration writes and explicit saves happen in submission order.
package identity
