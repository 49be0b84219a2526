// Package crypto exposes the key material primitives used by nostrid.
//
// Contents
//
//   - secp256k1 private keys held in a memguard enclave (PrivateKey,
//     GeneratePrivateKey, ParsePrivateKey)
//   - Password-encrypted private keys, legacy version 1 (PBKDF2) and
//     current version 2 (scrypt, NIP-49 layout) (EncryptedPrivateKey)
//   - BIP-340 event signing with optional NIP-13 proof of work (SignEvent,
//     MinePoW, LeadingZeroBits)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// A PrivateKey never hands out its raw bytes. Callers get a signature, a
// public key, an encrypted blob, or a one-shot text export, which marks the
// key as weak.
package crypto
