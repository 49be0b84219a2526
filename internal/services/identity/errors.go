package identity

import (
	"errors"
	"fmt"

	"nostrid/internal/crypto"
)

var (
	// ErrNoPrivateKey is returned when an operation needs key material that
	// is absent.
	ErrNoPrivateKey = errors.New("no private key")
	// ErrNoPublicKey is returned when no public key is known.
	ErrNoPublicKey = errors.New("no public key")
	// ErrDecryption is returned when the password does not open the
	// encrypted private key, or the blob is corrupt.
	ErrDecryption = errors.New("could not decrypt private key")
	// ErrCrypto is returned when an encryption or signing primitive fails.
	ErrCrypto = errors.New("cryptographic operation failed")
	// ErrPersistence is returned when the settings store rejects a save.
	ErrPersistence = errors.New("saving settings failed")
	// ErrClosed is returned once the custodian has been closed.
	ErrClosed = errors.New("identity custodian closed")
)

// classifyDecrypt maps a crypto failure from a password check onto the
// custodian's error taxonomy.
func classifyDecrypt(err error) error {
	if errors.Is(err, crypto.ErrDecryption) || errors.Is(err, crypto.ErrInvalidKey) {
		return fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	return fmt.Errorf("%w: %w", ErrCrypto, err)
}
