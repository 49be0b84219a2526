package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// PublicKeySize is the length of an x-only secp256k1 public key.
const PublicKeySize = 32

// PublicKey is a BIP-340 x-only secp256k1 public key.
type PublicKey [PublicKeySize]byte

// Slice returns the key as a []byte.
func (p PublicKey) Slice() []byte { return p[:] }

// Hex returns the lowercase hex form used on the wire.
func (p PublicKey) Hex() string { return hex.EncodeToString(p[:]) }

// String returns the hex form of the key.
func (p PublicKey) String() string { return p.Hex() }

// MarshalJSON encodes the key as a hex string.
func (p PublicKey) MarshalJSON() ([]byte, error) { return json.Marshal(p.Hex()) }

// UnmarshalJSON decodes a hex string.
func (p *PublicKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	pk, err := PublicKeyFromHex(s)
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// PublicKeyFromHex parses a 64 character hex public key.
func PublicKeyFromHex(s string) (PublicKey, error) {
	var pk PublicKey
	b, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("public key: %w", err)
	}
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("public key: want %d bytes, got %d", PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// KeySecurity classifies how a private key has been handled.
type KeySecurity uint8

const (
	// KeySecurityWeak means the key has existed in plaintext outside the
	// custodian (imported from text, exported) or was protected by a weak
	// key derivation.
	KeySecurityWeak KeySecurity = 0x00
	// KeySecurityMedium means the key is not known to have left custody.
	KeySecurityMedium KeySecurity = 0x01
	// KeySecurityNotTracked means the handling history is unknown.
	KeySecurityNotTracked KeySecurity = 0x02
)

// String returns a human-readable label.
func (s KeySecurity) String() string {
	switch s {
	case KeySecurityWeak:
		return "weak"
	case KeySecurityMedium:
		return "medium"
	case KeySecurityNotTracked:
		return "not tracked"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the defined levels.
func (s KeySecurity) Valid() bool { return s <= KeySecurityNotTracked }
