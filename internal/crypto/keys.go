package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/awnumar/memguard"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"nostrid/internal/domain"
)

// PrivateKeySize is the length of a raw secp256k1 secret key.
const PrivateKeySize = 32

var (
	// ErrInvalidKey is returned for key material that is not a usable
	// secp256k1 secret.
	ErrInvalidKey = errors.New("invalid private key")
	// ErrEnclave is returned when the sealed key cannot be opened.
	ErrEnclave = errors.New("private key enclave unavailable")
)

// PrivateKey is a secp256k1 secret held in a memguard enclave, together
// with its public key and handling history. It is safe for concurrent use;
// the handling history only ever moves towards weak.
type PrivateKey struct {
	enclave  *memguard.Enclave
	public   domain.PublicKey
	security atomic.Uint32
}

// GeneratePrivateKey returns a fresh random key with medium security.
func GeneratePrivateKey() (*PrivateKey, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	raw := sk.Serialize()
	sk.Zero()
	return newPrivateKey(raw, domain.KeySecurityMedium)
}

// PrivateKeyFromBytes seals raw into a new key. raw is wiped.
func PrivateKeyFromBytes(raw []byte, security domain.KeySecurity) (*PrivateKey, error) {
	return newPrivateKey(raw, security)
}

// ParsePrivateKey accepts a 64 character hex key or a NIP-19 nsec string.
// Keys that arrive as text have already been outside custody, so the
// result is always weak.
func ParsePrivateKey(s string) (*PrivateKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "nsec1") {
		prefix, value, err := nip19.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		hexKey, ok := value.(string)
		if prefix != "nsec" || !ok {
			return nil, fmt.Errorf("%w: unexpected bech32 prefix %q", ErrInvalidKey, prefix)
		}
		s = hexKey
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return newPrivateKey(raw, domain.KeySecurityWeak)
}

func newPrivateKey(raw []byte, security domain.KeySecurity) (*PrivateKey, error) {
	if len(raw) != PrivateKeySize {
		memguard.WipeBytes(raw)
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKey, PrivateKeySize, len(raw))
	}
	if !security.Valid() {
		security = domain.KeySecurityNotTracked
	}
	var scalar btcec.ModNScalar
	overflow := scalar.SetByteSlice(raw)
	zero := scalar.IsZero()
	scalar.Zero()
	if overflow {
		memguard.WipeBytes(raw)
		return nil, fmt.Errorf("%w: scalar not below the curve order", ErrInvalidKey)
	}
	if zero {
		memguard.WipeBytes(raw)
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidKey)
	}
	sk, pub := btcec.PrivKeyFromBytes(raw)
	defer sk.Zero()
	var pk domain.PublicKey
	copy(pk[:], schnorr.SerializePubKey(pub))
	k := &PrivateKey{
		enclave: memguard.NewEnclave(raw),
		public:  pk,
	}
	k.security.Store(uint32(security))
	return k, nil
}

// Clone seals a copy of the key into a new enclave. The copy has its own
// handling history, so exporting one does not weaken the other.
func (k *PrivateKey) Clone() (*PrivateKey, error) {
	var clone *PrivateKey
	err := k.open(func(raw []byte) error {
		var err error
		clone, err = newPrivateKey(append([]byte(nil), raw...), k.Security())
		return err
	})
	if err != nil {
		return nil, err
	}
	return clone, nil
}

// PublicKey returns the x-only public key.
func (k *PrivateKey) PublicKey() domain.PublicKey { return k.public }

// Security returns the current handling classification.
func (k *PrivateKey) Security() domain.KeySecurity {
	return domain.KeySecurity(k.security.Load())
}

// HexString exports the key as hex and marks it weak.
func (k *PrivateKey) HexString() (string, error) {
	var out string
	err := k.open(func(raw []byte) error {
		out = hex.EncodeToString(raw)
		return nil
	})
	if err != nil {
		return "", err
	}
	k.security.Store(uint32(domain.KeySecurityWeak))
	return out, nil
}

// Bech32String exports the key as a NIP-19 nsec and marks it weak.
func (k *PrivateKey) Bech32String() (string, error) {
	var out string
	err := k.open(func(raw []byte) error {
		nsec, err := nip19.EncodePrivateKey(hex.EncodeToString(raw))
		if err != nil {
			return err
		}
		out = nsec
		return nil
	})
	if err != nil {
		return "", err
	}
	k.security.Store(uint32(domain.KeySecurityWeak))
	return out, nil
}

// Export encodes the key in the requested format and marks it weak.
func (k *PrivateKey) Export(format domain.Format) (string, error) {
	switch format {
	case domain.FormatHex:
		return k.HexString()
	case domain.FormatBech32:
		return k.Bech32String()
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
}

// signHash produces a BIP-340 signature over a 32 byte hash.
func (k *PrivateKey) signHash(hash []byte) ([]byte, error) {
	var sig []byte
	err := k.withSigner(func(sk *btcec.PrivateKey) error {
		s, err := schnorr.Sign(sk, hash)
		if err != nil {
			return err
		}
		sig = s.Serialize()
		return nil
	})
	return sig, err
}

func (k *PrivateKey) withSigner(fn func(sk *btcec.PrivateKey) error) error {
	return k.open(func(raw []byte) error {
		sk, _ := btcec.PrivKeyFromBytes(raw)
		defer sk.Zero()
		return fn(sk)
	})
}

// open exposes the raw key to fn for the duration of the call only.
func (k *PrivateKey) open(fn func(raw []byte) error) error {
	if k == nil || k.enclave == nil {
		return ErrEnclave
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEnclave, err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}
