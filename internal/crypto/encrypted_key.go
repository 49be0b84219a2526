package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
	"golang.org/x/text/unicode/norm"

	"nostrid/internal/domain"
)

const (
	// CurrentVersion is the format written by Encrypt.
	CurrentVersion = 2
	// MinVersion is the lowest version whose key derivation is considered
	// strong. Anything below it must be re-encrypted once unlocked.
	MinVersion = 2

	// DefaultLogN is the scrypt cost (2^18 rounds) for new blobs.
	DefaultLogN uint8 = 18
	// MaxLogN bounds scrypt memory to 4 GiB.
	MaxLogN uint8 = 22

	ncryptsecHRP = "ncryptsec"

	saltSize  = 16
	nonceSize = chacha20poly1305.NonceSizeX
	sealSize  = PrivateKeySize + chacha20poly1305.Overhead

	// version(1) log_n(1) salt nonce ksb(1) sealed
	v2Size = 1 + 1 + saltSize + nonceSize + 1 + sealSize
	// version(1) salt nonce sealed
	v1Size = 1 + saltSize + nonceSize + sealSize

	v1Iterations = 4096
)

var (
	// ErrDecryption is returned for a wrong password or a corrupt blob.
	ErrDecryption = errors.New("unable to decrypt private key")
	// ErrMalformed is returned when a blob cannot be parsed.
	ErrMalformed = errors.New("malformed encrypted private key")
	// ErrUnsupportedVersion is returned for unknown blob versions.
	ErrUnsupportedVersion = errors.New("unsupported encrypted private key version")
)

// EncryptedPrivateKey is a password-protected private key in text form.
//
// Version 2 is bech32 "ncryptsec" over
// version | log_n | salt | nonce | key security | ciphertext, sealed with
// XChaCha20-Poly1305 under scrypt(NFKC(password), salt, 2^log_n, 8, 1).
// Version 1 is base64 over version | salt | nonce | ciphertext with a
// 4096 round PBKDF2-SHA256 key and is only read, never written.
type EncryptedPrivateKey string

// String returns the text form.
func (e EncryptedPrivateKey) String() string { return string(e) }

// Version reports the format version without needing the password.
func (e EncryptedPrivateKey) Version() (int, error) {
	b, err := e.payload()
	if err != nil {
		return 0, err
	}
	return int(b[0]), nil
}

// LogN reports the scrypt cost of a version 2 blob and 0 for version 1.
func (e EncryptedPrivateKey) LogN() (uint8, error) {
	b, err := e.payload()
	if err != nil {
		return 0, err
	}
	if b[0] == 1 {
		return 0, nil
	}
	return b[1], nil
}

// Encrypt seals the key at the given scrypt cost. The blob records the
// key's current security classification.
func (k *PrivateKey) Encrypt(password string, logN uint8) (EncryptedPrivateKey, error) {
	if logN == 0 || logN > MaxLogN {
		return "", fmt.Errorf("scrypt log_n %d out of range 1..%d", logN, MaxLogN)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	key, err := scryptKey(password, salt, logN)
	if err != nil {
		return "", err
	}
	defer memguard.WipeBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}

	ksb := byte(k.Security())
	var sealed []byte
	if err := k.open(func(raw []byte) error {
		sealed = aead.Seal(nil, nonce, raw, []byte{ksb})
		return nil
	}); err != nil {
		return "", err
	}

	out := make([]byte, 0, v2Size)
	out = append(out, CurrentVersion, logN)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ksb)
	out = append(out, sealed...)

	data, err := bech32.ConvertBits(out, 8, 5, true)
	if err != nil {
		return "", err
	}
	s, err := bech32.Encode(ncryptsecHRP, data)
	if err != nil {
		return "", err
	}
	return EncryptedPrivateKey(s), nil
}

// EncryptLegacy seals the key in the weak version 1 format. It exists so
// migration paths can be exercised against real legacy blobs.
func (k *PrivateKey) EncryptLegacy(password string) (EncryptedPrivateKey, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(password), salt, v1Iterations, chacha20poly1305.KeySize, sha256.New)
	defer memguard.WipeBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", err
	}

	var sealed []byte
	if err := k.open(func(raw []byte) error {
		sealed = aead.Seal(nil, nonce, raw, nil)
		return nil
	}); err != nil {
		return "", err
	}

	out := make([]byte, 0, v1Size)
	out = append(out, 1)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return EncryptedPrivateKey(base64.StdEncoding.EncodeToString(out)), nil
}

// Decrypt opens the blob with password. A wrong password and a corrupt
// blob both return ErrDecryption.
func (e EncryptedPrivateKey) Decrypt(password string) (*PrivateKey, error) {
	b, err := e.payload()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	switch b[0] {
	case 1:
		return decryptV1(b, password)
	case 2:
		return decryptV2(b, password)
	default:
		return nil, fmt.Errorf("%w: %w", ErrDecryption, ErrUnsupportedVersion)
	}
}

func decryptV2(b []byte, password string) (*PrivateKey, error) {
	if len(b) != v2Size {
		return nil, fmt.Errorf("%w: %w: length %d", ErrDecryption, ErrMalformed, len(b))
	}
	logN := b[1]
	if logN == 0 || logN > MaxLogN {
		return nil, fmt.Errorf("%w: %w: log_n %d", ErrDecryption, ErrMalformed, logN)
	}
	salt := b[2 : 2+saltSize]
	nonce := b[2+saltSize : 2+saltSize+nonceSize]
	ksb := b[2+saltSize+nonceSize]
	sealed := b[3+saltSize+nonceSize:]

	key, err := scryptKey(password, salt, logN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	defer memguard.WipeBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	raw, err := aead.Open(nil, nonce, sealed, []byte{ksb})
	if err != nil {
		return nil, ErrDecryption
	}
	return newPrivateKey(raw, domain.KeySecurity(ksb))
}

func decryptV1(b []byte, password string) (*PrivateKey, error) {
	if len(b) != v1Size {
		return nil, fmt.Errorf("%w: %w: length %d", ErrDecryption, ErrMalformed, len(b))
	}
	salt := b[1 : 1+saltSize]
	nonce := b[1+saltSize : 1+saltSize+nonceSize]
	sealed := b[1+saltSize+nonceSize:]

	key := pbkdf2.Key([]byte(password), salt, v1Iterations, chacha20poly1305.KeySize, sha256.New)
	defer memguard.WipeBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	raw, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	// A weak derivation could have been brute forced at rest.
	return newPrivateKey(raw, domain.KeySecurityWeak)
}

// payload returns the decoded bytes with a known version in b[0].
func (e EncryptedPrivateKey) payload() ([]byte, error) {
	s := strings.TrimSpace(string(e))
	if s == "" {
		return nil, ErrMalformed
	}

	var b []byte
	if strings.HasPrefix(s, ncryptsecHRP+"1") {
		hrp, data, err := bech32.DecodeNoLimit(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if hrp != ncryptsecHRP {
			return nil, fmt.Errorf("%w: prefix %q", ErrMalformed, hrp)
		}
		if b, err = bech32.ConvertBits(data, 5, 8, false); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	} else {
		var err error
		if b, err = base64.StdEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	if len(b) == 0 {
		return nil, ErrMalformed
	}
	if b[0] != 1 && b[0] != 2 {
		return nil, fmt.Errorf("%w %d", ErrUnsupportedVersion, b[0])
	}
	return b, nil
}

func scryptKey(password string, salt []byte, logN uint8) ([]byte, error) {
	pw := []byte(norm.NFKC.String(password))
	defer memguard.WipeBytes(pw)
	return scrypt.Key(pw, salt, 1<<logN, 8, 1, chacha20poly1305.KeySize)
}
