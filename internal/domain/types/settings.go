package types

// Settings is the slice of persisted settings that carries the identity.
// The decrypted private key never appears here.
type Settings struct {
	PublicKey           *PublicKey `json:"public_key,omitempty"`
	EncryptedPrivateKey *string    `json:"encrypted_private_key,omitempty"`
}
