package types

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// Format selects the text encoding of an exported private key.
type Format string

const (
	// FormatHex is 64 lowercase hex characters.
	FormatHex Format = "hex"
	// FormatBech32 is the NIP-19 nsec1... encoding.
	FormatBech32 Format = "bech32"
)

// String returns the string form of the format.
func (f Format) String() string { return string(f) }
