package types

import "github.com/nbd-wtf/go-nostr"

// PreEvent is an event before an id and signature are attached. The
// canonical preimage is derived from these fields plus the signer's key.
type PreEvent struct {
	PubKey    PublicKey       `json:"pubkey"`
	CreatedAt nostr.Timestamp `json:"created_at"`
	Kind      int             `json:"kind"`
	Tags      nostr.Tags      `json:"tags"`
	Content   string          `json:"content"`
}
