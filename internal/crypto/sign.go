package crypto

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"nostrid/internal/domain"
)

// ErrKeyMismatch is returned when a pre-event names a different author.
var ErrKeyMismatch = errors.New("pre-event pubkey does not match signing key")

// SignEvent builds an event from pre, optionally mines it to difficulty
// leading zero bits of its id, and signs the id with BIP-340. A zero
// pre.PubKey is filled in with the signer's key. A nil or zero pow skips
// the search entirely.
func (k *PrivateKey) SignEvent(ctx context.Context, pre domain.PreEvent, pow *uint8) (*nostr.Event, error) {
	var zero domain.PublicKey
	switch pre.PubKey {
	case zero:
		pre.PubKey = k.public
	case k.public:
	default:
		return nil, ErrKeyMismatch
	}

	evt := &nostr.Event{
		PubKey:    pre.PubKey.Hex(),
		CreatedAt: pre.CreatedAt,
		Kind:      pre.Kind,
		Tags:      append(nostr.Tags(nil), pre.Tags...),
		Content:   pre.Content,
	}
	if evt.Tags == nil {
		evt.Tags = nostr.Tags{}
	}

	var id [32]byte
	if pow != nil && *pow > 0 {
		mined, err := MinePoW(ctx, evt, int(*pow), 0)
		if err != nil {
			return nil, err
		}
		id = mined
	} else {
		id = sha256.Sum256(evt.Serialize())
	}
	evt.ID = hex.EncodeToString(id[:])

	if err := k.SignIntoEvent(evt, id); err != nil {
		return nil, err
	}
	return evt, nil
}

// SignIntoEvent sets evt.Sig to a BIP-340 signature over id. It does not
// recompute the id.
func (k *PrivateKey) SignIntoEvent(evt *nostr.Event, id [32]byte) error {
	sig, err := k.signHash(id[:])
	if err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	evt.Sig = hex.EncodeToString(sig)
	return nil
}
