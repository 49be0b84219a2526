package interfaces

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	domaintypes "nostrid/internal/domain/types"
)

// IdentityService is the custody contract for the single active identity.
type IdentityService interface {
	LoadFromSettings(ctx context.Context)
	SaveThroughSettings(ctx context.Context) error

	SetPublicKey(pk domaintypes.PublicKey)
	ClearPublicKey()
	Generate(passphrase string) error
	Unlock(passphrase string) error
	DeleteIdentity(passphrase string) error

	IsLoaded() bool
	IsReady() bool
	PublicKey() *domaintypes.PublicKey
	KeySecurity() (domaintypes.KeySecurity, bool)

	Sign(ctx context.Context, pre domaintypes.PreEvent, pow *uint8) (*nostr.Event, error)
	Export(passphrase string, format domaintypes.Format) (string, error)
}

// StatusReporter receives human-readable notices about requests that were
// deliberately ignored.
type StatusReporter interface {
	Report(message string)
}
