package interfaces

import (
	"context"

	domaintypes "nostrid/internal/domain/types"
)

// SettingsStore persists the identity fields of the user's settings.
//
// LoadSettings on a store that has never been written returns the zero
// Settings and no error.
type SettingsStore interface {
	LoadSettings(ctx context.Context) (domaintypes.Settings, error)
	SaveSettings(ctx context.Context, settings domaintypes.Settings) error
}
