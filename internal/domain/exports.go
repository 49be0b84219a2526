package domain

import (
	interfaces "nostrid/internal/domain/interfaces"
	types "nostrid/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Fingerprint = types.Fingerprint
	Format      = types.Format
	KeySecurity = types.KeySecurity
	PreEvent    = types.PreEvent
	PublicKey   = types.PublicKey
	Settings    = types.Settings
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityService = interfaces.IdentityService
	SettingsStore   = interfaces.SettingsStore
	StatusReporter  = interfaces.StatusReporter
)

// Re-exported constructors.
var PublicKeyFromHex = types.PublicKeyFromHex

// Re-exported constants.
const (
	FormatHex    = types.FormatHex
	FormatBech32 = types.FormatBech32

	KeySecurityWeak       = types.KeySecurityWeak
	KeySecurityMedium     = types.KeySecurityMedium
	KeySecurityNotTracked = types.KeySecurityNotTracked
)
