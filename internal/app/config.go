package app

import (
	"github.com/sirupsen/logrus"

	"nostrid/internal/config"
	"nostrid/internal/store"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home             string     // data directory, e.g. $HOME/.nostrid
	Store            store.Kind // settings backend
	KDFLogN          uint8      // scrypt cost for new encrypted keys
	StrictPassphrase bool       // enforce the passphrase policy on new keys

	Logger *logrus.Entry // optional; defaults to the "identity" entry
}

// ConfigFrom maps the user-facing configuration onto wiring options.
func ConfigFrom(c config.Config) Config {
	return Config{
		Home:             c.Home,
		Store:            store.Kind(c.Store),
		KDFLogN:          c.KDFLogN,
		StrictPassphrase: c.StrictPassphrase,
	}
}
