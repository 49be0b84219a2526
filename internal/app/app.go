package app

import (
	"io"

	"nostrid/internal/config"
	"nostrid/internal/logging"
)

// Setup configures logging from c and returns the wiring options.
func Setup(c config.Config, logOut io.Writer) (Config, error) {
	if err := logging.Configure(c.LogLevel, c.LogFormat, logOut); err != nil {
		return Config{}, err
	}
	return ConfigFrom(c), nil
}
