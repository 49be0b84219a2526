// Package config loads nostrid's settings from defaults, a YAML file,
// NOSTRID_ environment variables and command-line flags, in increasing
// order of precedence. It uses Viper for parsing and yaml.v3 to write a
// starter file.
package config
