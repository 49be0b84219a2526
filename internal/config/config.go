package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"nostrid/internal/crypto"
)

const (
	// FileName is the config file looked up in the home directory.
	FileName = "nostrid.yaml"

	envPrefix = "nostrid"
)

// Config is the runtime configuration shared by every command.
type Config struct {
	Home             string `mapstructure:"home" yaml:"home"`
	Store            string `mapstructure:"store" yaml:"store"`
	KDFLogN          uint8  `mapstructure:"kdf_log_n" yaml:"kdf_log_n"`
	LogLevel         string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat        string `mapstructure:"log_format" yaml:"log_format"`
	PoW              uint8  `mapstructure:"pow" yaml:"pow"`
	StrictPassphrase bool   `mapstructure:"strict_passphrase" yaml:"strict_passphrase"`
}

// flagKeys maps config keys to the CLI flags that override them.
var flagKeys = map[string]string{
	"home":       "home",
	"store":      "store",
	"kdf_log_n":  "kdf-log-n",
	"log_level":  "log-level",
	"log_format": "log-format",
}

// DefaultHome returns ~/.nostrid, or .nostrid when the user's home is
// unknown.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".nostrid"
	}
	return filepath.Join(home, ".nostrid")
}

// Defaults returns the built-in values for every key.
func Defaults() map[string]any {
	return map[string]any{
		"home":              DefaultHome(),
		"store":             "file",
		"kdf_log_n":         crypto.DefaultLogN,
		"log_level":         "info",
		"log_format":        "text",
		"pow":               0,
		"strict_passphrase": false,
	}
}

// Path returns the config file location for home.
func Path(home string) string {
	return filepath.Join(home, FileName)
}

// Load resolves the configuration. cmd may be nil; when set, its changed
// flags win over everything else. explicitPath, when non-empty, replaces
// the search in the home directory and must exist.
func Load(cmd *cobra.Command, explicitPath string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cmd != nil {
		for key, name := range flagKeys {
			f := cmd.Flags().Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return c, err
			}
		}
	}

	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return c, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("home"))
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, the defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, c.Validate()
}

// Validate rejects values no component can use.
func (c Config) Validate() error {
	if c.Home == "" {
		return errors.New("config: home must not be empty")
	}
	switch c.Store {
	case "file", "bolt":
	default:
		return fmt.Errorf("config: store must be file or bolt, got %q", c.Store)
	}
	if c.KDFLogN == 0 || c.KDFLogN > crypto.MaxLogN {
		return fmt.Errorf("config: kdf_log_n must be 1..%d, got %d", crypto.MaxLogN, c.KDFLogN)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: log_format must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// Write stores c as YAML at path, creating the directory if needed.
func Write(path string, c Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", dir, err)
	}
	return os.WriteFile(path, data, 0o600)
}
