package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"nostrid/internal/app"
	"nostrid/internal/config"
)

// skipWire marks commands that run without opening the store.
const skipWire = "nostrid/skip-wire"

var (
	home       string
	configPath string
	storeKind  string
	kdfLogN    uint8
	logLevel   string
	logFormat  string
	passphrase string

	cfg  config.Config
	wire *app.Wire
)

// Execute runs the nostrid CLI.
func Execute() error {
	return execute(newRootCmd())
}

// execute runs root and then waits for background saves.
func execute(root *cobra.Command) error {
	err := root.Execute()
	if wire != nil {
		if cerr := wire.Close(); err == nil {
			err = cerr
		}
		wire = nil
	}
	return err
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nostrid",
		Short:         "Nostr identity custody CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cmd, configPath)
			if err != nil {
				return err
			}
			wcfg, err := app.Setup(cfg, os.Stderr)
			if err != nil {
				return err
			}
			if cmd.Annotations[skipWire] != "" {
				return nil
			}
			wire, err = app.NewWire(cmdContext(cmd), wcfg)
			return err
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default ~/.nostrid)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <home>/nostrid.yaml)")
	root.PersistentFlags().StringVar(&storeKind, "store", "", "settings backend: file or bolt")
	root.PersistentFlags().Uint8Var(&kdfLogN, "kdf-log-n", 0, "scrypt cost for new encrypted keys")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the private key")

	root.AddCommand(
		generateCmd(),
		importCmd(),
		pubkeyCmd(),
		unlockCmd(),
		exportCmd(),
		deleteCmd(),
		signCmd(),
		statusCmd(),
		configCmd(),
	)
	return root
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
