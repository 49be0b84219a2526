package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the identity state and key protection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			id := wire.Identity

			if passphrase != "" && id.IsLoaded() {
				if err := id.Unlock(passphrase); err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "State:       %s\n", id.State())
			fmt.Fprintf(out, "Store:       %s (%s)\n", cfg.Store, cfg.Home)
			if pk := id.PublicKey(); pk != nil {
				if err := printPublicKey(out, *pk); err != nil {
					return err
				}
			}
			if epk := id.EncryptedPrivateKey(); epk != nil {
				v, err := epk.Version()
				if err != nil {
					fmt.Fprintf(out, "Encrypted:   unreadable (%v)\n", err)
				} else {
					logN, _ := epk.LogN()
					fmt.Fprintf(out, "Encrypted:   version %d, log_n %d\n", v, logN)
				}
			}
			if sec, ok := id.KeySecurity(); ok {
				fmt.Fprintf(out, "Security:    %s\n", sec)
			}
			for _, msg := range wire.Status.History() {
				fmt.Fprintf(out, "Notice:      %s\n", msg)
			}
			return nil
		},
	}
}
