package commands

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"nostrid/internal/domain"
)

func exportCmd() *cobra.Command {
	var (
		format      string
		toClipboard bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Reveal the private key (its key security becomes weak)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := domain.Format(format)
			if f != domain.FormatHex && f != domain.FormatBech32 {
				return fmt.Errorf("unknown format %q (want hex or bech32)", format)
			}
			pass, err := readPassphrase("Passphrase: ", false)
			if err != nil {
				return err
			}
			key, err := wire.Identity.Export(pass, f)
			if err != nil {
				return err
			}
			if err := wire.Identity.Flush(cmdContext(cmd)); err != nil {
				return err
			}

			fmt.Fprintln(cmd.ErrOrStderr(), "Warning: this key is now marked weak.")
			if toClipboard {
				if err := clipboard.WriteAll(key); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Private key copied to clipboard.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", string(domain.FormatBech32), "output format: hex or bech32")
	cmd.Flags().BoolVar(&toClipboard, "clipboard", false, "copy to the clipboard instead of printing")
	return cmd
}
