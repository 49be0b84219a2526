package commands

import (
	"fmt"
	"io"

	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/spf13/cobra"

	"nostrid/internal/crypto"
	"nostrid/internal/domain"
)

func generateCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new identity and store it encrypted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wire.Identity.IsLoaded() && !force {
				return fmt.Errorf("an identity already exists; use --force to replace it")
			}
			pass, err := readPassphrase("New passphrase: ", true)
			if err != nil {
				return err
			}
			if err := wire.Identity.Generate(pass); err != nil {
				return err
			}
			if err := wire.Identity.SaveThroughSettings(cmdContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Identity created.")
			return printPublicKey(cmd.OutOrStdout(), *wire.Identity.PublicKey())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing identity")
	return cmd
}

func importCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import <hex|nsec>",
		Short: "Import an existing private key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wire.Identity.IsLoaded() && !force {
				return fmt.Errorf("an identity already exists; use --force to replace it")
			}
			pk, err := crypto.ParsePrivateKey(args[0])
			if err != nil {
				return err
			}
			pass, err := readPassphrase("New passphrase: ", true)
			if err != nil {
				return err
			}
			if err := wire.Identity.SetPrivateKey(pk, pass); err != nil {
				return err
			}
			if err := wire.Identity.SaveThroughSettings(cmdContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Identity imported (key security: weak).")
			return printPublicKey(cmd.OutOrStdout(), *wire.Identity.PublicKey())
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing identity")
	return cmd
}

func pubkeyCmd() *cobra.Command {
	var (
		set      string
		clearKey bool
	)
	cmd := &cobra.Command{
		Use:   "pubkey",
		Short: "Print, set or clear the public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case set != "" && clearKey:
				return fmt.Errorf("--set and --clear are mutually exclusive")
			case set != "":
				pk, err := parsePublicKey(set)
				if err != nil {
					return err
				}
				if passphrase != "" {
					if err := wire.Identity.Unlock(passphrase); err != nil {
						return err
					}
				}
				wire.Identity.SetPublicKey(pk)
			case clearKey:
				if passphrase != "" {
					if err := wire.Identity.Unlock(passphrase); err != nil {
						return err
					}
				}
				wire.Identity.ClearPublicKey()
			}

			if set != "" || clearKey {
				if msg := wire.Status.Latest(); msg != "" {
					fmt.Fprintln(out, msg)
				}
				if err := wire.Identity.SaveThroughSettings(cmdContext(cmd)); err != nil {
					return err
				}
			}

			pk := wire.Identity.PublicKey()
			if pk == nil {
				fmt.Fprintln(out, "No public key.")
				return nil
			}
			return printPublicKey(out, *pk)
		},
	}
	cmd.Flags().StringVar(&set, "set", "", "record a public key (hex or npub)")
	cmd.Flags().BoolVar(&clearKey, "clear", false, "forget the public key")
	return cmd
}

func unlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Check the passphrase and upgrade weak key protection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := readPassphrase("Passphrase: ", false)
			if err != nil {
				return err
			}
			if err := wire.Identity.Unlock(pass); err != nil {
				return err
			}
			if err := wire.Identity.Flush(cmdContext(cmd)); err != nil {
				return err
			}
			sec, _ := wire.Identity.KeySecurity()
			fmt.Fprintf(cmd.OutOrStdout(), "Unlocked. Key security: %s\n", sec)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Delete the identity (requires the passphrase)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pass, err := readPassphrase("Passphrase: ", false)
			if err != nil {
				return err
			}
			if err := wire.Identity.DeleteIdentity(pass); err != nil {
				return err
			}
			if err := wire.Identity.Flush(cmdContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Identity deleted.")
			return nil
		},
	}
}

func printPublicKey(w io.Writer, pk domain.PublicKey) error {
	npub, err := nip19.EncodePublicKey(pk.Hex())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Public key:  %s\nnpub:        %s\nFingerprint: %s\n", pk.Hex(), npub, crypto.Fingerprint(pk))
	return nil
}

func parsePublicKey(s string) (domain.PublicKey, error) {
	prefix, value, err := nip19.Decode(s)
	if err == nil {
		hexKey, ok := value.(string)
		if prefix != "npub" || !ok {
			return domain.PublicKey{}, fmt.Errorf("expected npub, got %q", prefix)
		}
		s = hexKey
	}
	return domain.PublicKeyFromHex(s)
}
