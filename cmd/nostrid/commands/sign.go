package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/spf13/cobra"

	"nostrid/internal/domain"
)

func signCmd() *cobra.Command {
	var (
		kind    int
		content string
		tags    []string
		pow     uint8
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign an event and print it as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseTags(tags)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("pow") {
				pow = cfg.PoW
			}

			pass, err := readPassphrase("Passphrase: ", false)
			if err != nil {
				return err
			}
			if err := wire.Identity.Unlock(pass); err != nil {
				return err
			}

			ctx := cmdContext(cmd)
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			evt, err := wire.Identity.Sign(ctx, domain.PreEvent{
				CreatedAt: nostr.Now(),
				Kind:      kind,
				Tags:      parsed,
				Content:   content,
			}, &pow)
			if err != nil {
				return err
			}

			b, err := json.MarshalIndent(evt, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
	cmd.Flags().IntVar(&kind, "kind", 1, "event kind")
	cmd.Flags().StringVar(&content, "content", "", "event content")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag as name=value[,value...] (repeatable)")
	cmd.Flags().Uint8Var(&pow, "pow", 0, "proof-of-work difficulty in leading zero bits (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up mining after this long")
	return cmd
}

// parseTags turns name=v1,v2 into ["name","v1","v2"].
func parseTags(raw []string) (nostr.Tags, error) {
	tags := make(nostr.Tags, 0, len(raw))
	for _, r := range raw {
		name, values, ok := strings.Cut(r, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("bad tag %q (want name=value)", r)
		}
		tag := nostr.Tag{name}
		tag = append(tag, strings.Split(values, ",")...)
		tags = append(tags, tag)
	}
	return tags, nil
}
