package commands

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

var errPassphraseRequired = errors.New("passphrase required (-p)")

// readPassphrase returns -p if given, otherwise prompts on the terminal.
// With confirm the passphrase is asked for twice.
func readPassphrase(prompt string, confirm bool) (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errPassphraseRequired
	}

	first, err := promptSecret(fd, prompt)
	if err != nil {
		return "", err
	}
	if confirm {
		second, err := promptSecret(fd, "Repeat passphrase: ")
		if err != nil {
			return "", err
		}
		if first != second {
			return "", errors.New("passphrases do not match")
		}
	}
	return first, nil
}

func promptSecret(fd int, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(b), nil
}
