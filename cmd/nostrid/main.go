package main

import (
	"fmt"
	"os"

	"github.com/awnumar/memguard"

	"nostrid/cmd/nostrid/commands"
)

func main() {
	memguard.CatchInterrupt()

	err := commands.Execute()
	memguard.Purge()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
