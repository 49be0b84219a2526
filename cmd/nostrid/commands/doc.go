// Package commands defines the nostrid CLI and wires dependencies for subcommands.
//
// Commands
//
//   - generate     Create a new identity
//   - import       Install an existing hex or nsec private key
//   - pubkey       Print, set or clear the public key
//   - unlock       Check the passphrase and upgrade a weakly protected key
//   - export       Reveal the private key (marks it weak)
//   - delete       Forget the identity
//   - sign         Sign an event, optionally with proof of work
//   - status       Show what is held and how it is protected
//   - config init  Write a starter config file
//
// # Implementation
//
// The root command loads configuration, configures logging and builds the
// settings store and identity custodian before any subcommand runs. Every
// process starts locked; commands that need the private key unlock it with
// the passphrase from -p or a terminal prompt. Background saves are
// flushed before the process exits.
package commands
