// Package app wires application dependencies for the CLI.
//
// It turns the loaded configuration into a configured logger, the chosen
// settings store and the identity custodian, exposing them via the Wire
// struct for commands to use.
package app
