package app

import (
	"context"
	"fmt"
	"os"

	"nostrid/internal/services/identity"
	"nostrid/internal/store"
)

// Wire bundles the store and services for the CLI.
type Wire struct {
	Store    store.Store
	Identity *identity.Custodian
	Status   *identity.StatusBoard
}

// NewWire constructs the dependency graph from cfg and loads the stored
// identity.
func NewWire(ctx context.Context, cfg Config) (*Wire, error) {
	if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
		return nil, fmt.Errorf("create home: %w", err)
	}

	st, err := store.Open(cfg.Store, cfg.Home)
	if err != nil {
		return nil, err
	}

	board := identity.NewStatusBoard()
	custodian := identity.New(st, identity.Options{
		LogN:                    cfg.KDFLogN,
		Status:                  board,
		Logger:                  cfg.Logger,
		RequireStrongPassphrase: cfg.StrictPassphrase,
	})
	custodian.LoadFromSettings(ctx)

	return &Wire{
		Store:    st,
		Identity: custodian,
		Status:   board,
	}, nil
}

// Close waits for background saves and releases the store.
func (w *Wire) Close() error {
	w.Identity.Close()
	return w.Store.Close()
}
