package identity

import (
	"sync"

	"nostrid/internal/domain"
)

const statusHistorySize = 32

// StatusBoard keeps the latest human-readable status message and a short
// history. It is the side-channel for requests the custodian ignores.
type StatusBoard struct {
	mu      sync.RWMutex
	history []string
}

// NewStatusBoard returns an empty board.
func NewStatusBoard() *StatusBoard { return &StatusBoard{} }

// Report records message as the latest status.
func (b *StatusBoard) Report(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, message)
	if len(b.history) > statusHistorySize {
		b.history = b.history[len(b.history)-statusHistorySize:]
	}
}

// Latest returns the most recent message, or "".
func (b *StatusBoard) Latest() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.history) == 0 {
		return ""
	}
	return b.history[len(b.history)-1]
}

// History returns up to the last 32 messages, oldest first.
func (b *StatusBoard) History() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]string(nil), b.history...)
}

// Compile-time assertion that StatusBoard implements domain.StatusReporter.
var _ domain.StatusReporter = (*StatusBoard)(nil)
