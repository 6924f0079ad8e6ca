package repository

import (
	"context"

	"github.com/anime-shed/ocr-chat-go/internal/session"
)

// SessionRepository keeps the live session states of the process.
type SessionRepository interface {
	// Create registers a new empty session and returns its ID
	Create() (string, error)

	// Exists reports whether id names a live session without waiting for its lock
	Exists(id string) error

	// Snapshot returns a copy of the session's current state
	Snapshot(ctx context.Context, id string) (session.Snapshot, error)

	// Update runs fn with exclusive access to the session's state. Calls for the
	// same session never overlap; the wait for access honours ctx.
	Update(ctx context.Context, id string, fn func(*session.State) error) error

	// Delete ends a session
	Delete(id string) error

	// Count returns the number of live sessions
	Count() int
}
