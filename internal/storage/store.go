// Package storage provides abstractions for session state storage.
package storage

import (
	"context"

	"github.com/mmynk/splitchat/internal/chatlog"
	"github.com/mmynk/splitchat/internal/models"
)

// Snapshot is the complete session state at one point in time.
type Snapshot struct {
	Bill models.BillState
	Log  chatlog.Log
}

// UpdateFunc computes the next snapshot from the current one.
// It must be a pure function of its argument.
type UpdateFunc func(current Snapshot) Snapshot

// Store defines the interface for session state operations.
// This abstraction keeps the pipeline and service layer independent of how
// the session is held.
type Store interface {
	// Load returns the current snapshot.
	Load(ctx context.Context) (Snapshot, error)

	// Update replaces the current snapshot with fn(current) and returns the
	// result. Concurrent updates are applied one after the other, each seeing
	// the result of the previous one; there is no conflict detection.
	Update(ctx context.Context, fn UpdateFunc) (Snapshot, error)

	// Close releases any resources held by the store.
	Close() error
}
