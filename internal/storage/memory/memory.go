// Package memory provides a process-lifetime implementation of storage.Store.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/mmynk/splitchat/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// ErrClosed is returned after Close has been called.
var ErrClosed = errors.New("store is closed")

// Store keeps one session snapshot in memory.
type Store struct {
	mu      sync.Mutex
	current storage.Snapshot
	closed  bool
}

// New creates a store holding initial.
func New(initial storage.Snapshot) *Store {
	return &Store{current: initial}
}

// Load returns the current snapshot.
func (s *Store) Load(ctx context.Context) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.Snapshot{}, ErrClosed
	}
	return s.current, nil
}

// Update swaps in fn(current) under the lock.
func (s *Store) Update(ctx context.Context, fn storage.UpdateFunc) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.Snapshot{}, ErrClosed
	}
	s.current = fn(s.current)
	return s.current, nil
}

// Close discards the session.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.current = storage.Snapshot{}
	return nil
}
