package mcpmgr

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ShutdownStack records release functions in acquisition order and runs them
// in reverse. Sessions push onto it as soon as their transport is open, so an
// aborted or partial startup still releases everything that was acquired.
type ShutdownStack struct {
	mu      sync.Mutex
	entries []shutdownEntry
	unwound bool
}

type shutdownEntry struct {
	name    string
	release func(context.Context) error
}

// Push registers a release function. Pushing after Unwind runs the release
// immediately so late acquisitions are never leaked.
func (s *ShutdownStack) Push(name string, release func(context.Context) error) {
	if release == nil {
		return
	}
	s.mu.Lock()
	if s.unwound {
		s.mu.Unlock()
		_ = release(context.Background())
		return
	}
	s.entries = append(s.entries, shutdownEntry{name: name, release: release})
	s.mu.Unlock()
}

// Len reports the number of pending release functions.
func (s *ShutdownStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Unwind runs every pending release function, last pushed first. All of them
// run even if some fail; the failures are joined.
func (s *ShutdownStack) Unwind(ctx context.Context) error {
	s.mu.Lock()
	entries := s.entries
	s.entries = nil
	s.unwound = true
	s.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].release(ctx); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", entries[i].name, err))
		}
	}
	return errors.Join(errs...)
}
