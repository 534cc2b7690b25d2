// Package memory provides an in-memory credential store for tests and for
// embedding the access control core without persistence.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/store"
)

// Store keeps both documents in their encoded form so that every read
// returns an independent copy, the same as a persistent backend.
type Store struct {
	mu       sync.RWMutex
	primary  []byte
	registry []byte
	closed   bool

	// failWrite, when set, is consulted before each document write.
	failWrite func(document string) error

	writes int
}

var _ store.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// NewWithDocuments creates a store seeded with the given documents.
func NewWithDocuments(primary *models.PrimaryConfig, registry *models.UserRegistry) (*Store, error) {
	s := New()
	var err error
	if primary != nil {
		if s.primary, err = store.EncodePrimary(primary); err != nil {
			return nil, err
		}
	}
	if registry != nil {
		if s.registry, err = store.EncodeRegistry(registry); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FailWrites installs a hook that can reject individual document writes.
// Pass nil to remove it.
func (s *Store) FailWrites(fn func(document string) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite = fn
}

// Writes returns the number of document writes committed so far.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *Store) LoadPrimary(ctx context.Context) (*models.PrimaryConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return store.DecodePrimary(s.primary)
}

func (s *Store) LoadRegistry(ctx context.Context) (*models.UserRegistry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return store.DecodeRegistry(s.registry)
}

func (s *Store) Load(ctx context.Context) (*store.Documents, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return s.loadLocked()
}

func (s *Store) loadLocked() (*store.Documents, error) {
	p, err := store.DecodePrimary(s.primary)
	if err != nil {
		return nil, err
	}
	r, err := store.DecodeRegistry(s.registry)
	if err != nil {
		return nil, err
	}
	return &store.Documents{Primary: p, Registry: r}, nil
}

func (s *Store) Update(ctx context.Context, fn store.UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	docs, err := s.loadLocked()
	if err != nil {
		return err
	}
	_, ch, err := store.Apply(docs, fn)
	if err != nil {
		return err
	}
	if ch.Empty() {
		return nil
	}

	// All writes are checked up front so a failure leaves both documents
	// untouched.
	if s.failWrite != nil {
		if ch.Primary != nil {
			if err := s.failWrite(store.DocumentPrimary); err != nil {
				return persistError(store.DocumentPrimary, err)
			}
		}
		if ch.Registry != nil {
			if err := s.failWrite(store.DocumentRegistry); err != nil {
				return persistError(store.DocumentRegistry, err)
			}
		}
	}

	if ch.Primary != nil {
		s.primary = ch.Primary
		s.writes++
	}
	if ch.Registry != nil {
		s.registry = ch.Registry
		s.writes++
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func persistError(document string, err error) error {
	return fmt.Errorf("%w: %s: %w", store.ErrPersist, document, err)
}
