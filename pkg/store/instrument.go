package store

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/warden/pkg/metrics"
	"github.com/marmos91/warden/pkg/models"
)

// Instrument wraps st so that every call is reported to m under the given
// backend name. A nil m returns st unchanged.
func Instrument(st Store, backend string, m metrics.StoreMetrics) Store {
	if m == nil {
		return st
	}
	return &instrumented{Store: st, backend: backend, metrics: m}
}

type instrumented struct {
	Store
	backend string
	metrics metrics.StoreMetrics
}

func (s *instrumented) LoadPrimary(ctx context.Context) (*models.PrimaryConfig, error) {
	start := time.Now()
	p, err := s.Store.LoadPrimary(ctx)
	s.observe("load", err, start)
	return p, err
}

func (s *instrumented) LoadRegistry(ctx context.Context) (*models.UserRegistry, error) {
	start := time.Now()
	r, err := s.Store.LoadRegistry(ctx)
	s.observe("load", err, start)
	return r, err
}

func (s *instrumented) Load(ctx context.Context) (*Documents, error) {
	start := time.Now()
	d, err := s.Store.Load(ctx)
	s.observe("load", err, start)
	return d, err
}

func (s *instrumented) Update(ctx context.Context, fn UpdateFunc) error {
	start := time.Now()
	err := s.Store.Update(ctx, fn)
	s.observe("update", err, start)
	return err
}

// Unwrap returns the wrapped store.
func (s *instrumented) Unwrap() Store { return s.Store }

func (s *instrumented) observe(op string, err error, start time.Time) {
	s.metrics.ObserveOperation(s.backend, op, ErrorClass(err), time.Since(start))
}

// ErrorClass maps a store error to a short, bounded label.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrPartialCommit):
		return "partial_commit"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPersist):
		return "persist"
	case errors.Is(err, ErrCorrupt):
		return "corrupt"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "error"
	}
}
