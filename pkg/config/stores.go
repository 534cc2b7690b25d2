package config

import (
	"context"
	"fmt"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/metrics"
	"github.com/marmos91/warden/pkg/store"
	"github.com/marmos91/warden/pkg/store/file"
	sqlstore "github.com/marmos91/warden/pkg/store/sql"
)

// Backend is an opened document store.
type Backend struct {
	// Store is the store to hand to the access control core. It is wrapped
	// with metrics when collection is enabled.
	Store store.Store

	// File is set for the file backend so callers can watch it.
	File *file.Store

	// SQL is set for the sqlite and postgres backends.
	SQL *sqlstore.Store
}

// Healthcheck reports whether the backend can serve requests.
func (b *Backend) Healthcheck(ctx context.Context) error {
	if b.SQL != nil {
		return b.SQL.Healthcheck(ctx)
	}
	_, err := b.Store.Load(ctx)
	return err
}

// Close releases the underlying store.
func (b *Backend) Close() error {
	return b.Store.Close()
}

// OpenStore creates the document store selected by cfg.Type.
func OpenStore(cfg *StoreConfig, m metrics.StoreMetrics) (*Backend, error) {
	b := &Backend{}

	switch cfg.Type {
	case StoreTypeFile, "":
		st, err := file.New(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		b.File = st
		b.Store = store.Instrument(st, StoreTypeFile, m)
		logger.Info("Document store opened",
			logger.KeyStoreType, StoreTypeFile,
			"primary", cfg.File.PrimaryPath,
			"registry", cfg.File.RegistryPath)

	case StoreTypeSQLite, StoreTypePostgres:
		dbCfg := cfg.Database
		st, err := sqlstore.New(&dbCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Type, err)
		}
		b.SQL = st
		b.Store = store.Instrument(st, cfg.Type, m)
		logger.Info("Document store opened", logger.KeyStoreType, cfg.Type)

	default:
		return nil, fmt.Errorf("unknown store type: %q", cfg.Type)
	}

	return b, nil
}
