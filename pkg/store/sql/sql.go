// Package sql stores the credential documents in a SQL database through GORM.
//
// Each document is one row of the documents table. Writers use optimistic
// concurrency: every row carries a version which an update must match, and
// a lost race re-runs the whole transaction up to Config.MaxRetries times.
// This lets several instances share one PostgreSQL database.
package sql

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	wlog "github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/store"
)

// Document is one persisted credential document.
type Document struct {
	Name      string    `gorm:"primaryKey;size:32"`
	Body      string    `gorm:"type:text;not null"`
	Version   int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for Document.
func (Document) TableName() string {
	return "documents"
}

// errConflict signals a lost version race inside one attempt.
var errConflict = errors.New("version conflict")

// Store implements store.Store using GORM.
// It supports both SQLite and PostgreSQL backends via the same codebase.
type Store struct {
	db     *gorm.DB
	config *Config
}

var _ store.Store = (*Store)(nil)

// New opens the database and creates the schema via GORM AutoMigrate.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	var dialector gorm.Dialector
	switch config.Type {
	case DatabaseTypeSQLite:
		if err := os.MkdirAll(filepath.Dir(config.SQLite.Path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// - journal_mode(WAL): concurrent readers with a single writer
		// - busy_timeout(5000): wait up to 5 seconds when the database is locked
		dsn := config.SQLite.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		dialector = sqlite.Open(dsn)

	case DatabaseTypePostgres:
		dialector = postgres.Open(config.Postgres.DSN())

	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying database: %w", err)
	}
	switch config.Type {
	case DatabaseTypePostgres:
		sqlDB.SetMaxOpenConns(config.Postgres.MaxOpenConns)
		sqlDB.SetMaxIdleConns(config.Postgres.MaxIdleConns)
	case DatabaseTypeSQLite:
		// One writer at a time; more connections only produce SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to run database migration: %w", err)
	}

	return &Store{db: db, config: config}, nil
}

// DB returns the underlying GORM database connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) LoadPrimary(ctx context.Context) (*models.PrimaryConfig, error) {
	doc, err := getDocument(s.db, ctx, store.DocumentPrimary)
	if err != nil {
		return nil, err
	}
	return store.DecodePrimary(body(doc))
}

func (s *Store) LoadRegistry(ctx context.Context) (*models.UserRegistry, error) {
	doc, err := getDocument(s.db, ctx, store.DocumentRegistry)
	if err != nil {
		return nil, err
	}
	return store.DecodeRegistry(body(doc))
}

func (s *Store) Load(ctx context.Context) (*store.Documents, error) {
	var docs *store.Documents
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := loadRows(tx, ctx)
		if err != nil {
			return err
		}
		docs, err = decodeRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Update runs fn and commits the changed documents. fn may run more than
// once when another writer commits first; it must not have side effects
// beyond the documents it is handed.
func (s *Store) Update(ctx context.Context, fn store.UpdateFunc) error {
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.updateOnce(ctx, fn)
		if !errors.Is(err, errConflict) {
			return err
		}

		wlog.DebugCtx(ctx, "Credential document version conflict, retrying",
			wlog.KeyAttempt, attempt+1)
	}
	return fmt.Errorf("%w: gave up after %d attempts", store.ErrConflict, s.config.MaxRetries+1)
}

func (s *Store) updateOnce(ctx context.Context, fn store.UpdateFunc) error {
	rows, err := loadRows(s.db, ctx)
	if err != nil {
		return err
	}
	docs, err := decodeRows(rows)
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

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ch.Primary != nil {
			if err := writeDocument(tx, rows[store.DocumentPrimary], store.DocumentPrimary, ch.Primary); err != nil {
				return err
			}
		}
		if ch.Registry != nil {
			if err := writeDocument(tx, rows[store.DocumentRegistry], store.DocumentRegistry, ch.Registry); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Healthcheck verifies the database is reachable.
func (s *Store) Healthcheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// writeDocument inserts or version-checks and updates one document.
// prev is the row read at the start of the attempt, nil if it did not exist.
func writeDocument(tx *gorm.DB, prev *Document, name string, data []byte) error {
	if prev == nil {
		err := tx.Create(&Document{Name: name, Body: string(data), Version: 1}).Error
		if isUniqueConstraintError(err) {
			return errConflict
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", store.ErrPersist, name, err)
		}
		return nil
	}

	res := tx.Model(&Document{}).
		Where("name = ? AND version = ?", name, prev.Version).
		Updates(map[string]any{
			"body":       string(data),
			"version":    prev.Version + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %s: %w", store.ErrPersist, name, res.Error)
	}
	if res.RowsAffected == 0 {
		return errConflict
	}
	return nil
}

func getDocument(db *gorm.DB, ctx context.Context, name string) (*Document, error) {
	var doc Document
	err := db.WithContext(ctx).Where("name = ?", name).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s document: %w", name, err)
	}
	return &doc, nil
}

func loadRows(db *gorm.DB, ctx context.Context) (map[string]*Document, error) {
	var docs []*Document
	if err := db.WithContext(ctx).
		Where("name IN ?", []string{store.DocumentPrimary, store.DocumentRegistry}).
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	rows := make(map[string]*Document, len(docs))
	for _, d := range docs {
		rows[d.Name] = d
	}
	return rows, nil
}

func decodeRows(rows map[string]*Document) (*store.Documents, error) {
	p, err := store.DecodePrimary(body(rows[store.DocumentPrimary]))
	if err != nil {
		return nil, err
	}
	r, err := store.DecodeRegistry(body(rows[store.DocumentRegistry]))
	if err != nil {
		return nil, err
	}
	return &store.Documents{Primary: p, Registry: r}, nil
}

func body(doc *Document) []byte {
	if doc == nil {
		return nil
	}
	return []byte(doc.Body)
}

// isUniqueConstraintError checks if the error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// SQLite or PostgreSQL unique constraint errors
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "duplicate key value violates unique constraint")
}
