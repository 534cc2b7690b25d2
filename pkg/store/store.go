// Package store persists the two credential documents: the primary
// configuration and the user registry.
//
// Every backend offers the same transaction shape: Update loads both
// documents, hands mutable copies to the caller and writes back only the
// documents that changed. Either both changed documents are committed or the
// call fails.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marmos91/warden/pkg/models"
)

var (
	// ErrPersist is returned when a document cannot be written.
	ErrPersist = errors.New("failed to persist document")

	// ErrPartialCommit is returned when one document was written, the second
	// failed, and the first could not be restored. The documents may disagree
	// until the next successful Update or a repair.
	ErrPartialCommit = errors.New("partial commit: documents may be inconsistent")

	// ErrConflict is returned when a concurrent writer changed a document and
	// the retry budget was exhausted.
	ErrConflict = errors.New("concurrent modification")

	// ErrCorrupt is returned when a persisted document cannot be decoded.
	ErrCorrupt = errors.New("document is corrupt")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Document names used by backends and in log fields.
const (
	DocumentPrimary  = "primary"
	DocumentRegistry = "registry"
)

// Documents is the pair of documents handed to an Update transaction.
type Documents struct {
	Primary  *models.PrimaryConfig
	Registry *models.UserRegistry
}

// Clone returns a deep copy.
func (d *Documents) Clone() *Documents {
	return &Documents{
		Primary:  d.Primary.Clone(),
		Registry: d.Registry.Clone(),
	}
}

// UpdateFunc mutates documents inside a transaction. Returning an error
// aborts the transaction without writing anything.
type UpdateFunc func(docs *Documents) error

// Store is the persistence contract for the credential documents.
type Store interface {
	// LoadPrimary returns a copy of the primary configuration document.
	// A missing document yields an empty one.
	LoadPrimary(ctx context.Context) (*models.PrimaryConfig, error)

	// LoadRegistry returns a copy of the user registry document.
	// A missing document yields an empty registry.
	LoadRegistry(ctx context.Context) (*models.UserRegistry, error)

	// Load returns both documents from a single consistent read.
	Load(ctx context.Context) (*Documents, error)

	// Update runs fn over both documents and commits the ones it changed.
	Update(ctx context.Context, fn UpdateFunc) error

	// Close releases backend resources.
	Close() error
}

// Changes reports which documents differ between before and after.
type Changes struct {
	Primary  []byte
	Registry []byte
}

// Empty reports whether nothing needs writing.
func (c Changes) Empty() bool {
	return c.Primary == nil && c.Registry == nil
}

// Diff encodes both versions of each document and returns the encoded form of
// the documents that changed. A nil field means "unchanged".
func Diff(before, after *Documents) (Changes, error) {
	var ch Changes

	oldPrimary, err := EncodePrimary(before.Primary)
	if err != nil {
		return ch, err
	}
	newPrimary, err := EncodePrimary(after.Primary)
	if err != nil {
		return ch, err
	}
	if !bytes.Equal(oldPrimary, newPrimary) {
		ch.Primary = newPrimary
	}

	oldRegistry, err := EncodeRegistry(before.Registry)
	if err != nil {
		return ch, err
	}
	newRegistry, err := EncodeRegistry(after.Registry)
	if err != nil {
		return ch, err
	}
	if !bytes.Equal(oldRegistry, newRegistry) {
		ch.Registry = newRegistry
	}

	return ch, nil
}

// EncodePrimary encodes the primary document in its persisted form.
func EncodePrimary(p *models.PrimaryConfig) ([]byte, error) {
	if p == nil {
		p = &models.PrimaryConfig{}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s document: %w", DocumentPrimary, err)
	}
	return append(data, '\n'), nil
}

// EncodeRegistry encodes the registry document in its persisted form.
func EncodeRegistry(r *models.UserRegistry) ([]byte, error) {
	if r == nil {
		r = models.NewUserRegistry()
	}
	if r.Users == nil {
		r = r.Clone()
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s document: %w", DocumentRegistry, err)
	}
	return append(data, '\n'), nil
}

// DecodePrimary decodes a persisted primary document. Empty input yields an
// empty document.
func DecodePrimary(data []byte) (*models.PrimaryConfig, error) {
	p := &models.PrimaryConfig{}
	if len(bytes.TrimSpace(data)) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, DocumentPrimary, err)
	}
	return p, nil
}

// DecodeRegistry decodes a persisted registry document. Empty input yields
// an empty registry.
func DecodeRegistry(data []byte) (*models.UserRegistry, error) {
	r := models.NewUserRegistry()
	if len(bytes.TrimSpace(data)) == 0 {
		return r, nil
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, DocumentRegistry, err)
	}
	if r.Users == nil {
		r.Users = []models.UserRecord{}
	}
	return r, nil
}

// Apply runs fn over a deep copy of docs and returns the modified copy and
// the encoded changes. docs itself is never modified.
func Apply(docs *Documents, fn UpdateFunc) (*Documents, Changes, error) {
	work := docs.Clone()
	if work.Primary == nil {
		work.Primary = &models.PrimaryConfig{}
	}
	if work.Registry == nil {
		work.Registry = models.NewUserRegistry()
	}
	if err := fn(work); err != nil {
		return nil, Changes{}, err
	}
	ch, err := Diff(docs, work)
	if err != nil {
		return nil, Changes{}, err
	}
	return work, ch, nil
}
