// Package file stores the credential documents as two JSON files.
//
// Writes go to a temporary file in the same directory which is synced and
// renamed over the target, so a reader never sees a half-written document.
// When both documents change in one Update the primary document is written
// first; if the registry write then fails the previous primary document is
// restored.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/warden/internal/logger"
	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/store"
)

const (
	// DefaultPrimaryFile is the primary document file name.
	DefaultPrimaryFile = "config.json"

	// DefaultRegistryFile is the user registry file name.
	DefaultRegistryFile = "users.json"

	filePerm = 0600
	dirPerm  = 0700
)

// Config contains file store configuration.
type Config struct {
	// PrimaryPath is the path of the primary configuration document.
	PrimaryPath string `mapstructure:"primary_path" yaml:"primary_path" validate:"required"`

	// RegistryPath is the path of the user registry document.
	RegistryPath string `mapstructure:"registry_path" yaml:"registry_path" validate:"required"`

	// Watch reloads the access control core when either file is edited
	// by another process.
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// ApplyDefaults fills missing paths relative to dir.
func (c *Config) ApplyDefaults(dir string) {
	if c.PrimaryPath == "" {
		c.PrimaryPath = filepath.Join(dir, DefaultPrimaryFile)
	}
	if c.RegistryPath == "" {
		c.RegistryPath = filepath.Join(dir, DefaultRegistryFile)
	}
}

// Store implements store.Store on two JSON files.
//
// Writers are serialised by an in-process mutex. Two processes writing the
// same files are not coordinated.
type Store struct {
	primaryPath  string
	registryPath string

	mu     sync.Mutex
	closed bool

	// known holds, per path, the bytes this store last wrote or the watcher
	// last observed. Plain reads never touch it, so an external edit stays
	// visible to the watcher until it has been reported.
	knownMu sync.Mutex
	known   map[string][]byte

	// rename is os.Rename; tests replace it to inject failures.
	rename func(oldpath, newpath string) error
}

var _ store.Store = (*Store)(nil)

// New creates a file store. Parent directories are created if missing; the
// files themselves are created on first write.
func New(cfg Config) (*Store, error) {
	if cfg.PrimaryPath == "" || cfg.RegistryPath == "" {
		return nil, fmt.Errorf("file store requires primary_path and registry_path")
	}
	if filepath.Clean(cfg.PrimaryPath) == filepath.Clean(cfg.RegistryPath) {
		return nil, fmt.Errorf("primary_path and registry_path must differ")
	}

	for _, p := range []string{cfg.PrimaryPath, cfg.RegistryPath} {
		if err := os.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
			return nil, fmt.Errorf("failed to create document directory: %w", err)
		}
	}

	return &Store{
		primaryPath:  cfg.PrimaryPath,
		registryPath: cfg.RegistryPath,
		known:        make(map[string][]byte),
		rename:       os.Rename,
	}, nil
}

// PrimaryPath returns the primary document path.
func (s *Store) PrimaryPath() string { return s.primaryPath }

// RegistryPath returns the registry document path.
func (s *Store) RegistryPath() string { return s.registryPath }

func (s *Store) LoadPrimary(ctx context.Context) (*models.PrimaryConfig, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	data, _, err := s.read(s.primaryPath)
	if err != nil {
		return nil, err
	}
	return store.DecodePrimary(data)
}

func (s *Store) LoadRegistry(ctx context.Context) (*models.UserRegistry, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	data, _, err := s.read(s.registryPath)
	if err != nil {
		return nil, err
	}
	return store.DecodeRegistry(data)
}

func (s *Store) Load(ctx context.Context) (*store.Documents, error) {
	// Holding the writer lock keeps both reads on the same side of a commit.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	docs, _, err := s.loadLocked()
	return docs, err
}

// snapshot records the on-disk state of both files before a write.
type snapshot struct {
	primary        []byte
	primaryExists  bool
	registry       []byte
	registryExists bool
}

func (s *Store) loadLocked() (*store.Documents, snapshot, error) {
	var snap snapshot
	var err error

	snap.primary, snap.primaryExists, err = s.read(s.primaryPath)
	if err != nil {
		return nil, snap, err
	}
	snap.registry, snap.registryExists, err = s.read(s.registryPath)
	if err != nil {
		return nil, snap, err
	}

	p, err := store.DecodePrimary(snap.primary)
	if err != nil {
		return nil, snap, err
	}
	r, err := store.DecodeRegistry(snap.registry)
	if err != nil {
		return nil, snap, err
	}
	return &store.Documents{Primary: p, Registry: r}, snap, nil
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

	docs, snap, err := s.loadLocked()
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

	if ch.Primary != nil {
		if err := s.write(s.primaryPath, ch.Primary); err != nil {
			return fmt.Errorf("%w: %s: %w", store.ErrPersist, store.DocumentPrimary, err)
		}
	}

	if ch.Registry != nil {
		if err := s.write(s.registryPath, ch.Registry); err != nil {
			writeErr := fmt.Errorf("%w: %s: %w", store.ErrPersist, store.DocumentRegistry, err)
			if ch.Primary == nil {
				return writeErr
			}
			if rbErr := s.restore(s.primaryPath, snap.primary, snap.primaryExists); rbErr != nil {
				logger.Error("Failed to roll back primary document",
					logger.KeyPath, s.primaryPath, logger.Err(rbErr))
				return fmt.Errorf("%w: %w", store.ErrPartialCommit, errors.Join(writeErr, rbErr))
			}
			logger.Warn("Rolled back primary document after registry write failure",
				logger.KeyPath, s.primaryPath, logger.Err(err))
			return writeErr
		}
	}

	logger.Debug("Credential documents committed",
		"primary_changed", ch.Primary != nil,
		"registry_changed", ch.Registry != nil)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// read returns the file contents and whether the file exists.
func (s *Store) read(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, true, nil
}

// write replaces path with data through a synced temporary file.
func (s *Store) write(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanup := func() { _ = os.Remove(tmp) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := s.rename(tmp, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp file: %w", err)
	}

	syncDir(dir)
	s.remember(path, data)
	return nil
}

// restore puts back the previous contents of path, or removes it when it
// did not exist before.
func (s *Store) restore(path string, data []byte, existed bool) error {
	if !existed {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		s.remember(path, nil)
		return nil
	}
	return s.write(path, data)
}

func (s *Store) remember(path string, data []byte) {
	s.knownMu.Lock()
	defer s.knownMu.Unlock()
	if data == nil {
		delete(s.known, path)
		return
	}
	s.known[path] = append([]byte(nil), data...)
}

// syncDir flushes directory metadata so a rename survives a crash.
// Not every platform supports fsync on directories; errors are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
