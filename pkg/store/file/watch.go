package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/warden/internal/logger"
)

// DefaultWatchDebounce is how long the watcher waits for a burst of events
// to settle before calling the change handler.
const DefaultWatchDebounce = 250 * time.Millisecond

// Watch calls onChange whenever either document is modified by someone other
// than this store. It blocks until ctx is cancelled.
//
// The parent directories are watched rather than the files, because editors
// and other writers commonly replace a file by renaming over it.
func (s *Store) Watch(ctx context.Context, debounce time.Duration, onChange func()) error {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dirs := map[string]struct{}{
		filepath.Dir(s.primaryPath):  {},
		filepath.Dir(s.registryPath): {},
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	targets := map[string]struct{}{
		filepath.Clean(s.primaryPath):  {},
		filepath.Clean(s.registryPath): {},
	}

	s.observe(false)

	logger.Info("Watching credential documents",
		"primary", s.primaryPath, "registry", s.registryPath)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if _, ok := targets[filepath.Clean(event.Name)]; !ok {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			timer.Reset(debounce)

		case <-timer.C:
			if s.observe(true) {
				logger.Info("Credential documents changed on disk, reloading")
				onChange()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Credential document watcher error", logger.Err(err))
		}
	}
}

// observe compares both files with the bytes this store last wrote or
// observed, records what is on disk now and reports whether anything
// differed. With report false it only fills in paths not seen yet.
func (s *Store) observe(report bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.knownMu.Lock()
	defer s.knownMu.Unlock()

	changed := false
	for _, path := range []string{s.primaryPath, s.registryPath} {
		prev, seen := s.known[path]
		if !report && seen {
			continue
		}

		data, err := os.ReadFile(path)
		exists := err == nil
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to read credential document", logger.KeyPath, path, logger.Err(err))
			continue
		}

		if exists != seen || !bytes.Equal(prev, data) {
			changed = true
		}
		if exists {
			s.known[path] = data
		} else {
			delete(s.known, path)
		}
	}
	return report && changed
}
