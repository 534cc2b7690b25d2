package file

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := New(Config{
		PrimaryPath:  filepath.Join(dir, DefaultPrimaryFile),
		RegistryPath: filepath.Join(dir, DefaultRegistryFile),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestNew_RejectsSamePath(t *testing.T) {
	p := filepath.Join(t.TempDir(), "docs.json")
	_, err := New(Config{PrimaryPath: p, RegistryPath: p})
	assert.Error(t, err)
}

func TestLoad_MissingFilesYieldEmptyDocuments(t *testing.T) {
	s := newTestStore(t)

	docs, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs.Primary.DashboardUser)
	assert.NotNil(t, docs.Registry.Users)
	assert.Empty(t, docs.Registry.Users)
}

func TestUpdate_WritesBothDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(d *store.Documents) error {
		d.Primary.DashboardUser = "admin"
		d.Primary.DashboardPassHash = "$2a$10$hash"
		d.Registry.Users = append(d.Registry.Users, models.UserRecord{
			Username: "admin", Role: models.RoleAdmin, PasswordHash: "$2a$10$hash",
		})
		return nil
	})
	require.NoError(t, err)

	p, err := s.LoadPrimary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin", p.DashboardUser)

	r, err := s.LoadRegistry(ctx)
	require.NoError(t, err)
	require.Len(t, r.Users, 1)
	assert.Equal(t, models.RoleAdmin, r.Users[0].Role)

	info, err := os.Stat(s.PrimaryPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
}

func TestUpdate_NoChangeDoesNotWrite(t *testing.T) {
	s := newTestStore(t)

	err := s.Update(context.Background(), func(d *store.Documents) error { return nil })
	require.NoError(t, err)

	_, err = os.Stat(s.PrimaryPath())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestUpdate_CallbackErrorAborts(t *testing.T) {
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.Update(context.Background(), func(d *store.Documents) error {
		d.Primary.DashboardUser = "admin"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.LoadPrimary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, p.DashboardUser)
}

func TestUpdate_PreservesForeignFields(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.PrimaryPath(),
		[]byte(`{"dashboard_user":"admin","dashboard_pass":"Secret1!","smtp":{"host":"mail"}}`), 0600))

	err := s.Update(context.Background(), func(d *store.Documents) error {
		d.Primary.DashboardPass = ""
		d.Primary.DashboardPassHash = "$2a$10$hash"
		return nil
	})
	require.NoError(t, err)

	data, err := os.ReadFile(s.PrimaryPath())
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `{"host":"mail"}`, string(raw["smtp"]))
	assert.NotContains(t, raw, "dashboard_pass")
}

func TestUpdate_RollsBackPrimaryWhenRegistryWriteFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(d *store.Documents) error {
		d.Primary.DashboardUser = "admin"
		d.Primary.DashboardPassHash = "old"
		return nil
	}))

	s.rename = func(oldpath, newpath string) error {
		if newpath == s.registryPath {
			return errors.New("disk full")
		}
		return os.Rename(oldpath, newpath)
	}

	err := s.Update(ctx, func(d *store.Documents) error {
		d.Primary.DashboardPassHash = "new"
		d.Registry.Users = append(d.Registry.Users, models.UserRecord{Username: "admin", Role: models.RoleAdmin})
		return nil
	})
	require.ErrorIs(t, err, store.ErrPersist)
	assert.NotErrorIs(t, err, store.ErrPartialCommit)

	p, err := s.LoadPrimary(ctx)
	require.NoError(t, err)
	assert.Equal(t, "old", p.DashboardPassHash)

	r, err := s.LoadRegistry(ctx)
	require.NoError(t, err)
	assert.Empty(t, r.Users)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(s.PrimaryPath()), ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestUpdate_RollbackRemovesNewPrimary(t *testing.T) {
	s := newTestStore(t)

	s.rename = func(oldpath, newpath string) error {
		if newpath == s.registryPath {
			return errors.New("disk full")
		}
		return os.Rename(oldpath, newpath)
	}

	err := s.Update(context.Background(), func(d *store.Documents) error {
		d.Primary.DashboardUser = "admin"
		d.Registry.Users = append(d.Registry.Users, models.UserRecord{Username: "admin", Role: models.RoleAdmin})
		return nil
	})
	require.ErrorIs(t, err, store.ErrPersist)

	_, err = os.Stat(s.PrimaryPath())
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestUpdate_ReportsPartialCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(d *store.Documents) error {
		d.Primary.DashboardPassHash = "old"
		return nil
	}))

	primaryWrites := 0
	s.rename = func(oldpath, newpath string) error {
		if newpath == s.registryPath {
			return errors.New("disk full")
		}
		primaryWrites++
		if primaryWrites > 1 {
			return errors.New("disk full")
		}
		return os.Rename(oldpath, newpath)
	}

	err := s.Update(ctx, func(d *store.Documents) error {
		d.Primary.DashboardPassHash = "new"
		d.Registry.Users = append(d.Registry.Users, models.UserRecord{Username: "admin", Role: models.RoleAdmin})
		return nil
	})
	assert.ErrorIs(t, err, store.ErrPartialCommit)
	assert.ErrorIs(t, err, store.ErrPersist)
}

func TestLoad_CorruptDocument(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.RegistryPath(), []byte(`{"users": [`), 0600))

	_, err := s.LoadRegistry(context.Background())
	assert.ErrorIs(t, err, store.ErrCorrupt)

	err = s.Update(context.Background(), func(d *store.Documents) error { return nil })
	assert.ErrorIs(t, err, store.ErrCorrupt)
}

func TestClosedStore(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, s.Update(context.Background(), func(*store.Documents) error { return nil }), store.ErrClosed)
}

func TestWatch_IgnoresOwnWritesAndReportsExternalEdits(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Update(ctx, func(d *store.Documents) error {
		d.Primary.DashboardUser = "admin"
		return nil
	}))
	changes := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, 20*time.Millisecond, func() { changes <- struct{}{} })
	}()

	// Give the watcher time to register the directories.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, s.Update(ctx, func(d *store.Documents) error {
		d.Primary.DashboardUser = "root"
		return nil
	}))

	select {
	case <-changes:
		t.Fatal("own write reported as external change")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, os.WriteFile(s.RegistryPath(),
		[]byte(`{"users":[{"username":"bob","role":"viewer"}]}`), 0600))

	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("external edit not reported")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_ReadDuringDebounceKeepsExternalEdit(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Update(ctx, func(d *store.Documents) error {
		d.Primary.DashboardUser = "admin"
		return nil
	}))

	changes := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, 300*time.Millisecond, func() { changes <- struct{}{} })
	}()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(s.PrimaryPath(), []byte(`{"dashboard_user":"admin"}`), 0600))

	// Readers serving requests must not hide the edit from the watcher.
	_, err := s.Load(ctx)
	require.NoError(t, err)
	_, err = s.LoadPrimary(ctx)
	require.NoError(t, err)

	select {
	case <-changes:
	case <-time.After(3 * time.Second):
		t.Fatal("external edit followed by a read was not reported")
	}

	// The edit is reported once.
	select {
	case <-changes:
		t.Fatal("external edit reported twice")
	case <-time.After(500 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
}
