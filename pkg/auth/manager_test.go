package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/warden/pkg/models"
	"github.com/marmos91/warden/pkg/store"
	"github.com/marmos91/warden/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedAttempt struct {
	method, result string
	fallback       bool
}

type fakeAuthMetrics struct {
	mu       sync.Mutex
	attempts []recordedAttempt
	rebuilds int
	failures int
	primary  string
}

func (f *fakeAuthMetrics) RecordAttempt(method, result string, fallback bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, recordedAttempt{method, result, fallback})
}

func (f *fakeAuthMetrics) RecordRebuild(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.failures++
		return
	}
	f.rebuilds++
}

func (f *fakeAuthMetrics) SetPrimaryMethod(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.primary = method
}

type managerFixture struct {
	store   *memory.Store
	hasher  *countingHasher
	dir     *fakeDirectory
	host    *fakeHostLogon
	metrics *fakeAuthMetrics
	mgr     *Manager
}

func newManagerFixture(t *testing.T, primary *models.PrimaryConfig) *managerFixture {
	t.Helper()

	reg := &models.UserRegistry{Users: []models.UserRecord{
		{Username: "admin", Role: models.RoleAdmin},
		{Username: "alice", Role: models.RoleOperator, PasswordHash: "h:alice-local"},
	}}
	st, err := memory.NewWithDocuments(primary, reg)
	require.NoError(t, err)

	f := &managerFixture{
		store:  st,
		hasher: &countingHasher{},
		dir: &fakeDirectory{passwords: map[string]string{
			"uid=alice,dc=example,dc=com": "alice-ldap",
		}},
		host:    &fakeHostLogon{available: true, accounts: map[string]string{`CORP\alice`: "alice-host"}},
		metrics: &fakeAuthMetrics{},
	}
	f.mgr, err = NewManager(context.Background(), st, Options{
		Hasher:           f.hasher,
		HostLogon:        f.host,
		DirectoryOptions: []DirectoryOption{WithDirectoryDialer(f.dir.dialer())},
		Metrics:          f.metrics,
	})
	require.NoError(t, err)
	return f
}

func directoryPrimary(fallback bool) *models.PrimaryConfig {
	return &models.PrimaryConfig{
		DashboardUser:       "admin",
		DashboardPassHash:   "h:admin-pw",
		AuthMethod:          models.MethodDirectory,
		AuthFallbackEnabled: fallback,
		LDAPConfig: models.DirectoryConfig{
			Server: "ldap.example.com",
			BaseDN: "dc=example,dc=com",
		},
	}
}

func TestManager_LocalPrimary(t *testing.T) {
	f := newManagerFixture(t, &models.PrimaryConfig{DashboardUser: "admin", DashboardPassHash: "h:admin-pw"})
	ctx := context.Background()

	assert.Equal(t, models.MethodLocal, f.mgr.Config().PrimaryMethod)
	assert.True(t, f.mgr.Authenticate(ctx, "admin", "admin-pw"))
	assert.True(t, f.mgr.Authenticate(ctx, "alice", "alice-local"))

	f.hasher.verifies.Store(0)
	assert.False(t, f.mgr.Authenticate(ctx, "admin", "wrong"))
	assert.Equal(t, int32(1), f.hasher.verifies.Load(), "local primary is never retried as fallback")
}

func TestManager_LocalPrimaryIgnoresFallbackFlag(t *testing.T) {
	f := newManagerFixture(t, &models.PrimaryConfig{
		DashboardUser:       "admin",
		DashboardPassHash:   "h:admin-pw",
		AuthFallbackEnabled: true,
	})

	f.hasher.verifies.Store(0)
	res := f.mgr.Attempt(context.Background(), "admin", "wrong")
	assert.False(t, res.OK)
	assert.False(t, res.Fallback)
	assert.Equal(t, int32(1), f.hasher.verifies.Load())
}

func TestManager_DirectoryWithFallback(t *testing.T) {
	f := newManagerFixture(t, directoryPrimary(true))
	ctx := context.Background()

	res := f.mgr.Attempt(ctx, "alice", "alice-ldap")
	assert.True(t, res.OK)
	assert.Equal(t, models.MethodDirectory, res.Method)
	assert.False(t, res.Fallback)

	res = f.mgr.Attempt(ctx, "admin", "admin-pw")
	assert.True(t, res.OK, "directory rejects, local fallback accepts")
	assert.Equal(t, models.MethodLocal, res.Method)
	assert.True(t, res.Fallback)

	res = f.mgr.Attempt(ctx, "alice", "nope")
	assert.False(t, res.OK)
	assert.True(t, res.Fallback)
}

func TestManager_DirectoryWithoutFallback(t *testing.T) {
	f := newManagerFixture(t, directoryPrimary(false))

	f.hasher.verifies.Store(0)
	assert.False(t, f.mgr.Authenticate(context.Background(), "admin", "admin-pw"))
	assert.Zero(t, f.hasher.verifies.Load(), "local is never consulted without fallback")
}

func TestManager_UnavailablePrimary(t *testing.T) {
	cfg := directoryPrimary(true)
	cfg.LDAPConfig = models.DirectoryConfig{}
	f := newManagerFixture(t, cfg)

	res := f.mgr.Attempt(context.Background(), "admin", "admin-pw")
	assert.True(t, res.OK)
	assert.True(t, res.Fallback)
	assert.True(t, res.Unavailable)
	assert.Empty(t, f.dir.url, "an unavailable provider is never dialled")

	cfg.AuthFallbackEnabled = false
	f = newManagerFixture(t, cfg)
	res = f.mgr.Attempt(context.Background(), "admin", "admin-pw")
	assert.False(t, res.OK)
	assert.True(t, res.Unavailable)
	assert.Equal(t, "unavailable", res.label())
}

func TestManager_HostPrimary(t *testing.T) {
	f := newManagerFixture(t, &models.PrimaryConfig{
		DashboardUser:     "admin",
		DashboardPassHash: "h:admin-pw",
		AuthMethod:        "windows",
		WindowsAuthConfig: models.HostConfig{Domain: "CORP"},
	})

	assert.Equal(t, models.MethodHost, f.mgr.Config().PrimaryMethod)
	assert.True(t, f.mgr.Authenticate(context.Background(), "alice", "alice-host"))
	assert.False(t, f.mgr.Authenticate(context.Background(), "admin", "admin-pw"))
}

func TestManager_UnknownMethodFailsClosed(t *testing.T) {
	f := newManagerFixture(t, &models.PrimaryConfig{
		DashboardUser:     "admin",
		DashboardPassHash: "h:admin-pw",
		AuthMethod:        "kerberos",
	})

	assert.False(t, f.mgr.Authenticate(context.Background(), "admin", "admin-pw"))
}

func TestManager_MutateRebuildsBeforeReturning(t *testing.T) {
	f := newManagerFixture(t, &models.PrimaryConfig{DashboardUser: "admin", DashboardPassHash: "h:admin-pw"})
	ctx := context.Background()

	require.True(t, f.mgr.Authenticate(ctx, "admin", "admin-pw"))

	err := f.mgr.Mutate(ctx, func(docs *store.Documents) error {
		docs.Primary.DashboardPassHash = "h:rotated"
		docs.Primary.SetAuthConfig(directoryPrimary(true).AuthConfig())
		return nil
	})
	require.NoError(t, err)

	assert.False(t, f.mgr.Authenticate(ctx, "admin", "admin-pw"))
	assert.True(t, f.mgr.Authenticate(ctx, "admin", "rotated"))
	assert.Equal(t, models.MethodDirectory, f.mgr.Config().PrimaryMethod)
	assert.Equal(t, "h:rotated", f.mgr.PrimaryCredential().PasswordHash)
	assert.Equal(t, "directory", f.metrics.primary)
}

func TestManager_MutateFailureKeepsStoreState(t *testing.T) {
	f := newManagerFixture(t, &models.PrimaryConfig{DashboardUser: "admin", DashboardPassHash: "h:admin-pw"})
	ctx := context.Background()

	f.store.FailWrites(func(document string) error {
		if document == store.DocumentRegistry {
			return errors.New("disk full")
		}
		return nil
	})

	err := f.mgr.Mutate(ctx, func(docs *store.Documents) error {
		docs.Primary.DashboardPassHash = "h:new"
		docs.Registry.Users = append(docs.Registry.Users, models.UserRecord{Username: "bob", Role: models.RoleViewer})
		return nil
	})
	require.ErrorIs(t, err, store.ErrPersist)

	assert.True(t, f.mgr.Authenticate(ctx, "admin", "admin-pw"))
	assert.False(t, f.mgr.Authenticate(ctx, "admin", "new"))
}

func TestManager_MutateCallbackError(t *testing.T) {
	f := newManagerFixture(t, &models.PrimaryConfig{DashboardUser: "admin", DashboardPassHash: "h:admin-pw"})
	boom := errors.New("rejected")

	err := f.mgr.Mutate(context.Background(), func(*store.Documents) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, f.store.Writes())
}

func TestManager_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	f := newManagerFixture(t, &models.PrimaryConfig{DashboardUser: "admin", DashboardPassHash: "h:one"})
	ctx := context.Background()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res := f.mgr.Attempt(ctx, "admin", "one")
				assert.Equal(t, models.MethodLocal, res.Method)
			}
		}()
	}

	for i := 0; i < 20; i++ {
		hash := "h:one"
		if i%2 == 0 {
			hash = "h:two"
		}
		require.NoError(t, f.mgr.Mutate(ctx, func(docs *store.Documents) error {
			docs.Primary.DashboardPassHash = hash
			return nil
		}))
	}
	close(stop)
	wg.Wait()

	assert.True(t, f.mgr.Authenticate(ctx, "admin", "one"))
}

func TestManager_AvailableMethods(t *testing.T) {
	f := newManagerFixture(t, directoryPrimary(false))
	assert.Equal(t, []models.Method{models.MethodLocal, models.MethodDirectory, models.MethodHost}, f.mgr.AvailableMethods())

	f.host.available = false
	require.NoError(t, f.mgr.Mutate(context.Background(), func(docs *store.Documents) error {
		docs.Primary.LDAPConfig = models.DirectoryConfig{}
		return nil
	}))
	assert.Equal(t, []models.Method{models.MethodLocal}, f.mgr.AvailableMethods())
}

func TestManager_Metrics(t *testing.T) {
	f := newManagerFixture(t, directoryPrimary(true))
	ctx := context.Background()

	f.mgr.Authenticate(ctx, "alice", "alice-ldap")
	f.mgr.Authenticate(ctx, "admin", "wrong")

	f.metrics.mu.Lock()
	defer f.metrics.mu.Unlock()
	require.Len(t, f.metrics.attempts, 2)
	assert.Equal(t, recordedAttempt{"directory", "success", false}, f.metrics.attempts[0])
	assert.Equal(t, recordedAttempt{"local", "failure", true}, f.metrics.attempts[1])
	assert.Equal(t, 1, f.metrics.rebuilds)
}

func TestManager_RebuildErrorKeepsSnapshot(t *testing.T) {
	f := newManagerFixture(t, &models.PrimaryConfig{DashboardUser: "admin", DashboardPassHash: "h:admin-pw"})
	require.NoError(t, f.store.Close())

	assert.ErrorIs(t, f.mgr.Rebuild(context.Background()), store.ErrClosed)
	assert.Equal(t, "admin", f.mgr.PrimaryCredential().CanonicalUsername)
	assert.Equal(t, 1, f.metrics.failures)
}
