package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/kubejit/internal/api"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/pkg/statestore"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu           sync.Mutex
	profile      *models.UserIdentity
	profileErr   error
	perms        *models.PermissionSet
	permsErr     error
	logoutErr    error
	profileCalls int
	permsFor     []models.Provider
	logoutCalls  int
	// onPerms runs inside Permissions, before it answers.
	onPerms func()
}

func (f *fakeBackend) Profile(_ context.Context, _ models.Provider) (*models.UserIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profileCalls++
	return f.profile, f.profileErr
}

func (f *fakeBackend) Permissions(_ context.Context, p models.Provider) (*models.PermissionSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permsFor = append(f.permsFor, p)
	if f.onPerms != nil {
		f.onPerms()
	}
	if f.permsErr != nil {
		return nil, f.permsErr
	}
	if f.perms == nil {
		return &models.PermissionSet{}, nil
	}
	return f.perms, nil
}

func (f *fakeBackend) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return f.logoutErr
}

func newController(t *testing.T, backend Backend, store statestore.Store, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewController(backend, store, zerolog.Nop(), opts...)
}

func seedMarkers(t *testing.T, store statestore.Store, expiry time.Time, provider string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, KeyTokenExpiry, expiry.Format(time.RFC3339)))
	require.NoError(t, store.Set(ctx, KeyLoginMethod, provider))
}

func assertNoMarkers(t *testing.T, store statestore.Store) {
	t.Helper()
	for _, k := range []string{KeyTokenExpiry, KeyLoginMethod} {
		_, err := store.Get(context.Background(), k)
		assert.ErrorIs(t, err, statestore.ErrNotFound, k)
	}
}

func TestBootstrap_LiveMarkersReachAuthenticated(t *testing.T) {
	store := statestore.NewMemoryStore()
	seedMarkers(t, store, now.Add(time.Hour), "github")
	backend := &fakeBackend{
		profile: &models.UserIdentity{ID: "u1", Name: "Ada", Email: "ada@example.com"},
		perms:   &models.PermissionSet{IsApprover: true},
	}

	var seen []State
	c := newController(t, backend, store, WithObserver(func(_, to State) { seen = append(seen, to) }))

	state := c.Bootstrap(context.Background())
	assert.Equal(t, Authenticated, state)
	require.NotNil(t, c.Identity())
	assert.Equal(t, "Ada", c.Identity().Name)
	assert.True(t, c.Permissions().IsApprover)
	assert.Equal(t, []models.Provider{models.ProviderGitHub}, backend.permsFor)
	assert.Equal(t, []State{Loading, Authenticated}, seen)
}

func TestBootstrap_ExpiredOrAbsentMarkersSkipProfileFetch(t *testing.T) {
	tests := []struct {
		name string
		seed func(statestore.Store)
	}{
		{"absent", func(statestore.Store) {}},
		{"past", func(s statestore.Store) { seedMarkers(t, s, now.Add(-time.Minute), "google") }},
		{"unparsable", func(s statestore.Store) {
			s.Set(context.Background(), KeyTokenExpiry, "tomorrow")
			s.Set(context.Background(), KeyLoginMethod, "google")
		}},
		{"no provider", func(s statestore.Store) {
			s.Set(context.Background(), KeyTokenExpiry, now.Add(time.Hour).Format(time.RFC3339))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := statestore.NewMemoryStore()
			tt.seed(store)
			backend := &fakeBackend{profile: &models.UserIdentity{ID: "u1", Name: "Ada"}}
			c := newController(t, backend, store)

			assert.Equal(t, LoginRequired, c.Bootstrap(context.Background()))
			assert.Zero(t, backend.profileCalls)
		})
	}
}

func TestBootstrap_ProfileFailureRequiresLogin(t *testing.T) {
	store := statestore.NewMemoryStore()
	seedMarkers(t, store, now.Add(time.Hour), "github")
	backend := &fakeBackend{profileErr: errors.New("connection refused")}
	c := newController(t, backend, store)

	assert.Equal(t, LoginRequired, c.Bootstrap(context.Background()))
	assert.Nil(t, c.Identity())
	assert.Empty(t, backend.permsFor)
}

func TestBootstrap_PermissionFailureIsNonFatal(t *testing.T) {
	store := statestore.NewMemoryStore()
	seedMarkers(t, store, now.Add(time.Hour), "azure")
	backend := &fakeBackend{
		profile:  &models.UserIdentity{ID: "u1", Name: "Ada"},
		permsErr: errors.New("boom"),
	}
	c := newController(t, backend, store)

	assert.Equal(t, Authenticated, c.Bootstrap(context.Background()))
	assert.Equal(t, models.PermissionSet{}, c.Permissions())
}

func TestCompleteLogin_PersistsMarkers(t *testing.T) {
	store := statestore.NewMemoryStore()
	backend := &fakeBackend{perms: &models.PermissionSet{IsAdmin: true}}
	c := newController(t, backend, store)

	err := c.CompleteLogin(context.Background(), models.ProviderGoogle, &models.LoginResponse{
		UserData:  &models.UserIdentity{ID: "u1", Name: "Ada"},
		ExpiresIn: 3600,
	})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, c.State())
	assert.True(t, c.Permissions().IsAdmin)

	markers, err := c.ReadMarkers(context.Background())
	require.NoError(t, err)
	assert.True(t, now.Add(time.Hour).Equal(markers.Expiry))
	assert.Equal(t, models.ProviderGoogle, markers.Provider)
}

func TestCompleteLogin_UnauthorizedPermissionsEndSession(t *testing.T) {
	store := statestore.NewMemoryStore()
	backend := &fakeBackend{permsErr: errors.New("401 unauthorized")}
	c := newController(t, backend, store)
	backend.onPerms = c.Expire

	err := c.CompleteLogin(context.Background(), models.ProviderGitHub, &models.LoginResponse{
		UserData:  &models.UserIdentity{ID: "u1", Name: "Ada"},
		ExpiresIn: 3600,
	})
	assert.ErrorIs(t, err, kerrors.ErrUnauthorized)
	assert.Equal(t, LoginRequired, c.State())
	assert.Nil(t, c.Identity())
	assertNoMarkers(t, store)
}

func TestCompleteLogin_RejectsMissingIdentity(t *testing.T) {
	c := newController(t, &fakeBackend{}, statestore.NewMemoryStore())
	require.Error(t, c.CompleteLogin(context.Background(), models.ProviderGitHub, &models.LoginResponse{ExpiresIn: 60}))
	assert.Equal(t, Bootstrapping, c.State())
}

func TestSignOut_ClearsMarkersEvenWhenBackendFails(t *testing.T) {
	store := statestore.NewMemoryStore()
	seedMarkers(t, store, now.Add(time.Hour), "github")
	backend := &fakeBackend{
		profile:   &models.UserIdentity{ID: "u1", Name: "Ada"},
		logoutErr: errors.New("502 bad gateway"),
	}
	var cleaned bool
	c := newController(t, backend, store, WithCleanup(func(context.Context) { cleaned = true }))
	require.Equal(t, Authenticated, c.Bootstrap(context.Background()))

	c.SignOut(context.Background())

	assert.Equal(t, LoginRequired, c.State())
	assert.Equal(t, 1, backend.logoutCalls)
	assert.Nil(t, c.Identity())
	assert.True(t, cleaned)
	assertNoMarkers(t, store)
}

func TestExpire_IsIdempotent(t *testing.T) {
	store := statestore.NewMemoryStore()
	seedMarkers(t, store, now.Add(time.Hour), "github")
	backend := &fakeBackend{profile: &models.UserIdentity{ID: "u1", Name: "Ada"}}

	var mu sync.Mutex
	var transitions int
	c := newController(t, backend, store, WithObserver(func(_, to State) {
		if to == LoginRequired {
			mu.Lock()
			transitions++
			mu.Unlock()
		}
	}))
	require.Equal(t, Authenticated, c.Bootstrap(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Expire()
		}()
	}
	wg.Wait()

	assert.Equal(t, LoginRequired, c.State())
	assert.Equal(t, 1, transitions)
	assertNoMarkers(t, store)
}

func TestUnauthorizedFromAnyCallEndsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/kube-jit-api/github/profile":
			w.Write([]byte(`{"id": "u1", "name": "Ada"}`))
		case "/kube-jit-api/permissions":
			w.Write([]byte(`{"isApprover": true}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "Unauthorized"}`))
		}
	}))
	defer server.Close()

	store := statestore.NewMemoryStore()
	seedMarkers(t, store, now.Add(time.Hour), "github")

	var c *Controller
	client := api.NewClient(server.URL+"/kube-jit-api", zerolog.Nop(),
		api.WithHTTPClient(server.Client()),
		api.WithUnauthorizedHandler(func(endpoint string) { c.HandleUnauthorized(endpoint) }),
	)
	c = newController(t, client, store)
	require.Equal(t, Authenticated, c.Bootstrap(context.Background()))

	_, err := client.PendingApprovals(context.Background())
	require.Error(t, err)

	assert.Equal(t, LoginRequired, c.State())
	assertNoMarkers(t, store)
}

func TestUnauthorizedDuringLoading(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := statestore.NewMemoryStore()
	seedMarkers(t, store, now.Add(time.Hour), "google")

	var c *Controller
	client := api.NewClient(server.URL, zerolog.Nop(),
		api.WithHTTPClient(server.Client()),
		api.WithUnauthorizedHandler(func(endpoint string) { c.HandleUnauthorized(endpoint) }),
	)
	var transitions []State
	c = newController(t, client, store, WithObserver(func(_, to State) { transitions = append(transitions, to) }))

	assert.Equal(t, LoginRequired, c.Bootstrap(context.Background()))
	assert.Equal(t, []State{Loading, LoginRequired}, transitions)
	assertNoMarkers(t, store)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "bootstrapping", Bootstrapping.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "login_required", LoginRequired.String())
	assert.Equal(t, "unknown", State(42).String())
}
