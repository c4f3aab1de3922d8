// Package session owns the client's authentication state machine.
//
// A session starts in Bootstrapping, moves to Loading when a persisted expiry
// marker is still in the future, and settles in Authenticated or
// LoginRequired. Any 401 seen by the API client ends the session through
// Expire.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/metrics"
	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/pkg/statestore"
)

// Persisted marker keys.
const (
	KeyTokenExpiry = "tokenExpiry"
	KeyLoginMethod = "loginMethod"
)

// State is a session lifecycle state.
type State int

const (
	Bootstrapping State = iota
	Loading
	Authenticated
	LoginRequired
)

func (s State) String() string {
	switch s {
	case Bootstrapping:
		return "bootstrapping"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case LoginRequired:
		return "login_required"
	default:
		return "unknown"
	}
}

// Backend is the subset of the API client the controller needs.
type Backend interface {
	Profile(ctx context.Context, provider models.Provider) (*models.UserIdentity, error)
	Permissions(ctx context.Context, provider models.Provider) (*models.PermissionSet, error)
	Logout(ctx context.Context) error
}

// Markers are the persisted values that let a later process resume a
// session without re-authenticating.
type Markers struct {
	Expiry   time.Time
	Provider models.Provider
}

// Live reports whether the markers describe an unexpired session.
func (m Markers) Live(now time.Time) bool {
	return !m.Expiry.IsZero() && m.Expiry.After(now) && m.Provider != ""
}

// Observer is notified of every state change.
type Observer func(from, to State)

// Controller drives the session state machine.
type Controller struct {
	backend Backend
	store   statestore.Store
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger

	observers []Observer
	onExpire  []func(ctx context.Context)

	mu       sync.RWMutex
	state    State
	provider models.Provider
	identity *models.UserIdentity
	perms    models.PermissionSet
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithObserver registers a state change observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithMetrics counts transitions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithCleanup registers a hook run whenever the session ends, by sign-out
// or expiry. Used to drop persisted backend cookies.
func WithCleanup(fn func(ctx context.Context)) Option {
	return func(c *Controller) { c.onExpire = append(c.onExpire, fn) }
}

// NewController creates a controller in the Bootstrapping state.
func NewController(backend Backend, store statestore.Store, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		store:   store,
		now:     time.Now,
		logger:  logger.With().Str("component", "session").Logger(),
		state:   Bootstrapping,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Identity returns the signed-in user, or nil.
func (c *Controller) Identity() *models.UserIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

// Permissions returns the resolved permission set. It is the zero value
// until resolution succeeds.
func (c *Controller) Permissions() models.PermissionSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.perms
}

// Provider returns the provider the session was established with.
func (c *Controller) Provider() models.Provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provider
}

// ReadMarkers loads the persisted markers. Missing or unparsable values
// yield zero fields.
func (c *Controller) ReadMarkers(ctx context.Context) (Markers, error) {
	var m Markers
	raw, err := c.store.Get(ctx, KeyTokenExpiry)
	switch {
	case errors.Is(err, statestore.ErrNotFound):
	case err != nil:
		return m, fmt.Errorf("reading %s: %w", KeyTokenExpiry, err)
	default:
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			m.Expiry = t
		} else {
			c.logger.Warn().Str("value", raw).Msg("ignoring unparsable session expiry")
		}
	}

	raw, err = c.store.Get(ctx, KeyLoginMethod)
	switch {
	case errors.Is(err, statestore.ErrNotFound):
	case err != nil:
		return m, fmt.Errorf("reading %s: %w", KeyLoginMethod, err)
	default:
		m.Provider = models.Provider(raw)
	}
	return m, nil
}

// Bootstrap resolves the initial state from persisted markers. It returns
// the state reached; errors are logged and degrade to LoginRequired.
func (c *Controller) Bootstrap(ctx context.Context) State {
	markers, err := c.ReadMarkers(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to read session markers")
		c.transition(LoginRequired)
		return LoginRequired
	}
	if !markers.Live(c.now()) {
		c.logger.Debug().Time("expiry", markers.Expiry).Msg("no live session")
		c.transition(LoginRequired)
		return LoginRequired
	}

	c.mu.Lock()
	c.provider = markers.Provider
	c.mu.Unlock()
	c.transition(Loading)

	user, err := c.backend.Profile(ctx, markers.Provider)
	if err != nil {
		c.logger.Info().Err(err).Msg("session could not be resumed")
		c.fromLoading(LoginRequired, nil)
		return c.State()
	}
	if !c.fromLoading(Authenticated, user) {
		return c.State()
	}
	c.resolvePermissions(ctx)
	return c.State()
}

// CompleteLogin records a successful OAuth exchange and enters
// Authenticated. It fails with ErrUnauthorized when a 401 ends the session
// before permissions are resolved.
func (c *Controller) CompleteLogin(ctx context.Context, provider models.Provider, resp *models.LoginResponse) error {
	if resp == nil || !resp.UserData.Valid() {
		return errors.New("login response carries no identity")
	}
	expiry := c.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	if err := c.store.Set(ctx, KeyTokenExpiry, expiry.Format(time.RFC3339)); err != nil {
		return fmt.Errorf("persisting session expiry: %w", err)
	}
	if err := c.store.Set(ctx, KeyLoginMethod, string(provider)); err != nil {
		return fmt.Errorf("persisting login method: %w", err)
	}

	user := *resp.UserData
	c.mu.Lock()
	c.provider = provider
	c.identity = &user
	c.perms = models.PermissionSet{}
	c.mu.Unlock()
	c.transition(Authenticated)
	c.logger.Info().Str("user", user.Name).Str("provider", string(provider)).Time("expiry", expiry).Msg("signed in")

	c.resolvePermissions(ctx)
	if c.State() != Authenticated {
		return fmt.Errorf("%w: session ended while loading permissions", kerrors.ErrUnauthorized)
	}
	return nil
}

// SignOut clears the markers and backend session. Backend failures are
// logged, never returned; the controller always ends in LoginRequired.
func (c *Controller) SignOut(ctx context.Context) {
	c.clearMarkers(ctx)
	if err := c.backend.Logout(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("backend logout failed")
	}
	c.runCleanup(ctx)
	c.reset()
	c.transition(LoginRequired)
}

// Expire ends a Loading or Authenticated session after a 401. Only the
// first call per session has any effect.
func (c *Controller) Expire() {
	c.mu.Lock()
	if c.state != Loading && c.state != Authenticated {
		c.mu.Unlock()
		return
	}
	from := c.state
	c.state = LoginRequired
	c.identity = nil
	c.perms = models.PermissionSet{}
	c.mu.Unlock()

	ctx := context.Background()
	c.clearMarkers(ctx)
	c.runCleanup(ctx)
	c.logger.Info().Str("from", from.String()).Msg("session expired")
	c.metrics.RecordTransition(LoginRequired.String())
	c.notify(from, LoginRequired)
}

// HandleUnauthorized adapts Expire to the API client's unauthorized hook.
func (c *Controller) HandleUnauthorized(endpoint string) {
	c.logger.Debug().Str("endpoint", endpoint).Msg("unauthorized response")
	c.Expire()
}

func (c *Controller) resolvePermissions(ctx context.Context) {
	provider := c.Provider()
	perms, err := c.backend.Permissions(ctx, provider)
	if err != nil {
		c.logger.Warn().Err(err).Msg("permission resolution failed, continuing without elevated roles")
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Authenticated {
		return
	}
	c.perms = *perms
}

// fromLoading moves out of Loading unless something else (a 401) already
// did. It reports whether the move happened.
func (c *Controller) fromLoading(to State, user *models.UserIdentity) bool {
	c.mu.Lock()
	if c.state != Loading {
		c.mu.Unlock()
		return false
	}
	c.state = to
	if user != nil {
		u := *user
		c.identity = &u
	}
	c.mu.Unlock()
	c.metrics.RecordTransition(to.String())
	c.notify(Loading, to)
	return true
}

func (c *Controller) transition(to State) {
	c.mu.Lock()
	from := c.state
	c.state = to
	c.mu.Unlock()
	if from == to {
		return
	}
	c.metrics.RecordTransition(to.String())
	c.notify(from, to)
}

func (c *Controller) notify(from, to State) {
	for _, o := range c.observers {
		o(from, to)
	}
}

func (c *Controller) reset() {
	c.mu.Lock()
	c.identity = nil
	c.perms = models.PermissionSet{}
	c.provider = ""
	c.mu.Unlock()
}

func (c *Controller) clearMarkers(ctx context.Context) {
	if err := c.store.Delete(ctx, KeyTokenExpiry, KeyLoginMethod); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear session markers")
	}
}

func (c *Controller) runCleanup(ctx context.Context) {
	for _, fn := range c.onExpire {
		fn(ctx)
	}
}
