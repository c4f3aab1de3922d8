// Package oauth runs the authorization-code login against the providers the
// backend is configured for.
package oauth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/internal/session"
	"github.com/p-blackswan/kubejit/pkg/statestore"
)

// Provider authorize endpoints.
const (
	GitHubAuthorizeURL = "https://github.com/login/oauth/authorize"
	GoogleAuthorizeURL = "https://accounts.google.com/o/oauth2/auth"
)

var (
	githubScopes = []string{"read:user", "user:email"}
	oidcScopes   = []string{"openid", "email", "profile"}
)

// Backend is the subset of the API client used by the login flow.
type Backend interface {
	ProviderConfig(ctx context.Context) (*models.ProviderConfig, error)
	Callback(ctx context.Context, provider models.Provider, code string) (*models.LoginResponse, error)
}

// Flow performs one login: fetch provider config, send the user to the
// provider, exchange the returned code.
type Flow struct {
	backend Backend
	store   statestore.Store
	logger  zerolog.Logger
}

// NewFlow creates a login flow.
func NewFlow(backend Backend, store statestore.Store, logger zerolog.Logger) *Flow {
	return &Flow{
		backend: backend,
		store:   store,
		logger:  logger.With().Str("component", "oauth").Logger(),
	}
}

// FetchProviderConfig asks the backend which provider is active and
// remembers it as the login method.
func (f *Flow) FetchProviderConfig(ctx context.Context) (*models.ProviderConfig, error) {
	cfg, err := f.backend.ProviderConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := f.store.Set(ctx, session.KeyLoginMethod, string(cfg.Provider)); err != nil {
		return nil, fmt.Errorf("persisting login method: %w", err)
	}
	f.logger.Debug().Str("provider", string(cfg.Provider)).Str("redirect_uri", cfg.RedirectURI).Msg("provider config loaded")
	return cfg, nil
}

// AuthorizeURL builds the provider's authorize URL. The state parameter
// carries the provider name so the callback knows which backend route to
// exchange the code with.
func AuthorizeURL(cfg *models.ProviderConfig) (string, error) {
	if cfg == nil || cfg.ClientID == "" || cfg.RedirectURI == "" {
		return "", fmt.Errorf("%w: client id or redirect uri is missing", kerrors.ErrInvalidInput)
	}

	oc := oauth2.Config{
		ClientID:    cfg.ClientID,
		RedirectURL: cfg.RedirectURI,
	}
	switch cfg.Provider {
	case models.ProviderGitHub:
		oc.Endpoint = oauth2.Endpoint{AuthURL: GitHubAuthorizeURL}
		oc.Scopes = githubScopes
	case models.ProviderGoogle:
		oc.Endpoint = oauth2.Endpoint{AuthURL: GoogleAuthorizeURL}
		oc.Scopes = oidcScopes
	case models.ProviderAzure:
		if cfg.AuthURL == "" {
			return "", fmt.Errorf("%w: azure requires auth_url", kerrors.ErrInvalidInput)
		}
		oc.Endpoint = oauth2.Endpoint{AuthURL: cfg.AuthURL}
		oc.Scopes = oidcScopes
	default:
		return "", fmt.Errorf("%w: unsupported provider %q", kerrors.ErrInvalidInput, cfg.Provider)
	}
	return oc.AuthCodeURL(string(cfg.Provider)), nil
}

// Callback is what the provider redirected back with.
type Callback struct {
	Code  string
	State string
	// Error is the provider's error parameter, e.g. access_denied.
	Error string
}

// ParseCallback extracts code and state from the URL the browser landed on.
// A bare query string is accepted too.
func ParseCallback(raw string) (Callback, error) {
	raw = strings.TrimSpace(raw)
	query := raw
	if u, err := url.Parse(raw); err == nil && (u.Scheme != "" || strings.HasPrefix(raw, "/")) {
		query = u.RawQuery
	}
	query = strings.TrimPrefix(query, "?")

	values, err := url.ParseQuery(query)
	if err != nil {
		return Callback{}, fmt.Errorf("%w: %v", kerrors.ErrInvalidInput, err)
	}
	cb := Callback{
		Code:  values.Get("code"),
		State: values.Get("state"),
		Error: values.Get("error"),
	}
	return cb, cb.Validate()
}

// Validate reports whether the callback can be exchanged.
func (cb Callback) Validate() error {
	if cb.Error != "" {
		return fmt.Errorf("%w: provider returned %s", kerrors.ErrInvalidInput, cb.Error)
	}
	if cb.Code == "" || cb.State == "" {
		return fmt.Errorf("%w: callback needs both code and state", kerrors.ErrInvalidInput)
	}
	if !models.Provider(cb.State).Valid() {
		return fmt.Errorf("%w: unknown provider %q in state", kerrors.ErrInvalidInput, cb.State)
	}
	return nil
}

// Exchange trades the callback's code for a backend session. It is a single
// attempt.
func (f *Flow) Exchange(ctx context.Context, cb Callback) (models.Provider, *models.LoginResponse, error) {
	if err := cb.Validate(); err != nil {
		return "", nil, err
	}
	provider := models.Provider(cb.State)
	resp, err := f.backend.Callback(ctx, provider, cb.Code)
	if err != nil {
		f.logger.Warn().Err(err).Str("provider", cb.State).Msg("code exchange failed")
		return "", nil, err
	}
	return provider, resp, nil
}
