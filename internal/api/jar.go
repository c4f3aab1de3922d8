package api

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/kubejit/pkg/statestore"
)

// PersistentJar is an http.CookieJar whose cookies for the backend host are
// mirrored into a statestore.CookieStore.
type PersistentJar struct {
	mu     sync.RWMutex
	inner  *cookiejar.Jar
	store  statestore.CookieStore
	root   *url.URL
	logger zerolog.Logger
}

// NewPersistentJar creates a jar seeded with the cookies previously saved
// for root's host.
func NewPersistentJar(ctx context.Context, store statestore.CookieStore, root string, logger zerolog.Logger) (*PersistentJar, error) {
	u, err := url.Parse(root)
	if err != nil {
		return nil, err
	}
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	j := &PersistentJar{
		inner:  inner,
		store:  store,
		root:   u,
		logger: logger.With().Str("component", "cookiejar").Logger(),
	}

	saved, err := store.LoadCookies(ctx, u.Host)
	if err != nil {
		return nil, err
	}
	if len(saved) > 0 {
		inner.SetCookies(u, saved)
		j.logger.Debug().Int("count", len(saved)).Str("host", u.Host).Msg("restored session cookies")
	}
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	inner := j.inner
	j.mu.RUnlock()

	inner.SetCookies(u, cookies)
	if u.Host != j.root.Host || len(cookies) == 0 {
		return
	}
	if err := j.store.SaveCookies(context.Background(), u.Host, cookies); err != nil {
		j.logger.Warn().Err(err).Str("host", u.Host).Msg("failed to persist cookies")
	}
}

// Cookies implements http.CookieJar.
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner.Cookies(u)
}

// Clear drops every cookie held for the backend host, in memory and on disk.
func (j *PersistentJar) Clear(ctx context.Context) error {
	fresh, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.inner = fresh
	j.mu.Unlock()
	return j.store.ClearCookies(ctx, j.root.Host)
}
