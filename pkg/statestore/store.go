// Package statestore defines the local persistence used for session markers
// and backend cookies.
package statestore

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var ErrNotFound = errors.New("key not found")

// Store is a small key/value store for session markers.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// CookieStore persists the cookies a backend host has set so a later
// process can resume the same session.
type CookieStore interface {
	SaveCookies(ctx context.Context, host string, cookies []*http.Cookie) error
	LoadCookies(ctx context.Context, host string) ([]*http.Cookie, error)
	ClearCookies(ctx context.Context, host string) error
}

// StoredCookie is the persisted form of an http.Cookie.
type StoredCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// FromHTTP converts c for storage. A positive Max-Age wins over Expires and
// is stored as an absolute expiry.
func FromHTTP(c *http.Cookie) StoredCookie {
	return fromHTTPAt(c, time.Now())
}

func fromHTTPAt(c *http.Cookie, now time.Time) StoredCookie {
	expires := c.Expires
	if c.MaxAge > 0 {
		expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	}
	return StoredCookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Expires:  expires,
		Secure:   c.Secure,
		HTTPOnly: c.HttpOnly,
	}
}

// HTTP converts the stored cookie back to an http.Cookie.
func (s StoredCookie) HTTP() *http.Cookie {
	return &http.Cookie{
		Name:     s.Name,
		Value:    s.Value,
		Path:     s.Path,
		Expires:  s.Expires,
		Secure:   s.Secure,
		HttpOnly: s.HTTPOnly,
	}
}

// Expired reports whether the cookie carried an expiry that has passed.
func (s StoredCookie) Expired(now time.Time) bool {
	return !s.Expires.IsZero() && now.After(s.Expires)
}

// MergeCookies applies update on top of existing: same-name cookies are
// replaced, cookies with MaxAge < 0 or an empty value are removed.
func MergeCookies(existing []StoredCookie, update []*http.Cookie) []StoredCookie {
	byName := make(map[string]int, len(existing))
	out := make([]StoredCookie, 0, len(existing)+len(update))
	for _, c := range existing {
		byName[c.Name] = len(out)
		out = append(out, c)
	}
	var removed map[string]bool
	for _, c := range update {
		if c.MaxAge < 0 || c.Value == "" {
			if removed == nil {
				removed = make(map[string]bool)
			}
			removed[c.Name] = true
			continue
		}
		if i, ok := byName[c.Name]; ok {
			out[i] = FromHTTP(c)
			delete(removed, c.Name)
			continue
		}
		byName[c.Name] = len(out)
		out = append(out, FromHTTP(c))
	}
	if len(removed) == 0 {
		return out
	}
	kept := out[:0]
	for _, c := range out {
		if !removed[c.Name] {
			kept = append(kept, c)
		}
	}
	return kept
}
