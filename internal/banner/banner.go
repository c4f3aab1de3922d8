// Package banner holds the dismissible success/error messages shown after
// an action completes.
package banner

import (
	"sync"
	"time"
)

// Kind distinguishes success from error banners.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Banner is a message that disappears after its TTL or when dismissed. A
// zero ExpiresAt never expires.
type Banner struct {
	Kind      Kind
	Text      string
	ExpiresAt time.Time
	dismissed bool
}

// Active reports whether the banner should still be shown at now.
func (b *Banner) Active(now time.Time) bool {
	if b == nil || b.dismissed {
		return false
	}
	return b.ExpiresAt.IsZero() || now.Before(b.ExpiresAt)
}

// Board holds at most one banner per kind, as the shell panes do.
type Board struct {
	mu      sync.Mutex
	now     func() time.Time
	banners map[Kind]*Banner
}

// NewBoard creates an empty board. A nil clock means time.Now.
func NewBoard(now func() time.Time) *Board {
	if now == nil {
		now = time.Now
	}
	return &Board{now: now, banners: make(map[Kind]*Banner)}
}

// Show replaces the banner of the given kind. A ttl of zero keeps it until
// dismissed.
func (b *Board) Show(kind Kind, text string, ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	nb := &Banner{Kind: kind, Text: text}
	if ttl > 0 {
		nb.ExpiresAt = b.now().Add(ttl)
	}
	b.banners[kind] = nb
}

// Dismiss hides the banner of the given kind.
func (b *Board) Dismiss(kind Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.banners[kind]; ok {
		cur.dismissed = true
	}
}

// Current returns the active banner of the given kind, or nil.
func (b *Board) Current(kind Kind) *Banner {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.banners[kind]
	if !cur.Active(b.now()) {
		return nil
	}
	cp := *cur
	return &cp
}

// Active returns every active banner, success first.
func (b *Board) Active() []Banner {
	var out []Banner
	for _, kind := range []Kind{Success, Error} {
		if cur := b.Current(kind); cur != nil {
			out = append(out, *cur)
		}
	}
	return out
}
