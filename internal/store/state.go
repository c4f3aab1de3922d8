package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/p-blackswan/kubejit/pkg/statestore"
)

var (
	_ statestore.Store       = (*Store)(nil)
	_ statestore.CookieStore = (*Store)(nil)
)

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", statestore.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys in one transaction.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete: %w", err)
	}
	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// SaveCookies merges cookies into the set stored for host. The read, merge
// and write happen in one transaction.
func (s *Store) SaveCookies(ctx context.Context, host string, cookies []*http.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cookie save: %w", err)
	}
	existing, err := queryCookies(ctx, tx, host)
	if err != nil {
		tx.Rollback()
		return err
	}
	merged := statestore.MergeCookies(existing, cookies)

	if _, err := tx.ExecContext(ctx, `DELETE FROM cookies WHERE host = ?`, host); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to replace cookies: %w", err)
	}
	now := time.Now().UnixMilli()
	for _, c := range merged {
		var expires sql.NullInt64
		if !c.Expires.IsZero() {
			expires = sql.NullInt64{Int64: c.Expires.UnixMilli(), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO cookies (host, name, value, path, expires_at, secure, http_only, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			host, c.Name, c.Value, c.Path, expires, c.Secure, c.HTTPOnly, now,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save cookie %s: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// LoadCookies returns the unexpired cookies stored for host.
func (s *Store) LoadCookies(ctx context.Context, host string) ([]*http.Cookie, error) {
	stored, err := s.storedCookies(ctx, host)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		if c.Expired(now) {
			continue
		}
		out = append(out, c.HTTP())
	}
	return out, nil
}

// ClearCookies removes every cookie stored for host.
func (s *Store) ClearCookies(ctx context.Context, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE host = ?`, host); err != nil {
		return fmt.Errorf("failed to clear cookies: %w", err)
	}
	return nil
}

func (s *Store) storedCookies(ctx context.Context, host string) ([]statestore.StoredCookie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryCookies(ctx, s.db, host)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryCookies(ctx context.Context, q querier, host string) ([]statestore.StoredCookie, error) {
	rows, err := q.QueryContext(ctx, `
	SELECT name, value, path, expires_at, secure, http_only
	FROM cookies WHERE host = ? ORDER BY name`, host)
	if err != nil {
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}
	defer rows.Close()

	var out []statestore.StoredCookie
	for rows.Next() {
		var (
			c       statestore.StoredCookie
			expires sql.NullInt64
		)
		if err := rows.Scan(&c.Name, &c.Value, &c.Path, &expires, &c.Secure, &c.HTTPOnly); err != nil {
			return nil, fmt.Errorf("failed to scan cookie: %w", err)
		}
		if expires.Valid {
			c.Expires = time.UnixMilli(expires.Int64)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
