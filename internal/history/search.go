// Package history searches past access requests.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/kubejit/internal/api"
	"github.com/p-blackswan/kubejit/internal/banner"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
)

const (
	MaxLimit           = 20
	MaxPrivilegedLimit = 100
	DefaultLimit       = 20

	FetchError = "Error fetching requests. Please try again."
)

// Params are the user-supplied search filters.
type Params struct {
	UserID   string
	Username string
	Start    time.Time
	End      time.Time
	// Limit 0 means DefaultLimit.
	Limit int
}

// MaxLimitFor returns the largest limit perms may ask for.
func MaxLimitFor(perms models.PermissionSet) int {
	if perms.CanQueryAnyUser() {
		return MaxPrivilegedLimit
	}
	return MaxLimit
}

// ClampLimit brings limit into [1, MaxLimitFor(perms)].
func ClampLimit(limit int, perms models.PermissionSet) int {
	ceiling := MaxLimitFor(perms)
	switch {
	case limit == 0:
		return min(DefaultLimit, ceiling)
	case limit < 1:
		return 1
	case limit > ceiling:
		return ceiling
	}
	return limit
}

// Resolve turns params into the backend query. Users who may not query
// others are pinned to their own id.
func Resolve(p Params, self *models.UserIdentity, perms models.PermissionSet) (api.HistoryQuery, error) {
	if !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start) {
		return api.HistoryQuery{}, fmt.Errorf("%w: end date is before start date", kerrors.ErrInvalidInput)
	}
	q := api.HistoryQuery{
		Limit: ClampLimit(p.Limit, perms),
		Start: p.Start,
		End:   p.End,
	}
	if perms.CanQueryAnyUser() && (p.UserID != "" || p.Username != "") {
		q.UserID = p.UserID
		q.Username = p.Username
		return q, nil
	}
	if self == nil || self.ID == "" {
		return api.HistoryQuery{}, fmt.Errorf("%w: no signed-in user", kerrors.ErrUnauthorized)
	}
	q.UserID = self.ID
	return q, nil
}

// Backend is the subset of the API client a search needs.
type Backend interface {
	History(ctx context.Context, q api.HistoryQuery) ([]models.AccessRequest, error)
}

// Search runs history queries for one user.
type Search struct {
	backend Backend
	banners *banner.Board
	logger  zerolog.Logger
}

// NewSearch creates a search. Banners may be nil.
func NewSearch(backend Backend, banners *banner.Board, logger zerolog.Logger) *Search {
	return &Search{
		backend: backend,
		banners: banners,
		logger:  logger.With().Str("component", "history").Logger(),
	}
}

// Run executes the search and returns the rows as a table.
func (s *Search) Run(ctx context.Context, p Params, self *models.UserIdentity, perms models.PermissionSet) (*Table, error) {
	q, err := Resolve(p, self, perms)
	if err != nil {
		return nil, err
	}
	rows, err := s.backend.History(ctx, q)
	if err != nil {
		s.logger.Warn().Err(err).Msg("history search failed")
		if s.banners != nil {
			s.banners.Show(banner.Error, FetchError, 0)
		}
		return nil, err
	}
	if s.banners != nil {
		s.banners.Dismiss(banner.Error)
	}
	s.logger.Debug().Int("count", len(rows)).Int("limit", q.Limit).Str("user_id", q.UserID).Msg("history loaded")
	return NewTable(rows), nil
}
