// Package admin exposes destructive housekeeping actions.
package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/kubejit/internal/banner"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
)

const (
	ResultBannerTTL = 4 * time.Second
	ErrorBannerTTL  = 5 * time.Second

	CleanupError = "Error cleaning expired requests."
)

// Backend is the subset of the API client admin actions need.
type Backend interface {
	CleanExpired(ctx context.Context) (*models.CleanupResult, error)
}

// Actions runs admin operations and reports them on a banner board.
type Actions struct {
	backend Backend
	banners *banner.Board
	logger  zerolog.Logger
}

// NewActions creates the admin actions. Banners may be nil.
func NewActions(backend Backend, banners *banner.Board, logger zerolog.Logger) *Actions {
	if banners == nil {
		banners = banner.NewBoard(nil)
	}
	return &Actions{
		backend: backend,
		banners: banners,
		logger:  logger.With().Str("component", "admin").Logger(),
	}
}

// Banners returns the board results are shown on.
func (a *Actions) Banners() *banner.Board { return a.banners }

// ConfirmPrompt is the question asked before CleanExpired runs.
const ConfirmPrompt = "Delete all expired requests that were never approved? This cannot be undone."

// CleanExpired deletes expired, never-approved requests. It does nothing
// unless confirmed.
func (a *Actions) CleanExpired(ctx context.Context, confirmed bool) (string, error) {
	if !confirmed {
		return "", kerrors.ErrNotConfirmed
	}
	res, err := a.backend.CleanExpired(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("cleanup failed")
		a.banners.Show(banner.Error, CleanupError, ErrorBannerTTL)
		return "", err
	}
	text := FormatResult(res)
	a.banners.Dismiss(banner.Error)
	a.banners.Show(banner.Success, text, ResultBannerTTL)
	a.logger.Info().Int64("deleted", res.Deleted).Msg("expired requests cleaned")
	return text, nil
}

// FormatResult renders a cleanup result as "<message>. Deleted: <n>".
func FormatResult(res *models.CleanupResult) string {
	return fmt.Sprintf("%s. Deleted: %d", res.Message, res.Deleted)
}
