// Package approval lists pending access requests and applies batch
// approve/reject decisions to a selection of them.
package approval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/kubejit/internal/banner"
	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/metrics"
	"github.com/p-blackswan/kubejit/internal/models"
)

const (
	SuccessBannerTTL = 3 * time.Second

	FallbackDecideError = "Error approving/rejecting requests. Please try again."
	FetchError          = "Error fetching pending requests. Please try again."
)

// Backend is the subset of the API client the workflow needs.
type Backend interface {
	PendingApprovals(ctx context.Context) ([]models.PendingRequest, error)
	Decide(ctx context.Context, req *models.DecisionRequest) (string, error)
}

// Workflow holds the pending list and the current selection.
type Workflow struct {
	backend  Backend
	approver models.UserIdentity
	banners  *banner.Board
	metrics  *metrics.Metrics
	logger   zerolog.Logger

	refreshing atomic.Bool

	mu       sync.Mutex
	pending  []models.PendingRequest
	selected map[uint]struct{}
}

// NewWorkflow creates a workflow acting as approver.
func NewWorkflow(backend Backend, approver models.UserIdentity, banners *banner.Board, m *metrics.Metrics, logger zerolog.Logger) *Workflow {
	if banners == nil {
		banners = banner.NewBoard(nil)
	}
	return &Workflow{
		backend:  backend,
		approver: approver,
		banners:  banners,
		metrics:  m,
		logger:   logger.With().Str("component", "approval").Logger(),
		selected: make(map[uint]struct{}),
	}
}

// Banners returns the board the workflow reports to.
func (w *Workflow) Banners() *banner.Board { return w.banners }

// Refreshing reports whether a refresh is in flight.
func (w *Workflow) Refreshing() bool { return w.refreshing.Load() }

// Refresh reloads the pending list. A call made while another is in flight
// returns ErrRefreshInFlight without touching the first.
func (w *Workflow) Refresh(ctx context.Context) error {
	if !w.refreshing.CompareAndSwap(false, true) {
		return kerrors.ErrRefreshInFlight
	}
	defer w.refreshing.Store(false)

	rows, err := w.backend.PendingApprovals(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to fetch pending requests")
		w.banners.Show(banner.Error, FetchError, 0)
		return err
	}

	w.mu.Lock()
	w.pending = rows
	live := make(map[uint]struct{}, len(rows))
	for _, r := range rows {
		live[r.ID] = struct{}{}
	}
	for id := range w.selected {
		if _, ok := live[id]; !ok {
			delete(w.selected, id)
		}
	}
	w.mu.Unlock()

	w.banners.Dismiss(banner.Error)
	w.logger.Debug().Int("count", len(rows)).Msg("pending requests loaded")
	return nil
}

// Pending returns a copy of the pending list.
func (w *Workflow) Pending() []models.PendingRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.PendingRequest(nil), w.pending...)
}

// Toggle flips id's membership in the selection.
func (w *Workflow) Toggle(id uint) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasPending(id) {
		return fmt.Errorf("%w: request %d is not pending", kerrors.ErrInvalidInput, id)
	}
	if _, ok := w.selected[id]; ok {
		delete(w.selected, id)
	} else {
		w.selected[id] = struct{}{}
	}
	return nil
}

// Selected returns the selected ids in ascending order.
func (w *Workflow) Selected() []uint {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selectedIDs()
}

// CanDecide reports whether the approve and reject controls are enabled.
func (w *Workflow) CanDecide() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.selected) > 0
}

// Review renders the confirmation prompt for a decision.
func (w *Workflow) Review(status models.Status) (string, error) {
	if !status.Decision() {
		return "", fmt.Errorf("%w: status %q", kerrors.ErrInvalidInput, status)
	}
	ids := w.Selected()
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: no requests selected", kerrors.ErrInvalidInput)
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	verb := "Approve"
	if status == models.StatusRejected {
		verb = "Reject"
	}
	return fmt.Sprintf("%s %d request(s): %s", verb, len(ids), strings.Join(parts, ", ")), nil
}

// Decide applies status to the whole selection in one call. On success the
// decided requests leave the pending list.
func (w *Workflow) Decide(ctx context.Context, status models.Status, confirmed bool) (string, error) {
	if !confirmed {
		return "", kerrors.ErrNotConfirmed
	}
	if !status.Decision() {
		return "", fmt.Errorf("%w: status %q", kerrors.ErrInvalidInput, status)
	}

	w.mu.Lock()
	batch := make([]models.PendingRequest, 0, len(w.selected))
	for _, r := range w.pending {
		if _, ok := w.selected[r.ID]; ok {
			batch = append(batch, r)
		}
	}
	w.mu.Unlock()
	if len(batch) == 0 {
		return "", fmt.Errorf("%w: no requests selected", kerrors.ErrInvalidInput)
	}

	msg, err := w.backend.Decide(ctx, &models.DecisionRequest{
		Requests:     batch,
		ApproverID:   w.approver.ID,
		ApproverName: w.approver.Name,
		Status:       status,
	})
	if err != nil {
		w.metrics.RecordDecision(string(status), "error")
		w.logger.Warn().Err(err).Str("status", string(status)).Int("count", len(batch)).Msg("decision failed")
		w.banners.Show(banner.Error, kerrors.UserMessage(err, FallbackDecideError), 0)
		return "", err
	}

	decided := make(map[uint]struct{}, len(batch))
	for _, r := range batch {
		decided[r.ID] = struct{}{}
	}
	w.mu.Lock()
	kept := w.pending[:0:0]
	for _, r := range w.pending {
		if _, ok := decided[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	w.pending = kept
	w.selected = make(map[uint]struct{})
	w.mu.Unlock()

	w.metrics.RecordDecision(string(status), "success")
	if msg == "" {
		msg = fmt.Sprintf("%d request(s) %s", len(batch), strings.ToLower(string(status)))
	}
	w.banners.Dismiss(banner.Error)
	w.banners.Show(banner.Success, msg, SuccessBannerTTL)
	w.logger.Info().Str("status", string(status)).Int("count", len(batch)).Msg("decision applied")
	return msg, nil
}

func (w *Workflow) hasPending(id uint) bool {
	for _, r := range w.pending {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (w *Workflow) selectedIDs() []uint {
	ids := make([]uint, 0, len(w.selected))
	for id := range w.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
