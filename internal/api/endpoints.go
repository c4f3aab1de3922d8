package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	kerrors "github.com/p-blackswan/kubejit/internal/errors"
	"github.com/p-blackswan/kubejit/internal/models"
	"github.com/p-blackswan/kubejit/internal/retry"
)

// ProviderConfig fetches the OAuth provider configuration.
func (c *Client) ProviderConfig(ctx context.Context) (*models.ProviderConfig, error) {
	var cfg models.ProviderConfig
	if err := c.do(ctx, http.MethodGet, "/client_id", nil, nil, &cfg); err != nil {
		return nil, fmt.Errorf("fetching provider config: %w", err)
	}
	if cfg.ClientID == "" || !cfg.Provider.Valid() {
		return nil, fmt.Errorf("fetching provider config: %w: provider %q client_id %q",
			kerrors.ErrMalformedResponse, cfg.Provider, cfg.ClientID)
	}
	return &cfg, nil
}

// Callback exchanges an authorization code with the backend.
func (c *Client) Callback(ctx context.Context, provider models.Provider, code string) (*models.LoginResponse, error) {
	q := url.Values{"code": {code}}
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodGet, "/oauth/"+url.PathEscape(string(provider))+"/callback", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	if !resp.UserData.Valid() {
		return nil, fmt.Errorf("exchanging authorization code: %w: missing userData", kerrors.ErrMalformedResponse)
	}
	return &resp, nil
}

// Profile fetches the signed-in user's profile.
func (c *Client) Profile(ctx context.Context, provider models.Provider) (*models.UserIdentity, error) {
	var user models.UserIdentity
	if err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(string(provider))+"/profile", nil, nil, &user); err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	if !user.Valid() {
		return nil, fmt.Errorf("fetching profile: %w: missing identity", kerrors.ErrMalformedResponse)
	}
	return &user, nil
}

// Permissions resolves the user's role flags.
func (c *Client) Permissions(ctx context.Context, provider models.Provider) (*models.PermissionSet, error) {
	body := map[string]string{"provider": string(provider)}
	var perms models.PermissionSet
	if err := c.do(ctx, http.MethodPost, "/permissions", nil, body, &perms); err != nil {
		return nil, fmt.Errorf("resolving permissions: %w", err)
	}
	return &perms, nil
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/logout", nil, nil, nil); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// Options fetches the clusters and roles a request may target. Transient
// failures are retried.
func (c *Client) Options(ctx context.Context) (*models.Options, error) {
	var opts models.Options
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		opts = models.Options{}
		return c.do(ctx, http.MethodGet, "/roles-and-clusters", nil, nil, &opts)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching roles and clusters: %w", err)
	}
	return &opts, nil
}

// SubmitRequest creates an access request and returns the backend message.
func (c *Client) SubmitRequest(ctx context.Context, req *models.SubmitRequest) (string, error) {
	var resp models.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/submit-request", nil, req, &resp); err != nil {
		return "", fmt.Errorf("submitting request: %w", err)
	}
	return resp.Message, nil
}

// PendingApprovals lists requests awaiting the caller's decision.
func (c *Client) PendingApprovals(ctx context.Context) ([]models.PendingRequest, error) {
	var resp struct {
		PendingRequests []models.PendingRequest `json:"pendingRequests"`
	}
	if err := c.do(ctx, http.MethodGet, "/approvals", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching pending approvals: %w", err)
	}
	return resp.PendingRequests, nil
}

// Decide approves or rejects a batch of requests in a single call.
func (c *Client) Decide(ctx context.Context, req *models.DecisionRequest) (string, error) {
	if !req.Status.Decision() {
		return "", fmt.Errorf("deciding requests: %w: status %q", kerrors.ErrInvalidInput, req.Status)
	}
	var resp models.MessageResponse
	if err := c.do(ctx, http.MethodPost, "/approve-reject", nil, req, &resp); err != nil {
		return "", fmt.Errorf("deciding requests: %w", err)
	}
	return resp.Message, nil
}

// HistoryQuery holds the query parameters of GET /history.
type HistoryQuery struct {
	UserID   string
	Username string
	Limit    int
	Start    time.Time
	End      time.Time
}

func (q HistoryQuery) values() url.Values {
	v := url.Values{}
	if q.UserID != "" {
		v.Set("userID", q.UserID)
	}
	if q.Username != "" {
		v.Set("username", q.Username)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if !q.Start.IsZero() {
		v.Set("startDate", q.Start.UTC().Format(time.RFC3339))
	}
	if !q.End.IsZero() {
		v.Set("endDate", q.End.UTC().Format(time.RFC3339))
	}
	return v
}

// History lists past access requests.
func (c *Client) History(ctx context.Context, q HistoryQuery) ([]models.AccessRequest, error) {
	var rows []models.AccessRequest
	if err := c.do(ctx, http.MethodGet, "/history", q.values(), nil, &rows); err != nil {
		return nil, fmt.Errorf("fetching history: %w", err)
	}
	return rows, nil
}

// CleanExpired deletes expired requests (admin only).
func (c *Client) CleanExpired(ctx context.Context) (*models.CleanupResult, error) {
	var res models.CleanupResult
	if err := c.do(ctx, http.MethodPost, "/admin/clean-expired", nil, nil, &res); err != nil {
		return nil, fmt.Errorf("cleaning expired requests: %w", err)
	}
	return &res, nil
}

// BuildSHA fetches the backend build identifier. Transient failures are
// retried.
func (c *Client) BuildSHA(ctx context.Context) (*models.BuildInfo, error) {
	var info models.BuildInfo
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/build-sha", nil, nil, &info)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching build sha: %w", err)
	}
	return &info, nil
}
