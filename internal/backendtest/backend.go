// Package backendtest provides an in-memory Kube-JIT backend for tests.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/p-blackswan/kubejit/internal/models"
)

// Prefix is the API prefix the fake serves under.
const Prefix = "/kube-jit-api"

// GoodCode is the only authorization code the fake accepts.
const GoodCode = "good"

// RedirectURI is the non-loopback redirect the fake advertises, so logins
// fall back to a pasted callback URL.
const RedirectURI = "https://jit.example.com/"

// Backend records what clients send and answers with canned data.
type Backend struct {
	mu sync.Mutex

	User        models.UserIdentity
	Permissions models.PermissionSet
	Options     models.Options
	Pending     []models.PendingRequest
	History     []models.AccessRequest
	Cleanup     models.CleanupResult

	// Unauthorized makes every call except /build-sha answer 401.
	Unauthorized bool
	// UnauthorizedPaths answer 401, keyed by path without the prefix.
	UnauthorizedPaths map[string]bool
	// FailSubmit makes /submit-request answer 400 with this text.
	FailSubmit string

	Submitted      []models.SubmitRequest
	Decisions      []models.DecisionRequest
	HistoryQueries []map[string]string
	Cleanups       int
	Logouts        int
}

// New returns a backend for an approver named Ada with one cluster and
// one role. Start it with Serve.
func New() *Backend {
	return &Backend{
		User:        models.UserIdentity{ID: "u1", Name: "Ada", Email: "ada@example.com", Provider: "github"},
		Permissions: models.PermissionSet{IsApprover: true, ApproverGroups: []models.Team{{ID: "t1", Name: "sre"}}},
		Options:     models.Options{Clusters: []string{"dev"}, Roles: []models.ClusterRole{{Name: "edit"}}},
		Cleanup:     models.CleanupResult{Message: "Expired requests cleaned", Deleted: 2},
	}
}

// Serve starts an httptest server closed at the end of the test.
func (b *Backend) Serve(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(b)
	t.Cleanup(server.Close)
	return server
}

// Do runs fn with the backend locked.
func (b *Backend) Do(fn func(b *Backend)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	path := r.URL.Path
	if (b.Unauthorized && path != Prefix+"/build-sha") || b.UnauthorizedPaths[strings.TrimPrefix(path, Prefix)] {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	switch path {
	case Prefix + "/client_id":
		writeJSON(w, http.StatusOK, models.ProviderConfig{ClientID: "cid", RedirectURI: RedirectURI, Provider: models.ProviderGitHub})
	case Prefix + "/oauth/github/callback":
		if r.URL.Query().Get("code") != GoodCode {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad code"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "kube_jit_session", Value: "abc", Path: "/"})
		writeJSON(w, http.StatusOK, models.LoginResponse{UserData: &b.User, ExpiresIn: 3600})
	case Prefix + "/github/profile":
		if _, err := r.Cookie("kube_jit_session"); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, b.User)
	case Prefix + "/permissions":
		writeJSON(w, http.StatusOK, b.Permissions)
	case Prefix + "/logout":
		b.Logouts++
		writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Logged out"})
	case Prefix + "/build-sha":
		writeJSON(w, http.StatusOK, models.BuildInfo{Sha: "0123456789abcdef"})
	case Prefix + "/roles-and-clusters":
		writeJSON(w, http.StatusOK, b.Options)
	case Prefix + "/submit-request":
		var req models.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
			return
		}
		b.Submitted = append(b.Submitted, req)
		if b.FailSubmit != "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": b.FailSubmit})
			return
		}
		writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Request submitted successfully"})
	case Prefix + "/approvals":
		writeJSON(w, http.StatusOK, map[string]any{"pendingRequests": b.Pending})
	case Prefix + "/approve-reject":
		var req models.DecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad body"})
			return
		}
		b.Decisions = append(b.Decisions, req)
		decided := make(map[uint]bool, len(req.Requests))
		for _, d := range req.Requests {
			decided[d.ID] = true
		}
		kept := b.Pending[:0:0]
		for _, p := range b.Pending {
			if !decided[p.ID] {
				kept = append(kept, p)
			}
		}
		b.Pending = kept
		writeJSON(w, http.StatusOK, models.MessageResponse{Message: "Requests processed successfully"})
	case Prefix + "/history":
		q := map[string]string{}
		for k := range r.URL.Query() {
			q[k] = r.URL.Query().Get(k)
		}
		b.HistoryQueries = append(b.HistoryQueries, q)
		writeJSON(w, http.StatusOK, b.History)
	case Prefix + "/admin/clean-expired":
		b.Cleanups++
		writeJSON(w, http.StatusOK, b.Cleanup)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
