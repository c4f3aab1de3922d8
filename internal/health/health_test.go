package health

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/kubejit/pkg/statestore"
)

func TestChecker_AllHealthy(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("backend", func(ctx context.Context) Status { return StatusOK })
	c.Register("state_store", func(ctx context.Context) Status { return StatusOK })

	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_OneDown(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("state_store", func(ctx context.Context) Status { return StatusOK })
	c.Register("backend", func(ctx context.Context) Status { return StatusDown })

	results := c.RunAll(context.Background())
	assert.Equal(t, []Result{{"backend", StatusDown}, {"state_store", StatusOK}}, results)
	assert.False(t, Ready(results))
}

func TestChecker_Degraded_StillReady(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("session", func(ctx context.Context) Status { return StatusDegraded })

	assert.True(t, c.IsReady(context.Background()))
}

func TestChecker_NoChecks(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	assert.True(t, c.IsReady(context.Background()))
}

func TestChecks(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, StatusOK, BackendCheck(func(context.Context) error { return nil })(ctx))
	assert.Equal(t, StatusDown, BackendCheck(func(context.Context) error { return errors.New("refused") })(ctx))
	assert.Equal(t, StatusOK, StoreCheck(statestore.NewMemoryStore())(ctx))
	assert.Equal(t, StatusDegraded, SessionCheck(func(context.Context) bool { return false })(ctx))
	assert.Equal(t, StatusOK, SessionCheck(func(context.Context) bool { return true })(ctx))
}

func TestProbeHandlers(t *testing.T) {
	c := NewChecker(zerolog.Nop())
	c.Register("backend", func(ctx context.Context) Status { return StatusDown })

	app := fiber.New()
	app.Get("/healthz", Liveness)
	app.Get("/readyz", c.Readiness)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "not_ready")
}
