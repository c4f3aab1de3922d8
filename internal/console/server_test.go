package console

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/kubejit/internal/health"
	"github.com/p-blackswan/kubejit/internal/metrics"
)

func TestServer_Routes(t *testing.T) {
	m := metrics.New()
	m.RecordAPIRequest("/approvals", "200", 0.01)
	checker := health.NewChecker(zerolog.Nop())
	checker.Register("backend", func(context.Context) health.Status { return health.StatusOK })

	s := NewServer("127.0.0.1:0", checker, m, zerolog.Nop())

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `kubejit_api_requests_total{endpoint="/approvals",status="200"} 1`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", health.NewChecker(zerolog.Nop()), nil, zerolog.Nop())
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Shutdown())
}
