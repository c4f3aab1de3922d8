package oauth

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLoopback(t *testing.T) {
	assert.True(t, IsLoopback("http://localhost:3000/"))
	assert.True(t, IsLoopback("http://127.0.0.1:8085/callback"))
	assert.True(t, IsLoopback("http://[::1]:8085/callback"))

	assert.False(t, IsLoopback("http://localhost/"))
	assert.False(t, IsLoopback("https://jit.example.com:443/"))
	assert.False(t, IsLoopback("http://10.0.0.5:3000/"))
	assert.False(t, IsLoopback("::not a url"))
}

func TestNewListener_RejectsRemoteRedirect(t *testing.T) {
	_, err := NewListener("https://jit.example.com/", zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotLoopback)
}

func TestListener_CapturesCallback(t *testing.T) {
	l, err := NewListener("http://127.0.0.1:0/callback", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, l.Start())
	defer l.Close()

	bad, err := http.Get("http://" + l.Addr() + "/callback?code=abc")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	resp, err := http.Get("http://" + l.Addr() + "/callback?code=abc&state=github")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Signed in")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	cb, err := l.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", cb.Code)
	assert.Equal(t, "github", cb.State)
}

func TestListener_WaitHonoursContext(t *testing.T) {
	l, err := NewListener("http://127.0.0.1:0/", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, l.Start())
	defer l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
