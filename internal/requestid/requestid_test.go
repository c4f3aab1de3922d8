package requestid

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ctx, id := New(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	id := FromContext(context.Background())
	assert.NotEmpty(t, id) // generates new UUID
}

func TestApply_UsesContextID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://backend/approvals", nil)
	require.NoError(t, err)

	assert.Equal(t, "req-123", Apply(req))
	assert.Equal(t, "req-123", req.Header.Get(Header))
}

func TestApply_KeepsExistingHeader(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://backend/history", nil)
	require.NoError(t, err)
	req.Header.Set(Header, "caller-set")

	assert.Equal(t, "caller-set", Apply(req))
}
