package approval

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPending_MarksSelection(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPending(&buf, "csv", pendingRows(1, 2), []uint{2}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], ",1,"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "*,2,"), lines[1])
}
