package table

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	header = []string{"ID", "STATUS"}
	data   = [][]string{{"1", "Approved"}, {"2", "Rejected, late"}}
	raw    = []map[string]string{{"id": "1"}}
)

func TestRender_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatTable, header, data, raw))
	assert.Contains(t, buf.String(), "STATUS")
	assert.Contains(t, buf.String(), "Approved")
}

func TestRender_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "csv,header", header, data, raw))
	assert.Equal(t, "ID,STATUS\n1,Approved\n2,\"Rejected, late\"\n", buf.String())

	buf.Reset()
	require.NoError(t, Render(&buf, FormatCSV, header, data, raw))
	assert.Equal(t, "1,Approved\n2,\"Rejected, late\"\n", buf.String())
}

func TestRender_JSONAndYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, header, data, raw))
	assert.JSONEq(t, `[{"id": "1"}]`, buf.String())

	buf.Reset()
	require.NoError(t, Render(&buf, FormatYAML, header, data, raw))
	assert.Equal(t, "- id: \"1\"\n", buf.String())
}

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, ValidateFormat("table"))
	assert.NoError(t, ValidateFormat("csv,header"))
	assert.Error(t, ValidateFormat("csv,bogus"))
	assert.Error(t, ValidateFormat("xml"))
	assert.Error(t, Render(&bytes.Buffer{}, "xml", header, data, raw))
}
