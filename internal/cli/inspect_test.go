package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspectText(t *testing.T) {
	sample := egmSample()
	path := writeTempFile(t, "head.egm", sample)

	out, err := execCommand(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "EGM version 0x00000002")
	assert.Contains(t, out, "size: 80 bytes")
	require.Len(t, sample, 80)
}

func TestInspectJSON(t *testing.T) {
	path := writeTempFile(t, "stone.dds", ddsDX9Sample())

	out, err := execCommand(t, "inspect", "--format", "json", path)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   InspectResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "DDS", resp.Data.Format)
	assert.Equal(t, int64(136), resp.Data.Size)
}

func TestInspectMissingFile(t *testing.T) {
	_, err := execCommand(t, "inspect", "nope/missing.dds")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
