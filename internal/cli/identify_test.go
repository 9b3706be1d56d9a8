package cli

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyText(t *testing.T) {
	dds := writeTempFile(t, "stone.dds", ddsDX9Sample())
	egm := writeTempFile(t, "head.egm", egmSample())

	out, err := execCommand(t, "identify", dds, egm)
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("%s: DDS version 0x09000000\n", dds))
	assert.Contains(t, out, fmt.Sprintf("%s: EGM version 0x00000002\n", egm))
}

func TestIdentifyUnknown(t *testing.T) {
	path := writeTempFile(t, "doc.pdf", []byte("%PDF-1.7 not a game asset"))

	out, err := execCommand(t, "identify", path)
	assert.Contains(t, out, "unknown format")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestIdentifyMissingFile(t *testing.T) {
	out, err := execCommand(t, "identify", "nope/missing.nif")
	assert.Contains(t, out, "error:")
	require.Error(t, err)
}

func TestIdentifyJSON(t *testing.T) {
	dds := writeTempFile(t, "stone.dds", ddsDX9Sample())

	out, err := execCommand(t, "identify", "--format", "json", dds)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   []IdentifyResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "DDS", resp.Data[0].Format)
	assert.Equal(t, uint32(0x09000000), resp.Data[0].Version)
}
