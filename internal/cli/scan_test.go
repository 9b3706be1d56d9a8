package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScanTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string][]byte{
		"faces/head.egm":  egmSample(),
		"textures/a.dds":  ddsDX9Sample(),
		"textures/b.dds":  ddsDX9Sample(),
		"notes/readme.md": []byte("release notes\n"),
	}
	for rel, data := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return root
}

func TestScanCommand(t *testing.T) {
	root := writeScanTree(t)
	db := filepath.Join(t.TempDir(), "catalog.db")

	out, err := execCommand(t, "scan", root, "--catalog", db)
	require.NoError(t, err)
	assert.Contains(t, out, "4 files seen, 3 identified")
	assert.Contains(t, out, "DDS")
	assert.Contains(t, out, "EGM")
	assert.Contains(t, out, "(unknown)")
}

func TestScanCommandWithConfig(t *testing.T) {
	root := writeScanTree(t)
	db := filepath.Join(t.TempDir(), "catalog.db")
	cfg := writeTempFile(t, "scan.yaml", []byte("include:\n  - \"*.dds\"\n"))

	out, err := execCommand(t, "scan", root, "--catalog", db, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "2 files seen, 2 identified")
}

func TestScanCommandJSON(t *testing.T) {
	root := writeScanTree(t)
	db := filepath.Join(t.TempDir(), "catalog.db")

	out, err := execCommand(t, "scan", root, "--catalog", db, "--format", "json", "--exclude", "*.md")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ScanResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.Run)
	assert.Equal(t, int64(3), resp.Data.Seen)
	assert.Equal(t, int64(3), resp.Data.Matched)
	assert.Equal(t, int64(2), resp.Data.Formats["DDS"])
	assert.Equal(t, int64(1), resp.Data.Formats["EGM"])
}

func TestScanCommandBadConfig(t *testing.T) {
	root := writeScanTree(t)
	db := filepath.Join(t.TempDir(), "catalog.db")

	_, err := execCommand(t, "scan", root, "--catalog", db, "--config", "nope/scan.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
