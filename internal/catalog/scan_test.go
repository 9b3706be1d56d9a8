package catalog_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellen/fileform/internal/catalog"
	"github.com/quellen/fileform/internal/format/all"
)

func writeTree(t *testing.T, files map[string][]byte) string {
	t.Helper()
	root := t.TempDir()
	for rel, data := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}
	return root
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	root := writeTree(t, map[string][]byte{
		"anims/walk.kfm":  []byte(";Gamebryo KFM File Version 2.0.0.0b\nrest"),
		"textures/a.dds":  []byte("DDS \x7c\x00\x00\x00"),
		"faces/head.egm":  []byte("FREGM002"),
		"notes/readme.md": []byte("just some notes\n"),
		"leftover.tmp":    []byte("binary junk here\n"),
	})

	c := openTestCatalog(t)
	sc := &catalog.Scanner{
		Registry: all.Registry(),
		Catalog:  c,
		Exclude:  []string{"*.md"},
	}

	runID, err := sc.Scan(ctx, root)
	require.NoError(t, err)

	runs, err := c.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(4), runs[0].FilesSeen)
	assert.Equal(t, int64(3), runs[0].FilesMatched)

	files, err := c.Files(ctx, runID)
	require.NoError(t, err)
	require.Len(t, files, 4)

	byPath := map[string]catalog.FileRecord{}
	for _, f := range files {
		byPath[f.Path] = f
	}
	assert.Equal(t, "KFM", byPath["anims/walk.kfm"].Format)
	assert.Equal(t, uint32(0x0200000B), byPath["anims/walk.kfm"].Version)
	assert.Equal(t, "DDS", byPath["textures/a.dds"].Format)
	assert.Equal(t, uint32(0x09000000), byPath["textures/a.dds"].Version)
	assert.Equal(t, "EGM", byPath["faces/head.egm"].Format)
	assert.Equal(t, int64(8), byPath["faces/head.egm"].Size)
	assert.Empty(t, byPath["leftover.tmp"].Format)
	assert.NotContains(t, byPath, "notes/readme.md")

	summary, err := c.Summary(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary[""])
}

func TestScanInclude(t *testing.T) {
	ctx := context.Background()
	root := writeTree(t, map[string][]byte{
		"a.dds": []byte("DDS \x7c\x00\x00\x00"),
		"b.tga": []byte("ignored"),
	})

	c := openTestCatalog(t)
	sc := &catalog.Scanner{
		Registry: all.Registry(),
		Catalog:  c,
		Include:  []string{"*.dds"},
	}
	runID, err := sc.Scan(ctx, root)
	require.NoError(t, err)

	files, err := c.Files(ctx, runID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.dds", files[0].Path)
}

func TestScanParallel(t *testing.T) {
	ctx := context.Background()
	files := map[string][]byte{}
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("tex/%02d.dds", i)] = []byte("DDS \x7c\x00\x00\x00")
	}
	root := writeTree(t, files)

	c := openTestCatalog(t)
	sc := &catalog.Scanner{
		Registry: all.Registry(),
		Catalog:  c,
		Workers:  4,
	}
	runID, err := sc.Scan(ctx, root)
	require.NoError(t, err)

	runs, err := c.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(20), runs[0].FilesSeen)
	assert.Equal(t, int64(20), runs[0].FilesMatched)

	got, err := c.Files(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, got, 20)
}

func TestScanCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	root := writeTree(t, map[string][]byte{"a.dds": []byte("DDS \x7c\x00\x00\x00")})
	c := openTestCatalog(t)
	sc := &catalog.Scanner{Registry: all.Registry(), Catalog: c}

	_, err := sc.Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
