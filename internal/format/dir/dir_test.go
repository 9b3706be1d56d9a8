package dir_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/dir"
)

func entry(offset, size uint32, name string) []byte {
	out := make([]byte, 32)
	binary.LittleEndian.PutUint32(out[0:], offset)
	binary.LittleEndian.PutUint32(out[4:], size)
	copy(out[8:], name)
	return out
}

func sample() []byte {
	var b bytes.Buffer
	b.Write(entry(0, 12, "player.dff"))
	b.Write(entry(12, 3, "PLAYER.TXD"))
	return b.Bytes()
}

func TestInspect(t *testing.T) {
	d := &dir.Data{}
	s := codec.NewReader(bytes.NewReader(sample()))

	require.NoError(t, d.InspectQuick(s))
	assert.Equal(t, format.StateInspected, d.State())
	assert.Equal(t, uint32(0), d.Version())

	pos, err := s.Pos()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)
}

func TestInspectRejectsOddSize(t *testing.T) {
	d := &dir.Data{}
	err := d.InspectQuick(codec.NewReader(bytes.NewReader(sample()[:40])))
	assert.True(t, format.IsMismatch(err))

	err = d.InspectQuick(codec.NewReader(bytes.NewReader(nil)))
	assert.True(t, format.IsMismatch(err))
}

func TestInspectRejectsBinaryJunk(t *testing.T) {
	junk := bytes.Repeat([]byte{0xFF}, 64)
	d := &dir.Data{}
	err := d.InspectQuick(codec.NewReader(bytes.NewReader(junk)))
	assert.True(t, format.IsMismatch(err))
}

func TestReadEntries(t *testing.T) {
	d := &dir.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(sample()))))

	entries := d.Entries()
	require.Len(t, entries, 2)

	name, err := entries[0].Str("Name")
	require.NoError(t, err)
	assert.Equal(t, "player.dff", name)

	offset, err := entries[1].Uint("Offset")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), offset)

	e, err := d.EntryByName("player.txd")
	require.NoError(t, err)
	size, err := e.Uint("Size")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), size)

	_, err = d.EntryByName("missing.dff")
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	data := sample()
	d := &dir.Data{}
	require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(data))))

	var out bytes.Buffer
	require.NoError(t, d.Write(codec.NewWriter(&out)))
	assert.Equal(t, data, out.Bytes())
}
