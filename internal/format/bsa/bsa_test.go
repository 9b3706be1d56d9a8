package bsa_test

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"testing"

	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/bsa"
)

func u32(b *bytes.Buffer, v uint32) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], v)
	b.Write(n[:])
}

func u64(b *bytes.Buffer, v uint64) {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], v)
	b.Write(n[:])
}

func zlibBlock(t *testing.T, payload []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	u32(&out, uint32(len(payload)))
	zw := zlib.NewWriter(&out)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return out.Bytes()
}

func lz4Block(t *testing.T, payload []byte) []byte {
	t.Helper()
	var out bytes.Buffer
	u32(&out, uint32(len(payload)))
	zw := lz4.NewWriter(&out)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return out.Bytes()
}

// modernArchive lays out one folder with two files. blocks holds the
// exact on-disk payload region for each file; toggled files get the
// per-file compression bit.
func modernArchive(version uint32, flags uint32, names []string, blocks [][]byte, toggled []bool) []byte {
	var b bytes.Buffer
	b.WriteString("BSA\x00")
	u32(&b, version)
	u32(&b, 36)
	u32(&b, flags)
	u32(&b, 1) // folder count
	u32(&b, uint32(len(blocks)))
	folderName := "meshes"
	u32(&b, uint32(len(folderName)+1))
	var nameTable bytes.Buffer
	for _, n := range names {
		nameTable.WriteString(n)
		nameTable.WriteByte(0)
	}
	u32(&b, uint32(nameTable.Len()))
	u32(&b, 1) // file flags: meshes

	// folder record
	u64(&b, 0xDEADBEEF)
	u32(&b, uint32(len(blocks)))
	if version == 105 {
		u32(&b, 0)
		u64(&b, 0)
	} else {
		u32(&b, 0)
	}

	// folder name and file records; offsets are filled in from the
	// layout produced so far
	b.WriteByte(byte(len(folderName) + 1))
	b.WriteString(folderName)
	b.WriteByte(0)

	fileRecordsAt := b.Len()
	for range blocks {
		u64(&b, 0)
		u32(&b, 0)
		u32(&b, 0)
	}
	b.Write(nameTable.Bytes())

	data := b.Bytes()
	for i, block := range blocks {
		off := len(data)
		data = append(data, block...)
		rec := data[fileRecordsAt+16*i:]
		binary.LittleEndian.PutUint64(rec, uint64(0x1000+i))
		size := uint32(len(block))
		if toggled[i] {
			size |= 0x40000000
		}
		binary.LittleEndian.PutUint32(rec[8:], size)
		binary.LittleEndian.PutUint32(rec[12:], uint32(off))
	}
	return data
}

func morrowindArchive(names []string, payloads [][]byte) []byte {
	var nameTable bytes.Buffer
	offsets := make([]uint32, len(names))
	for i, n := range names {
		offsets[i] = uint32(nameTable.Len())
		nameTable.WriteString(n)
		nameTable.WriteByte(0)
	}

	var b bytes.Buffer
	u32(&b, 0x100)
	u32(&b, uint32(12*len(names)+nameTable.Len()))
	u32(&b, uint32(len(names)))
	dataOff := uint32(0)
	for _, p := range payloads {
		u32(&b, uint32(len(p)))
		u32(&b, dataOff)
		dataOff += uint32(len(p))
	}
	for _, off := range offsets {
		u32(&b, off)
	}
	b.Write(nameTable.Bytes())
	for range names {
		u64(&b, 0)
	}
	for _, p := range payloads {
		b.Write(p)
	}
	return b.Bytes()
}

func TestInspect(t *testing.T) {
	arch := modernArchive(104, 0x3, []string{"a.nif"}, [][]byte{[]byte("hi")}, []bool{false})
	d := &bsa.Data{}
	s := codec.NewReader(bytes.NewReader(arch))

	require.NoError(t, d.InspectQuick(s))
	assert.Equal(t, uint32(104), d.Version())
	pos, err := s.Pos()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos)

	err = d.InspectQuick(codec.NewReader(bytes.NewReader([]byte("BSA\x00\x66\x00\x00\x00"))))
	assert.True(t, format.IsVersionError(err), "version 102 is unknown")

	err = d.InspectQuick(codec.NewReader(bytes.NewReader([]byte("not an archive at all"))))
	assert.True(t, format.IsMismatch(err))
}

func TestInspectMorrowindMagic(t *testing.T) {
	arch := morrowindArchive([]string{"x.dat"}, [][]byte{[]byte("payload")})
	d := &bsa.Data{}
	require.NoError(t, d.InspectQuick(codec.NewReader(bytes.NewReader(arch))))
	assert.Equal(t, bsa.VersionMorrowind, d.Version())
}

func TestReadAndExtractModern(t *testing.T) {
	plain := []byte("uncompressed vertex soup")
	squeezed := bytes.Repeat([]byte("squeeze me "), 40)
	arch := modernArchive(104, 0x3,
		[]string{"a.nif", "b.nif"},
		[][]byte{plain, zlibBlock(t, squeezed)},
		[]bool{false, true})

	d := &bsa.Data{}
	s := codec.NewReader(bytes.NewReader(arch))
	require.NoError(t, d.Read(s))

	require.Len(t, d.Folders(), 1)
	fo := d.Folders()[0]
	assert.Equal(t, "meshes", fo.Name)
	require.Len(t, fo.Files, 2)
	assert.Equal(t, "a.nif", fo.Files[0].Name)
	assert.Equal(t, "b.nif", fo.Files[1].Name)

	got, err := d.ExtractFile(s, fo.Files[0])
	require.NoError(t, err)
	assert.Equal(t, plain, got)

	got, err = d.ExtractFile(s, fo.Files[1])
	require.NoError(t, err)
	assert.Equal(t, squeezed, got, "toggle bit flips the uncompressed default")

	f, err := d.FindFile("meshes", "b.nif")
	require.NoError(t, err)
	assert.Equal(t, fo.Files[1], f)
	_, err = d.FindFile("meshes", "c.nif")
	assert.Error(t, err)
}

func TestExtractLZ4(t *testing.T) {
	payload := bytes.Repeat([]byte("skyrim again "), 64)
	arch := modernArchive(105, 0x3|bsa.FlagCompressed,
		[]string{"a.nif"},
		[][]byte{lz4Block(t, payload)},
		[]bool{false})

	d := &bsa.Data{}
	s := codec.NewReader(bytes.NewReader(arch))
	require.NoError(t, d.Read(s))

	got, err := d.ExtractFile(s, d.Folders()[0].Files[0])
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadAndExtractMorrowind(t *testing.T) {
	first := []byte("hello morrowind")
	second := []byte("n'wah")
	arch := morrowindArchive([]string{"meshes\\a.nif", "meshes\\b.nif"}, [][]byte{first, second})

	d := &bsa.Data{}
	s := codec.NewReader(bytes.NewReader(arch))
	require.NoError(t, d.Read(s))

	require.Len(t, d.Folders(), 1)
	files := d.Folders()[0].Files
	require.Len(t, files, 2)
	assert.Equal(t, "meshes\\a.nif", files[0].Name)

	got, err := d.ExtractFile(s, files[1])
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestWriteNotImplemented(t *testing.T) {
	d := &bsa.Data{}
	var out bytes.Buffer
	assert.True(t, format.IsNotImplemented(d.Write(codec.NewWriter(&out))))
}

func TestFileCountMismatch(t *testing.T) {
	arch := modernArchive(104, 0x3, []string{"a.nif"}, [][]byte{[]byte("x")}, []bool{false})
	// bump the header's file count without touching the folder record
	binary.LittleEndian.PutUint32(arch[20:], 2)

	d := &bsa.Data{}
	err := d.Read(codec.NewReader(bytes.NewReader(arch)))
	assert.True(t, format.IsContentError(err))
}
