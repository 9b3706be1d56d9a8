package kfm_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/kfm"
	"github.com/quellen/fileform/internal/record"
)

type kfmBuilder struct{ buf bytes.Buffer }

func (b *kfmBuilder) line(s string) *kfmBuilder {
	b.buf.WriteString(s)
	b.buf.WriteByte('\n')
	return b
}

func (b *kfmBuilder) u8(v uint8) *kfmBuilder {
	b.buf.WriteByte(v)
	return b
}

func (b *kfmBuilder) u32(v uint32) *kfmBuilder {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], v)
	b.buf.Write(n[:])
	return b
}

func (b *kfmBuilder) f32(v float32) *kfmBuilder {
	return b.u32(math.Float32bits(v))
}

func (b *kfmBuilder) str(s string) *kfmBuilder {
	b.u32(uint32(len(s)))
	b.buf.WriteString(s)
	return b
}

func (b *kfmBuilder) bytes() []byte { return b.buf.Bytes() }

// oldSample is a version 1.2.4b file: no per-animation index or
// transition table yet, and a master file name in the header.
func oldSample() []byte {
	var b kfmBuilder
	b.line(";Gamebryo KFM File Version 1.2.4b")
	b.str("actor.nif")
	b.str("actor_master")
	b.u32(0)
	b.u32(2)
	b.u32(5).str("walk.kf")
	b.u32(6).str("run.kf")
	return b.bytes()
}

// newSample is a version 2.0.0.0b file exercising the fields that
// version introduced, including conditional transition payloads.
func newSample() []byte {
	var b kfmBuilder
	b.line(";Gamebryo KFM File Version 2.0.0.0b")
	b.u8(1)
	b.str("actor.nif")
	b.u32(0)
	b.u32(0)
	b.u32(1)
	// one animation with two transitions
	b.u32(5).str("walk.kf").u32(0).u32(2)
	b.u32(1).u32(0).f32(0.25)       // blend transition
	b.u32(2).u32(2).str("chain.kf") // chained transition
	return b.bytes()
}

func TestVersionNumber(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"1.0", 0x01000000},
		{"1.2.4b", 0x01024B00},
		{"2.0.0.0b", 0x0200000B},
		{"2.1.0.0", 0x02010000},
		{"2.2.0.0b", 0x0202000B},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := kfm.VersionNumber(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := kfm.VersionNumber("1.2.3.4.5")
	assert.Error(t, err)
	_, err = kfm.VersionNumber("1.zz")
	assert.Error(t, err)
	_, err = kfm.VersionNumber("1.456")
	assert.Error(t, err, "components wider than one byte are invalid")
}

func TestVersionStringRoundTrip(t *testing.T) {
	for _, s := range []string{"1.0", "1.2.4b", "2.0.0.0b", "2.1.0.0", "2.2.0.0b"} {
		num, err := kfm.VersionNumber(s)
		require.NoError(t, err)
		assert.Equal(t, s, kfm.VersionString(num))
	}
}

func TestInspectQuick(t *testing.T) {
	d := &kfm.Data{}
	s := codec.NewReader(bytes.NewReader(oldSample()))

	require.NoError(t, d.InspectQuick(s))
	assert.Equal(t, format.StateInspected, d.State())
	assert.Equal(t, uint32(0x01024B00), d.Version())
	assert.Equal(t, uint32(0), d.UserVersion())

	pos, err := s.Pos()
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos, "inspect must restore the read position")

	// a second inspect sees the same bytes
	require.NoError(t, d.InspectQuick(s))
}

func TestInspectRejectsForeignStream(t *testing.T) {
	d := &kfm.Data{}
	s := codec.NewReader(bytes.NewReader([]byte("DDS \x7c\x00\x00\x00rest of some other file")))

	err := d.InspectQuick(s)
	assert.True(t, format.IsMismatch(err))
	assert.Equal(t, format.StateFailed, d.State())
}

func TestInspectUnknownVersion(t *testing.T) {
	d := &kfm.Data{}
	s := codec.NewReader(bytes.NewReader([]byte(";Gamebryo KFM File Version 9.9\nxxxx")))

	err := d.InspectQuick(s)
	assert.True(t, format.IsVersionError(err))
}

func TestReadOldVersion(t *testing.T) {
	d := &kfm.Data{}
	s := codec.NewReader(bytes.NewReader(oldSample()))

	require.NoError(t, d.Read(s))
	assert.Equal(t, format.StateRead, d.State())

	h := d.Header()
	name, err := h.Str("NIF File Name")
	require.NoError(t, err)
	assert.Equal(t, "actor.nif", name)

	master, err := h.Str("Master")
	require.NoError(t, err)
	assert.Equal(t, "actor_master", master)

	n, err := h.Uint("Num Animations")
	require.NoError(t, err)
	require.Equal(t, uint64(2), n)

	anims, err := h.Array("Animations")
	require.NoError(t, err)
	require.Equal(t, 2, anims.Len())

	a0 := anims.At(0).(*record.Record)
	code, err := a0.Uint("Event Code")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), code)
	kf, err := a0.Str("KF File Name")
	require.NoError(t, err)
	assert.Equal(t, "walk.kf", kf)

	// Index only exists from 2.0.0.0b on, so the read left it alone
	for _, f := range a0.Fields() {
		assert.NotEqual(t, "Index", f.Name)
	}
}

func TestReadTransitions(t *testing.T) {
	d := &kfm.Data{}
	s := codec.NewReader(bytes.NewReader(newSample()))

	require.NoError(t, d.Read(s))

	anims, err := d.Header().Array("Animations")
	require.NoError(t, err)
	require.Equal(t, 1, anims.Len())

	trans, err := anims.At(0).(*record.Record).Array("Transitions")
	require.NoError(t, err)
	require.Equal(t, 2, trans.Len())

	t0 := trans.At(0).(*record.Record)
	blend, err := t0.Float("Blend Time")
	require.NoError(t, err)
	assert.InDelta(t, 0.25, blend, 1e-6)
	for _, f := range t0.Fields() {
		assert.NotEqual(t, "Chain File Name", f.Name, "chain name is absent on blend transitions")
	}

	t1 := trans.At(1).(*record.Record)
	chain, err := t1.Str("Chain File Name")
	require.NoError(t, err)
	assert.Equal(t, "chain.kf", chain)
}

func TestReadRejectsTrailingBytes(t *testing.T) {
	data := append(oldSample(), 0xFF)
	d := &kfm.Data{}
	s := codec.NewReader(bytes.NewReader(data))

	err := d.Read(s)
	assert.True(t, format.IsContentError(err))
	assert.Equal(t, format.StateFailed, d.State())
}

func TestRoundTrip(t *testing.T) {
	for name, sample := range map[string][]byte{
		"1.2.4b":   oldSample(),
		"2.0.0.0b": newSample(),
	} {
		t.Run(name, func(t *testing.T) {
			d := &kfm.Data{}
			require.NoError(t, d.Read(codec.NewReader(bytes.NewReader(sample))))

			var out bytes.Buffer
			require.NoError(t, d.Write(codec.NewWriter(&out)))
			assert.Equal(t, sample, out.Bytes())
		})
	}
}

func TestNewDataWrite(t *testing.T) {
	d, err := kfm.NewData(0x01024B00)
	require.NoError(t, err)

	require.NoError(t, d.Header().SetField("NIF File Name", "fresh.nif"))
	require.NoError(t, d.Header().SetField("Master", "m"))

	var out bytes.Buffer
	require.NoError(t, d.Write(codec.NewWriter(&out)))
	assert.True(t, bytes.HasPrefix(out.Bytes(), []byte(";Gamebryo KFM File Version 1.2.4b\n")))

	_, err = kfm.NewData(0x00000001)
	assert.True(t, format.IsVersionError(err))
}

func TestRegistryIdentify(t *testing.T) {
	reg := format.NewRegistry()
	reg.Register(kfm.Format{})

	s := codec.NewReader(bytes.NewReader(oldSample()))
	f, data, err := reg.Identify(s)
	require.NoError(t, err)
	assert.Equal(t, "KFM", f.Name())
	assert.Equal(t, uint32(0x01024B00), data.Version())
}
