// Package egm reads and writes FaceGen EGM morph deformation files.
//
// The file is the "FREGM" signature, a three-digit decimal version,
// and a body of symmetric and asymmetric morphs. Each morph stores its
// vertex offsets as int16 triplets under a single float scale, so the
// interesting API here is the dequantization on Morph.
package egm

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"sync"

	"github.com/chewxy/math32"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/compiler"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/ir"
	"github.com/quellen/fileform/internal/record"
)

//go:embed egm.xml
var description []byte

var (
	schemaOnce sync.Once
	schema     *ir.Schema
	schemaErr  error
)

func loadSchema() (*ir.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = compiler.LoadFormat("EGM", description)
	})
	return schema, schemaErr
}

var signature = []byte("FREGM")

// quantRange is the int16 extent one scale unit maps onto.
const quantRange = 32767

// Data is one parsed EGM file.
type Data struct {
	format.Lifecycle

	ctx    record.Context
	header *record.Record
}

// Version reports the decimal file version, valid once inspected.
func (d *Data) Version() uint32 { return d.ctx.Version }

// UserVersion is always zero; EGM files carry no user version.
func (d *Data) UserVersion() uint32 { return 0 }

// Header returns the root record, valid after Read.
func (d *Data) Header() *record.Record { return d.header }

func (d *Data) inspect(s *codec.Stream) error {
	head := make([]byte, 8)
	if err := s.ReadFull(head); err != nil {
		return &format.MismatchError{Format: "EGM", Reason: "too short for a signature"}
	}
	if !bytes.Equal(head[:5], signature) {
		return &format.MismatchError{Format: "EGM", Reason: "missing FREGM signature"}
	}
	ver, err := strconv.ParseUint(string(head[5:]), 10, 32)
	if err != nil {
		return &format.MismatchError{Format: "EGM", Reason: "version digits are not decimal"}
	}
	sc, err := loadSchema()
	if err != nil {
		return err
	}
	if !sc.SupportsVersion(uint32(ver)) {
		return &format.VersionError{Format: "EGM", Version: uint32(ver)}
	}
	d.ctx.Version = uint32(ver)
	return nil
}

// InspectQuick checks the signature and version without moving the
// cursor.
func (d *Data) InspectQuick(s *codec.Stream) error {
	return d.Transition(format.StateInspected, s.PreservePos(func() error {
		return d.inspect(s)
	}))
}

// Inspect is identical to InspectQuick.
func (d *Data) Inspect(s *codec.Stream) error {
	return d.InspectQuick(s)
}

// Read parses the whole file.
func (d *Data) Read(s *codec.Stream) error {
	return d.Transition(format.StateRead, d.read(s))
}

func (d *Data) read(s *codec.Stream) error {
	if err := d.inspect(s); err != nil {
		return err
	}
	sc, err := loadSchema()
	if err != nil {
		return err
	}
	fac := record.NewFactory(sc, &d.ctx)
	root, err := fac.NewRecordByName("Header", "")
	if err != nil {
		return err
	}
	if err := root.Read(s); err != nil {
		return err
	}
	if err := format.CheckExhausted("EGM", s); err != nil {
		return err
	}
	d.header = root
	return nil
}

// Write serializes the whole file.
func (d *Data) Write(s *codec.Stream) error {
	if d.header == nil {
		return &format.ContentError{Format: "EGM", Message: "no header record to write"}
	}
	if err := s.WriteFull(signature); err != nil {
		return err
	}
	if err := s.WriteFull([]byte(fmt.Sprintf("%03d", d.ctx.Version))); err != nil {
		return err
	}
	return d.header.Write(s)
}

// SymMorph returns the i-th symmetric morph.
func (d *Data) SymMorph(i int) (*Morph, error) { return d.morph("Sym Morphs", i) }

// AsymMorph returns the i-th asymmetric morph.
func (d *Data) AsymMorph(i int) (*Morph, error) { return d.morph("Asym Morphs", i) }

func (d *Data) morph(field string, i int) (*Morph, error) {
	if d.header == nil {
		return nil, fmt.Errorf("no morphs before read")
	}
	arr, err := d.header.Array(field)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= arr.Len() {
		return nil, fmt.Errorf("%s has no morph %d", field, i)
	}
	return &Morph{rec: arr.At(i).(*record.Record)}, nil
}

// Morph wraps one morph record with the scale arithmetic the raw
// int16 triplets need.
type Morph struct {
	rec *record.Record
}

// Record exposes the underlying record.
func (m *Morph) Record() *record.Record { return m.rec }

// Scale returns the quantization scale.
func (m *Morph) Scale() (float32, error) {
	f, err := m.rec.Float("Scale")
	return float32(f), err
}

// RelativeVertices dequantizes the stored triplets into vertex offsets.
func (m *Morph) RelativeVertices() ([][3]float32, error) {
	scale, err := m.Scale()
	if err != nil {
		return nil, err
	}
	arr, err := m.rec.Array("Relative Vertices")
	if err != nil {
		return nil, err
	}
	raw, err := arr.Ints()
	if err != nil {
		return nil, err
	}
	if len(raw)%3 != 0 {
		return nil, fmt.Errorf("vertex component count %d is not a multiple of 3", len(raw))
	}
	out := make([][3]float32, len(raw)/3)
	for i := range out {
		for c := 0; c < 3; c++ {
			out[i][c] = float32(raw[3*i+c]) * scale
		}
	}
	return out, nil
}

// SetRelativeVertices quantizes vertex offsets into the stored form.
// The scale becomes the largest absolute component over 32767, so the
// widest offset maps onto the full int16 range.
func (m *Morph) SetRelativeVertices(verts [][3]float32) error {
	arr, err := m.rec.Array("Relative Vertices")
	if err != nil {
		return err
	}
	if arr.Len() != 3*len(verts) {
		return &codec.SizeError{What: "morph vertices", Length: int64(3 * len(verts)), Max: int64(arr.Len())}
	}
	var maxAbs float32
	for _, v := range verts {
		for c := 0; c < 3; c++ {
			maxAbs = math32.Max(maxAbs, math32.Abs(v[c]))
		}
	}
	scale := maxAbs / quantRange
	if scale == 0 {
		scale = 1
	}
	if err := m.rec.SetField("Scale", float64(scale)); err != nil {
		return err
	}
	for i, v := range verts {
		for c := 0; c < 3; c++ {
			q := int64(math32.Round(v[c] / scale))
			if err := arr.SetAt(3*i+c, q); err != nil {
				return err
			}
		}
	}
	return nil
}

// Format registers EGM with the format registry.
type Format struct{}

func (Format) Name() string { return "EGM" }

func (Format) Extensions() []string { return []string{".egm"} }

func (Format) New() (format.Data, error) {
	if _, err := loadSchema(); err != nil {
		return nil, err
	}
	return &Data{}, nil
}
