// Package tri reads and writes FaceGen TRI mesh files.
//
// The file is the "FRTRI" signature, a three-digit decimal version, a
// counted header, and flat tables of vertices, faces, texture
// coordinates and named morphs. Morph offsets use the same int16
// quantization as EGM.
package tri

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"sync"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/compiler"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/ir"
	"github.com/quellen/fileform/internal/record"
)

//go:embed tri.xml
var description []byte

var (
	schemaOnce sync.Once
	schema     *ir.Schema
	schemaErr  error
)

func loadSchema() (*ir.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = compiler.LoadFormat("TRI", description)
	})
	return schema, schemaErr
}

var signature = []byte("FRTRI")

// Data is one parsed TRI file.
type Data struct {
	format.Lifecycle

	ctx    record.Context
	header *record.Record
}

// Version reports the decimal file version, valid once inspected.
func (d *Data) Version() uint32 { return d.ctx.Version }

// UserVersion is always zero; TRI files carry no user version.
func (d *Data) UserVersion() uint32 { return 0 }

// Header returns the root record, valid after Read.
func (d *Data) Header() *record.Record { return d.header }

func (d *Data) inspect(s *codec.Stream) error {
	head := make([]byte, 8)
	if err := s.ReadFull(head); err != nil {
		return &format.MismatchError{Format: "TRI", Reason: "too short for a signature"}
	}
	if !bytes.Equal(head[:5], signature) {
		return &format.MismatchError{Format: "TRI", Reason: "missing FRTRI signature"}
	}
	ver, err := strconv.ParseUint(string(head[5:]), 10, 32)
	if err != nil {
		return &format.MismatchError{Format: "TRI", Reason: "version digits are not decimal"}
	}
	sc, err := loadSchema()
	if err != nil {
		return err
	}
	if !sc.SupportsVersion(uint32(ver)) {
		return &format.VersionError{Format: "TRI", Version: uint32(ver)}
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
	if err := format.CheckExhausted("TRI", s); err != nil {
		return err
	}
	d.header = root
	return nil
}

// Write serializes the whole file.
func (d *Data) Write(s *codec.Stream) error {
	if d.header == nil {
		return &format.ContentError{Format: "TRI", Message: "no header record to write"}
	}
	if err := s.WriteFull(signature); err != nil {
		return err
	}
	if err := s.WriteFull([]byte(fmt.Sprintf("%03d", d.ctx.Version))); err != nil {
		return err
	}
	return d.header.Write(s)
}

// Vertices returns the base mesh vertices.
func (d *Data) Vertices() ([][3]float32, error) {
	if d.header == nil {
		return nil, fmt.Errorf("no vertices before read")
	}
	arr, err := d.header.Array("Vertices")
	if err != nil {
		return nil, err
	}
	out := make([][3]float32, arr.Len())
	for i := range out {
		rec := arr.At(i).(*record.Record)
		for c, name := range [3]string{"X", "Y", "Z"} {
			f, err := rec.Float(name)
			if err != nil {
				return nil, err
			}
			out[i][c] = float32(f)
		}
	}
	return out, nil
}

// Triangles returns the triangle index table.
func (d *Data) Triangles() ([][3]uint32, error) {
	if d.header == nil {
		return nil, fmt.Errorf("no faces before read")
	}
	arr, err := d.header.Array("Tri Faces")
	if err != nil {
		return nil, err
	}
	out := make([][3]uint32, arr.Len())
	for i := range out {
		rec := arr.At(i).(*record.Record)
		for c, name := range [3]string{"V1", "V2", "V3"} {
			n, err := rec.Uint(name)
			if err != nil {
				return nil, err
			}
			out[i][c] = uint32(n)
		}
	}
	return out, nil
}

// Morph returns the i-th named morph.
func (d *Data) Morph(i int) (*Morph, error) {
	if d.header == nil {
		return nil, fmt.Errorf("no morphs before read")
	}
	arr, err := d.header.Array("Morphs")
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= arr.Len() {
		return nil, fmt.Errorf("no morph %d", i)
	}
	return &Morph{rec: arr.At(i).(*record.Record)}, nil
}

// MorphByName finds a morph by its stored name.
func (d *Data) MorphByName(name string) (*Morph, error) {
	if d.header == nil {
		return nil, fmt.Errorf("no morphs before read")
	}
	arr, err := d.header.Array("Morphs")
	if err != nil {
		return nil, err
	}
	for i := 0; i < arr.Len(); i++ {
		rec := arr.At(i).(*record.Record)
		n, err := rec.Str("Name")
		if err != nil {
			return nil, err
		}
		if n == name {
			return &Morph{rec: rec}, nil
		}
	}
	return nil, fmt.Errorf("no morph named %q", name)
}

// Morph is one named morph target.
type Morph struct {
	rec *record.Record
}

// Record exposes the underlying record.
func (m *Morph) Record() *record.Record { return m.rec }

// Name returns the morph's name.
func (m *Morph) Name() (string, error) { return m.rec.Str("Name") }

// RelativeVertices dequantizes the stored triplets into vertex offsets.
func (m *Morph) RelativeVertices() ([][3]float32, error) {
	f, err := m.rec.Float("Scale")
	if err != nil {
		return nil, err
	}
	scale := float32(f)
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

// Format registers TRI with the format registry.
type Format struct{}

func (Format) Name() string { return "TRI" }

func (Format) Extensions() []string { return []string{".tri"} }

func (Format) New() (format.Data, error) {
	if _, err := loadSchema(); err != nil {
		return nil, err
	}
	return &Data{}, nil
}
