// Package egt reads and writes FaceGen EGT texture morph files.
//
// The layout mirrors EGM: a "FREGT" signature, a three-digit decimal
// version, and quantized int16 deltas under a per-record float scale.
// Here the deltas are per color channel over the whole image instead of
// per vertex.
package egt

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

//go:embed egt.xml
var description []byte

var (
	schemaOnce sync.Once
	schema     *ir.Schema
	schemaErr  error
)

func loadSchema() (*ir.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = compiler.LoadFormat("EGT", description)
	})
	return schema, schemaErr
}

var signature = []byte("FREGT")

// Data is one parsed EGT file.
type Data struct {
	format.Lifecycle

	ctx    record.Context
	header *record.Record
}

// Version reports the decimal file version, valid once inspected.
func (d *Data) Version() uint32 { return d.ctx.Version }

// UserVersion is always zero; EGT files carry no user version.
func (d *Data) UserVersion() uint32 { return 0 }

// Header returns the root record, valid after Read.
func (d *Data) Header() *record.Record { return d.header }

func (d *Data) inspect(s *codec.Stream) error {
	head := make([]byte, 8)
	if err := s.ReadFull(head); err != nil {
		return &format.MismatchError{Format: "EGT", Reason: "too short for a signature"}
	}
	if !bytes.Equal(head[:5], signature) {
		return &format.MismatchError{Format: "EGT", Reason: "missing FREGT signature"}
	}
	ver, err := strconv.ParseUint(string(head[5:]), 10, 32)
	if err != nil {
		return &format.MismatchError{Format: "EGT", Reason: "version digits are not decimal"}
	}
	sc, err := loadSchema()
	if err != nil {
		return err
	}
	if !sc.SupportsVersion(uint32(ver)) {
		return &format.VersionError{Format: "EGT", Version: uint32(ver)}
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
	if err := format.CheckExhausted("EGT", s); err != nil {
		return err
	}
	d.header = root
	return nil
}

// Write serializes the whole file.
func (d *Data) Write(s *codec.Stream) error {
	if d.header == nil {
		return &format.ContentError{Format: "EGT", Message: "no header record to write"}
	}
	if err := s.WriteFull(signature); err != nil {
		return err
	}
	if err := s.WriteFull([]byte(fmt.Sprintf("%03d", d.ctx.Version))); err != nil {
		return err
	}
	return d.header.Write(s)
}

// SymTexture returns the i-th symmetric texture morph.
func (d *Data) SymTexture(i int) (*Texture, error) { return d.texture("Sym Textures", i) }

// AsymTexture returns the i-th asymmetric texture morph.
func (d *Data) AsymTexture(i int) (*Texture, error) { return d.texture("Asym Textures", i) }

func (d *Data) texture(field string, i int) (*Texture, error) {
	if d.header == nil {
		return nil, fmt.Errorf("no textures before read")
	}
	arr, err := d.header.Array(field)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= arr.Len() {
		return nil, fmt.Errorf("%s has no texture %d", field, i)
	}
	return &Texture{rec: arr.At(i).(*record.Record)}, nil
}

// Texture wraps one texture morph record.
type Texture struct {
	rec *record.Record
}

// Record exposes the underlying record.
func (t *Texture) Record() *record.Record { return t.rec }

// Scale returns the quantization scale.
func (t *Texture) Scale() (float32, error) {
	f, err := t.rec.Float("Scale")
	return float32(f), err
}

// Channel dequantizes one color channel's deltas. Valid names are
// "Red Deltas", "Green Deltas" and "Blue Deltas".
func (t *Texture) Channel(name string) ([]float32, error) {
	scale, err := t.Scale()
	if err != nil {
		return nil, err
	}
	arr, err := t.rec.Array(name)
	if err != nil {
		return nil, err
	}
	raw, err := arr.Ints()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = float32(v) * scale
	}
	return out, nil
}

// Format registers EGT with the format registry.
type Format struct{}

func (Format) Name() string { return "EGT" }

func (Format) Extensions() []string { return []string{".egt"} }

func (Format) New() (format.Data, error) {
	if _, err := loadSchema(); err != nil {
		return nil, err
	}
	return &Data{}, nil
}
