// Package dds reads DirectDraw Surface texture containers.
//
// The file is the "DDS " magic followed by a fixed header, an optional
// DX10 extension header, and the raw surface bytes. The header size
// field doubles as the dialect marker: 124 is the classic DirectX 9
// layout and 144 announces the DX10 extension.
package dds

import (
	"bytes"
	_ "embed"
	"encoding/binary"
	"sync"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/compiler"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/ir"
	"github.com/quellen/fileform/internal/record"
)

//go:embed dds.xml
var description []byte

var (
	schemaOnce sync.Once
	schema     *ir.Schema
	schemaErr  error
)

func loadSchema() (*ir.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = compiler.LoadFormat("DDS", description)
	})
	return schema, schemaErr
}

var magic = []byte("DDS ")

const (
	// VersionDX9 marks the 124-byte classic header.
	VersionDX9 uint32 = 0x09000000
	// VersionDX10 marks the 144-byte header with the DX10 extension.
	VersionDX10 uint32 = 0x0A000000

	sizeDX9  = 124
	sizeDX10 = 144
)

// Data is one parsed DDS file.
type Data struct {
	format.Lifecycle

	ctx    record.Context
	header *record.Record
}

// Version reports the dialect, valid once inspected.
func (d *Data) Version() uint32 { return d.ctx.Version }

// UserVersion is always zero; DDS files carry no user version.
func (d *Data) UserVersion() uint32 { return 0 }

// Header returns the root record, valid after Read.
func (d *Data) Header() *record.Record { return d.header }

// inspect consumes the magic and peeks the header size to pick the
// dialect. The size field stays unconsumed because it belongs to the
// header record.
func (d *Data) inspect(s *codec.Stream) error {
	pos, err := s.Pos()
	if err != nil {
		return err
	}
	head := make([]byte, 8)
	if err := s.ReadFull(head); err != nil {
		return &format.MismatchError{Format: "DDS", Reason: "too short for a magic and header size"}
	}
	if !bytes.Equal(head[:4], magic) {
		return &format.MismatchError{Format: "DDS", Reason: "missing DDS magic"}
	}
	// leave the cursor on the size field, it belongs to the header record
	if err := s.Seek(pos + 4); err != nil {
		return err
	}
	switch binary.LittleEndian.Uint32(head[4:]) {
	case sizeDX9:
		d.ctx.Version = VersionDX9
	case sizeDX10:
		d.ctx.Version = VersionDX10
	default:
		return &format.VersionError{Format: "DDS", Version: binary.LittleEndian.Uint32(head[4:])}
	}
	return nil
}

// InspectQuick checks the magic and header size, restoring the read
// position afterward.
func (d *Data) InspectQuick(s *codec.Stream) error {
	return d.Transition(format.StateInspected, s.PreservePos(func() error {
		return d.inspect(s)
	}))
}

// Inspect is identical to InspectQuick; everything past the size field
// needs the full header parse anyway.
func (d *Data) Inspect(s *codec.Stream) error {
	return d.InspectQuick(s)
}

// Read parses the header, any DX10 extension, and the surface bytes.
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
	if err := format.CheckExhausted("DDS", s); err != nil {
		return err
	}
	d.header = root
	return nil
}

// Write serializes the file. The DX10 dialect cannot be written back
// yet; attempting it fails loudly instead of producing a broken file.
func (d *Data) Write(s *codec.Stream) error {
	if d.header == nil {
		return &format.ContentError{Format: "DDS", Message: "no header record to write"}
	}
	if d.ctx.Version == VersionDX10 {
		return &format.NotImplementedError{Format: "DDS", Op: "writing the DX10 extension header"}
	}
	if err := s.WriteFull(magic); err != nil {
		return err
	}
	return d.header.Write(s)
}

// Format registers DDS with the format registry.
type Format struct{}

func (Format) Name() string { return "DDS" }

func (Format) Extensions() []string { return []string{".dds"} }

func (Format) New() (format.Data, error) {
	if _, err := loadSchema(); err != nil {
		return nil, err
	}
	return &Data{}, nil
}
