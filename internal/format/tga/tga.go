// Package tga reads and writes Truevision Targa images.
//
// TGA has no magic number. Classification relies on the header fields
// only admitting a handful of values, and on the optional 26-byte
// footer whose signature marks the 2.0 revision of the format.
package tga

import (
	_ "embed"
	"sync"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/compiler"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/ir"
	"github.com/quellen/fileform/internal/record"
)

//go:embed tga.xml
var description []byte

var (
	schemaOnce sync.Once
	schema     *ir.Schema
	schemaErr  error
)

func loadSchema() (*ir.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = compiler.LoadFormat("TGA", description)
	})
	return schema, schemaErr
}

// FooterSignature identifies the 2.0 footer; a trailing NUL follows it
// on disk.
const FooterSignature = "TRUEVISION-XFILE."

const (
	headerLen = 18
	footerLen = 26

	// VersionOriginal is the footer-less 1.0 layout.
	VersionOriginal uint32 = 0x01000000
	// VersionNew is the 2.0 layout with the signature footer.
	VersionNew uint32 = 0x02000000
)

// Data is one parsed TGA file.
type Data struct {
	format.Lifecycle

	ctx    record.Context
	header *record.Record
	pixels []byte
	footer *record.Record
}

// Version reports the format revision, valid once inspected.
func (d *Data) Version() uint32 { return d.ctx.Version }

// UserVersion is always zero; TGA files carry no user version.
func (d *Data) UserVersion() uint32 { return 0 }

// Header returns the root record, valid after Read.
func (d *Data) Header() *record.Record { return d.header }

// Pixels returns the raw image bytes, still in their on-disk encoding.
func (d *Data) Pixels() []byte { return d.pixels }

// Footer returns the 2.0 footer record, or nil on 1.0 files.
func (d *Data) Footer() *record.Record { return d.footer }

// inspect vets the fixed header fields and probes for the footer. The
// cursor ends up back where it started so Read can parse the header as
// a record.
func (d *Data) inspect(s *codec.Stream) error {
	pos, err := s.Pos()
	if err != nil {
		return err
	}
	var hdr [headerLen]byte
	if err := s.ReadFull(hdr[:]); err != nil {
		return &format.MismatchError{Format: "TGA", Reason: "too short for a header"}
	}
	if hdr[1] > 1 {
		return &format.MismatchError{Format: "TGA", Reason: "implausible color map type"}
	}
	switch hdr[2] {
	case 0, 1, 2, 3, 9, 10, 11:
	default:
		return &format.MismatchError{Format: "TGA", Reason: "implausible image type"}
	}
	switch hdr[16] {
	case 8, 15, 16, 24, 32:
	default:
		return &format.MismatchError{Format: "TGA", Reason: "implausible pixel depth"}
	}

	d.ctx.Version = VersionOriginal
	end, err := s.Len()
	if err != nil {
		return err
	}
	if end-pos >= headerLen+footerLen {
		if err := s.Seek(end - footerLen); err != nil {
			return err
		}
		var ftr [footerLen]byte
		if err := s.ReadFull(ftr[:]); err != nil {
			return err
		}
		if string(ftr[8:]) == FooterSignature+"\x00" {
			d.ctx.Version = VersionNew
		}
	}
	return s.Seek(pos)
}

// InspectQuick vets the header bytes without moving the cursor.
func (d *Data) InspectQuick(s *codec.Stream) error {
	return d.Transition(format.StateInspected, s.PreservePos(func() error {
		return d.inspect(s)
	}))
}

// Inspect is identical to InspectQuick; the header is already the whole
// cheap story.
func (d *Data) Inspect(s *codec.Stream) error {
	return d.InspectQuick(s)
}

// Read parses the header, image bytes and any footer.
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
	header, err := fac.NewRecordByName("Header", "")
	if err != nil {
		return err
	}
	if err := header.Read(s); err != nil {
		return err
	}

	pos, err := s.Pos()
	if err != nil {
		return err
	}
	end, err := s.Len()
	if err != nil {
		return err
	}
	pixelLen := end - pos
	if d.ctx.Version == VersionNew {
		pixelLen -= footerLen
	}
	if pixelLen < 0 {
		return &format.ContentError{Format: "TGA", Message: "file too short for its footer"}
	}
	pixels := codec.NewBytes(int(pixelLen))
	if err := pixels.Read(s); err != nil {
		return err
	}

	var footer *record.Record
	if d.ctx.Version == VersionNew {
		if footer, err = fac.NewRecordByName("Footer", ""); err != nil {
			return err
		}
		if err := footer.Read(s); err != nil {
			return err
		}
	}
	if err := format.CheckExhausted("TGA", s); err != nil {
		return err
	}

	d.header = header
	d.pixels = pixels.Value()
	d.footer = footer
	return nil
}

// Write serializes the header, image bytes and any footer.
func (d *Data) Write(s *codec.Stream) error {
	if d.header == nil {
		return &format.ContentError{Format: "TGA", Message: "no header record to write"}
	}
	if err := d.header.Write(s); err != nil {
		return err
	}
	if err := s.WriteFull(d.pixels); err != nil {
		return err
	}
	if d.footer != nil {
		return d.footer.Write(s)
	}
	return nil
}

// Format registers TGA with the format registry.
type Format struct{}

func (Format) Name() string { return "TGA" }

func (Format) Extensions() []string { return []string{".tga"} }

func (Format) New() (format.Data, error) {
	if _, err := loadSchema(); err != nil {
		return nil, err
	}
	return &Data{}, nil
}
