// Package kfm reads and writes Gamebryo KFM animation sequence files.
//
// A KFM file opens with a plain-text header line naming its version,
// followed by a little-endian binary body described by the embedded
// document. The version components in the header line are hexadecimal,
// unlike NIF where they are decimal.
package kfm

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/compiler"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/ir"
	"github.com/quellen/fileform/internal/record"
)

//go:embed kfm.xml
var description []byte

var (
	schemaOnce sync.Once
	schema     *ir.Schema
	schemaErr  error
)

func loadSchema() (*ir.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = compiler.LoadFormat("KFM", description)
	})
	return schema, schemaErr
}

// HeaderPrefix opens every KFM file; the dotted version string and a
// newline follow it.
const HeaderPrefix = ";Gamebryo KFM File Version "

// VersionNumber converts a dotted KFM version string to its packed form.
// Components are hexadecimal and left-aligned, so "1.2.4b" packs to
// 0x01024B00 and "1.0" to 0x01000000.
func VersionNumber(s string) (uint32, error) {
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return 0, fmt.Errorf("version %q has more than 4 components", s)
	}
	var num uint32
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return 0, fmt.Errorf("version %q: bad component %q", s, p)
		}
		num = num<<8 | uint32(n)
	}
	for i := len(parts); i < 4; i++ {
		num <<= 8
	}
	return num, nil
}

// Spellings that cannot be regenerated mechanically because a component
// keeps a leading zero digit, plus versions whose canonical form retains
// trailing zero components.
var knownSpellings = []struct {
	str string
	num uint32
}{
	{"2.0.0.0b", 0x0200000B},
	{"2.1.0.0", 0x02010000},
	{"2.2.0.0b", 0x0202000B},
}

// VersionString renders a packed version back to its dotted header form.
// Known versions use their canonical spelling; anything else drops
// trailing zero components down to a minimum of two.
func VersionString(num uint32) string {
	for _, kv := range knownSpellings {
		if kv.num == num {
			return kv.str
		}
	}
	parts := []uint32{num >> 24, num >> 16 & 0xFF, num >> 8 & 0xFF, num & 0xFF}
	n := 4
	for n > 2 && parts[n-1] == 0 {
		n--
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = strconv.FormatUint(uint64(parts[i]), 16)
	}
	return strings.Join(out, ".")
}

// Data is one parsed KFM file.
type Data struct {
	format.Lifecycle

	ctx        record.Context
	versionStr string
	header     *record.Record
}

// NewData builds an empty file at the given version with a default
// header record, ready to be populated and written.
func NewData(version uint32) (*Data, error) {
	sc, err := loadSchema()
	if err != nil {
		return nil, err
	}
	if !sc.SupportsVersion(version) {
		return nil, &format.VersionError{Format: "KFM", Version: version}
	}
	d := &Data{ctx: record.Context{Version: version}}
	fac := record.NewFactory(sc, &d.ctx)
	if d.header, err = fac.NewRecordByName("Header", ""); err != nil {
		return nil, err
	}
	return d, nil
}

// Version reports the packed version, valid once inspected.
func (d *Data) Version() uint32 { return d.ctx.Version }

// UserVersion is always zero; KFM files carry no user version.
func (d *Data) UserVersion() uint32 { return 0 }

// Header returns the root record, valid after Read.
func (d *Data) Header() *record.Record { return d.header }

func (d *Data) inspect(s *codec.Stream) error {
	line := codec.NewLineString("")
	if err := line.Read(s); err != nil {
		return &format.MismatchError{Format: "KFM", Reason: "no header line"}
	}
	text := line.Value()
	if !strings.HasPrefix(text, HeaderPrefix) {
		return &format.MismatchError{Format: "KFM", Reason: "missing header string"}
	}
	verStr := strings.TrimSpace(strings.TrimPrefix(text, HeaderPrefix))
	num, err := VersionNumber(verStr)
	if err != nil {
		return &format.MismatchError{Format: "KFM", Reason: err.Error()}
	}
	sc, err := loadSchema()
	if err != nil {
		return err
	}
	if !sc.SupportsVersion(num) {
		return &format.VersionError{Format: "KFM", Version: num}
	}
	d.versionStr = verStr
	d.ctx.Version = num
	return nil
}

// InspectQuick classifies the stream by its header line, restoring the
// read position afterward.
func (d *Data) InspectQuick(s *codec.Stream) error {
	return d.Transition(format.StateInspected, s.PreservePos(func() error {
		return d.inspect(s)
	}))
}

// Inspect is identical to InspectQuick; the header line already carries
// everything cheap a KFM file has to offer.
func (d *Data) Inspect(s *codec.Stream) error {
	return d.InspectQuick(s)
}

// Read parses the whole file, header line and binary body.
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
	if err := format.CheckExhausted("KFM", s); err != nil {
		return err
	}
	d.header = root
	return nil
}

// Write serializes the file. The header line reuses the spelling the
// file was read with, so a read-write cycle reproduces the bytes.
func (d *Data) Write(s *codec.Stream) error {
	if d.header == nil {
		return &format.ContentError{Format: "KFM", Message: "no header record to write"}
	}
	verStr := d.versionStr
	if verStr == "" {
		verStr = VersionString(d.ctx.Version)
	}
	line := codec.NewLineString(HeaderPrefix + verStr)
	if err := line.Write(s); err != nil {
		return err
	}
	return d.header.Write(s)
}

// Format registers KFM with the format registry.
type Format struct{}

func (Format) Name() string { return "KFM" }

func (Format) Extensions() []string { return []string{".kfm"} }

func (Format) New() (format.Data, error) {
	if _, err := loadSchema(); err != nil {
		return nil, err
	}
	return &Data{}, nil
}
