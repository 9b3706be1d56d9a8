// Package nif reads and writes NetImmerse and Gamebryo scene files.
//
// A NIF file is a human-readable version line, a binary header, a flat
// list of typed blocks, and a footer naming the scene roots. Blocks
// reference each other by signed index, -1 meaning none. How much the
// header carries grew over the format's life: a block type table from
// 5.0.0.1, an endian switch from 20.0.0.4, a shared string table from
// 20.1.0.3 and per-block byte sizes from 20.2.0.7. The embedded
// description covers the core scene graph types; files using blocks
// outside it are rejected rather than guessed at.
package nif

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/compiler"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/ir"
	"github.com/quellen/fileform/internal/record"

	_ "embed"
)

//go:embed nif.xml
var description []byte

var (
	schemaOnce sync.Once
	schema     *ir.Schema
	schemaErr  error
)

func loadSchema() (*ir.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = compiler.LoadFormat("NIF", description)
	})
	return schema, schemaErr
}

// Header line prefixes. NetImmerse renamed itself with 10.1.0.0.
const (
	prefixNetImmerse = "NetImmerse File Format, Version "
	prefixGamebryo   = "Gamebryo File Format, Version "
)

// Feature thresholds of the header layout.
const (
	verGamebryoName  = 0x0A010000
	verEndianByte    = 0x14000004
	verUserVersion   = 0x0A000108
	verBlockTypes    = 0x05000001
	verStringTable   = 0x14010003
	verBlockSizes    = 0x14020007
	noString         = 0xFFFFFFFF
	maxHeaderStrings = 1 << 20
)

// Data is one parsed NIF file.
type Data struct {
	format.Lifecycle

	ctx        record.Context
	headerLine string
	endian     byte
	numBlocks  uint32

	strings      []string
	maxStringLen uint32

	blocks     []*record.Record
	blockTypes []string // parallel to blocks
	roots      []int64
}

// NewData builds an empty little-endian file at the given versions,
// ready to be populated with AddBlock and written.
func NewData(version, userVersion uint32) (*Data, error) {
	sc, err := loadSchema()
	if err != nil {
		return nil, err
	}
	if !sc.SupportsVersion(version) {
		return nil, &format.VersionError{Format: "NIF", Version: version}
	}
	return &Data{
		ctx:    record.Context{Version: version, UserVersion: userVersion},
		endian: 1,
	}, nil
}

// AddBlock appends a new block of the given type and returns it with
// its index, for use in references.
func (d *Data) AddBlock(typeName string) (*record.Record, int64, error) {
	sc, err := loadSchema()
	if err != nil {
		return nil, 0, err
	}
	rec, err := record.NewFactory(sc, &d.ctx).NewRecordByName(typeName, "")
	if err != nil {
		return nil, 0, err
	}
	d.blocks = append(d.blocks, rec)
	d.blockTypes = append(d.blockTypes, typeName)
	return rec, int64(len(d.blocks) - 1), nil
}

// SetRoots replaces the footer's root list.
func (d *Data) SetRoots(roots ...int64) { d.roots = roots }

// AddString interns a string into the header table and returns its
// index, for name fields on versions with a string table.
func (d *Data) AddString(s string) uint32 {
	for i, have := range d.strings {
		if have == s {
			return uint32(i)
		}
	}
	d.strings = append(d.strings, s)
	return uint32(len(d.strings) - 1)
}

// Version reports the packed file version, valid once inspected.
func (d *Data) Version() uint32 { return d.ctx.Version }

// UserVersion reports the vendor version, valid once inspected.
func (d *Data) UserVersion() uint32 { return d.ctx.UserVersion }

// NumBlocks reports the block count, valid once inspected.
func (d *Data) NumBlocks() uint32 { return d.numBlocks }

// Blocks returns the block list, valid after Read.
func (d *Data) Blocks() []*record.Record { return d.blocks }

// BlockType returns the i-th block's type name.
func (d *Data) BlockType(i int) string { return d.blockTypes[i] }

// Roots returns the scene root block indices from the footer.
func (d *Data) Roots() []int64 { return d.roots }

// Block returns the i-th block.
func (d *Data) Block(i int) (*record.Record, error) {
	if i < 0 || i >= len(d.blocks) {
		return nil, fmt.Errorf("no block %d", i)
	}
	return d.blocks[i], nil
}

// Deref resolves a block reference. A -1 reference yields nil.
func (d *Data) Deref(ref int64) (*record.Record, error) {
	if ref == -1 {
		return nil, nil
	}
	if ref < 0 || ref >= int64(len(d.blocks)) {
		return nil, &format.ContentError{Format: "NIF", Message: fmt.Sprintf("block reference %d out of range", ref)}
	}
	return d.blocks[ref], nil
}

// Refs collects every block reference a record carries, in field
// order, descending into nested structs and reference arrays.
// Unassigned references come back as -1 like on the wire.
func Refs(rec *record.Record) ([]int64, error) {
	var out []int64
	if err := collectRefs(rec, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectRefs(rec *record.Record, out *[]int64) error {
	for _, f := range rec.TypedFields() {
		switch v := f.Value.(type) {
		case *record.Record:
			if err := collectRefs(v, out); err != nil {
				return err
			}
		case *record.Array:
			if f.Desc.Type == "ref" {
				vals, err := v.Ints()
				if err != nil {
					return err
				}
				*out = append(*out, vals...)
				continue
			}
			for _, e := range v.Elements() {
				sub, ok := e.(*record.Record)
				if !ok {
					break
				}
				if err := collectRefs(sub, out); err != nil {
					return err
				}
			}
		default:
			if f.Desc.Type != "ref" {
				continue
			}
			n, err := rec.Int(f.Desc.Name)
			if err != nil {
				return err
			}
			*out = append(*out, n)
		}
	}
	return nil
}

// BlockName resolves a block's object name, going through the header
// string table on versions that have one.
func (d *Data) BlockName(rec *record.Record) (string, error) {
	if d.ctx.Version >= verStringTable {
		idx, err := rec.Uint("Name Index")
		if err != nil {
			return "", err
		}
		if uint32(idx) == noString {
			return "", nil
		}
		if idx >= uint64(len(d.strings)) {
			return "", &format.ContentError{Format: "NIF", Message: fmt.Sprintf("string index %d out of range", idx)}
		}
		return d.strings[idx], nil
	}
	return rec.Str("Name")
}

// parseHeaderLine extracts the packed version from the version line.
func parseHeaderLine(line string) (uint32, error) {
	var verStr string
	switch {
	case strings.HasPrefix(line, prefixNetImmerse):
		verStr = line[len(prefixNetImmerse):]
	case strings.HasPrefix(line, prefixGamebryo):
		verStr = line[len(prefixGamebryo):]
	default:
		return 0, &format.MismatchError{Format: "NIF", Reason: "missing version line"}
	}
	v, err := ir.ParseVersion(strings.TrimSpace(verStr))
	if err != nil {
		return 0, &format.MismatchError{Format: "NIF", Reason: "unparseable version: " + err.Error()}
	}
	return v, nil
}

// headerLineFor renders the canonical version line.
func headerLineFor(version uint32) string {
	if version >= verGamebryoName {
		return prefixGamebryo + ir.FormatVersion(version)
	}
	return prefixNetImmerse + ir.FormatVersion(version)
}

func (d *Data) inspectLine(s *codec.Stream) error {
	line := codec.NewLineString("")
	if err := line.Read(s); err != nil {
		return &format.MismatchError{Format: "NIF", Reason: "no version line"}
	}
	v, err := parseHeaderLine(line.Value())
	if err != nil {
		return err
	}
	sc, err := loadSchema()
	if err != nil {
		return err
	}
	if !sc.SupportsVersion(v) {
		return &format.VersionError{Format: "NIF", Version: v}
	}
	d.headerLine = line.Value()
	d.ctx.Version = v
	return nil
}

// inspectHeader continues past the version line through the cheap
// fixed header fields.
func (d *Data) inspectHeader(s *codec.Stream) error {
	if err := d.inspectLine(s); err != nil {
		return err
	}
	v, err := readU32(s)
	if err != nil {
		return err
	}
	if v != d.ctx.Version {
		return &format.ContentError{
			Format:  "NIF",
			Message: fmt.Sprintf("binary version 0x%08X contradicts the version line 0x%08X", v, d.ctx.Version),
		}
	}
	d.endian = 1
	if d.ctx.Version >= verEndianByte {
		b, err := s.ReadByte()
		if err != nil {
			return err
		}
		if b > 1 {
			return &format.ContentError{Format: "NIF", Message: fmt.Sprintf("endian byte %d", b)}
		}
		d.endian = b
	}
	if d.endian == 0 {
		s.SetOrder(binary.BigEndian)
	}
	if d.ctx.Version >= verUserVersion {
		uv, err := readU32(s)
		if err != nil {
			return err
		}
		d.ctx.UserVersion = uv
	}
	if d.numBlocks, err = readU32(s); err != nil {
		return err
	}
	return nil
}

// InspectQuick classifies the stream by its version line alone,
// restoring the read position afterward.
func (d *Data) InspectQuick(s *codec.Stream) error {
	return d.Transition(format.StateInspected, s.PreservePos(func() error {
		return d.inspectLine(s)
	}))
}

// Inspect reads through the fixed header, picking up the endianness,
// user version and block count, with the same position guarantee.
func (d *Data) Inspect(s *codec.Stream) error {
	err := d.Transition(format.StateInspected, s.PreservePos(func() error {
		return d.inspectHeader(s)
	}))
	s.SetOrder(binary.LittleEndian)
	return err
}

// Read parses the whole file: header, block list and footer.
func (d *Data) Read(s *codec.Stream) error {
	err := d.Transition(format.StateRead, d.read(s))
	s.SetOrder(binary.LittleEndian)
	return err
}

func (d *Data) read(s *codec.Stream) error {
	if err := d.inspectHeader(s); err != nil {
		return err
	}
	sc, err := loadSchema()
	if err != nil {
		return err
	}
	fac := record.NewFactory(sc, &d.ctx)

	var typeTable []string
	var typeIndex []uint16
	if d.ctx.Version >= verBlockTypes {
		numTypes, err := readU16(s)
		if err != nil {
			return err
		}
		typeTable = make([]string, numTypes)
		for i := range typeTable {
			str := codec.NewSizedString("")
			if err := str.Read(s); err != nil {
				return err
			}
			typeTable[i] = str.Value()
		}
		typeIndex = make([]uint16, d.numBlocks)
		for i := range typeIndex {
			if typeIndex[i], err = readU16(s); err != nil {
				return err
			}
			if int(typeIndex[i]) >= len(typeTable) {
				return &format.ContentError{Format: "NIF", Message: fmt.Sprintf("block %d names type %d, table has %d", i, typeIndex[i], len(typeTable))}
			}
		}
	}

	var blockSizes []uint32
	if d.ctx.Version >= verBlockSizes {
		blockSizes = make([]uint32, d.numBlocks)
		for i := range blockSizes {
			if blockSizes[i], err = readU32(s); err != nil {
				return err
			}
		}
	}

	if d.ctx.Version >= verStringTable {
		numStrings, err := readU32(s)
		if err != nil {
			return err
		}
		if numStrings > maxHeaderStrings {
			return &codec.SizeError{What: "header string table", Length: int64(numStrings), Max: maxHeaderStrings}
		}
		if d.maxStringLen, err = readU32(s); err != nil {
			return err
		}
		d.strings = make([]string, numStrings)
		for i := range d.strings {
			str := codec.NewSizedString("")
			if err := str.Read(s); err != nil {
				return err
			}
			d.strings[i] = str.Value()
		}
	}

	blocks := make([]*record.Record, d.numBlocks)
	blockTypes := make([]string, d.numBlocks)
	for i := range blocks {
		var typeName string
		if d.ctx.Version >= verBlockTypes {
			typeName = typeTable[typeIndex[i]]
		} else {
			str := codec.NewSizedString("")
			if err := str.Read(s); err != nil {
				return err
			}
			typeName = str.Value()
		}
		if !sc.HasType(typeName) {
			return &format.ContentError{Format: "NIF", Message: "unknown block type " + typeName}
		}
		rec, err := fac.NewRecordByName(typeName, "")
		if err != nil {
			return err
		}
		before, err := s.Pos()
		if err != nil {
			return err
		}
		if err := rec.Read(s); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, typeName, err)
		}
		if blockSizes != nil {
			after, err := s.Pos()
			if err != nil {
				return err
			}
			if after-before != int64(blockSizes[i]) {
				return &format.ContentError{
					Format:  "NIF",
					Message: fmt.Sprintf("block %d (%s) took %d bytes, header promised %d", i, typeName, after-before, blockSizes[i]),
				}
			}
		}
		blocks[i] = rec
		blockTypes[i] = typeName
	}

	footer, err := fac.NewRecordByName("Footer", "")
	if err != nil {
		return err
	}
	if err := footer.Read(s); err != nil {
		return fmt.Errorf("footer: %w", err)
	}
	rootsArr, err := footer.Array("Roots")
	if err != nil {
		return err
	}
	roots, err := rootsArr.Ints()
	if err != nil {
		return err
	}
	for _, r := range roots {
		if r != -1 && (r < 0 || r >= int64(len(blocks))) {
			return &format.ContentError{Format: "NIF", Message: fmt.Sprintf("root reference %d out of range", r)}
		}
	}

	if err := format.CheckExhausted("NIF", s); err != nil {
		return err
	}
	d.blocks = blocks
	d.blockTypes = blockTypes
	d.roots = roots
	return nil
}

// Write serializes the whole file. The header tables are rebuilt from
// the block list, in first-appearance order, which is also the order
// reading produces.
func (d *Data) Write(s *codec.Stream) error {
	err := d.write(s)
	s.SetOrder(binary.LittleEndian)
	return err
}

func (d *Data) write(s *codec.Stream) error {
	if len(d.blocks) != len(d.blockTypes) {
		return &format.ContentError{Format: "NIF", Message: "block list and type list disagree"}
	}
	line := d.headerLine
	if line == "" {
		line = headerLineFor(d.ctx.Version)
	}
	if err := codec.NewLineString(line).Write(s); err != nil {
		return err
	}
	if err := writeU32(s, d.ctx.Version); err != nil {
		return err
	}
	if d.ctx.Version >= verEndianByte {
		if err := s.WriteFull([]byte{d.endian}); err != nil {
			return err
		}
	}
	if d.endian == 0 {
		s.SetOrder(binary.BigEndian)
	}
	if d.ctx.Version >= verUserVersion {
		if err := writeU32(s, d.ctx.UserVersion); err != nil {
			return err
		}
	}
	if err := writeU32(s, uint32(len(d.blocks))); err != nil {
		return err
	}

	if d.ctx.Version >= verBlockTypes {
		table, index := d.typeTable()
		if err := writeU16(s, uint16(len(table))); err != nil {
			return err
		}
		for _, t := range table {
			if err := codec.NewSizedString(t).Write(s); err != nil {
				return err
			}
		}
		for _, ix := range index {
			if err := writeU16(s, ix); err != nil {
				return err
			}
		}
	}

	if d.ctx.Version >= verBlockSizes {
		for i, b := range d.blocks {
			size, err := b.Size()
			if err != nil {
				return fmt.Errorf("block %d (%s): %w", i, d.blockTypes[i], err)
			}
			if err := writeU32(s, uint32(size)); err != nil {
				return err
			}
		}
	}

	if d.ctx.Version >= verStringTable {
		if err := writeU32(s, uint32(len(d.strings))); err != nil {
			return err
		}
		maxLen := uint32(0)
		for _, str := range d.strings {
			if l := uint32(len(str)); l > maxLen {
				maxLen = l
			}
		}
		if err := writeU32(s, maxLen); err != nil {
			return err
		}
		for _, str := range d.strings {
			if err := codec.NewSizedString(str).Write(s); err != nil {
				return err
			}
		}
	}

	for i, b := range d.blocks {
		if d.ctx.Version < verBlockTypes {
			if err := codec.NewSizedString(d.blockTypes[i]).Write(s); err != nil {
				return err
			}
		}
		if err := b.Write(s); err != nil {
			return fmt.Errorf("block %d (%s): %w", i, d.blockTypes[i], err)
		}
	}

	return d.writeFooter(s)
}

func (d *Data) writeFooter(s *codec.Stream) error {
	if err := writeU32(s, uint32(len(d.roots))); err != nil {
		return err
	}
	for _, r := range d.roots {
		if err := codec.NewInt32(int32(r)).Write(s); err != nil {
			return err
		}
	}
	return nil
}

// typeTable deduplicates the block types in first-appearance order.
func (d *Data) typeTable() ([]string, []uint16) {
	var table []string
	seen := map[string]uint16{}
	index := make([]uint16, len(d.blockTypes))
	for i, t := range d.blockTypes {
		ix, ok := seen[t]
		if !ok {
			ix = uint16(len(table))
			table = append(table, t)
			seen[t] = ix
		}
		index[i] = ix
	}
	return table, index
}

func readU16(s *codec.Stream) (uint16, error) {
	v := codec.NewUInt16(0)
	err := v.Read(s)
	return v.Value(), err
}

func readU32(s *codec.Stream) (uint32, error) {
	v := codec.NewUInt32(0)
	err := v.Read(s)
	return v.Value(), err
}

func writeU16(s *codec.Stream, v uint16) error {
	return codec.NewUInt16(v).Write(s)
}

func writeU32(s *codec.Stream, v uint32) error {
	return codec.NewUInt32(v).Write(s)
}

// Format registers NIF with the format registry.
type Format struct{}

func (Format) Name() string { return "NIF" }

func (Format) Extensions() []string { return []string{".nif", ".kf", ".kfa"} }

func (Format) New() (format.Data, error) {
	if _, err := loadSchema(); err != nil {
		return nil, err
	}
	return &Data{endian: 1}, nil
}
