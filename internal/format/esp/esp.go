// Package esp reads Bethesda plugin files (.esp, .esm, .ess).
//
// A plugin is a flat sequence of records and GRUP containers, each
// introduced by a four-byte type tag. The layout is self-describing
// enough that no format description document is needed; what varies
// between game generations is the record header width. Oblivion-era
// files use 20-byte record headers, later games append a version and
// an unknown pair for 24. Strings are Windows-1252, never UTF-8.
package esp

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding/charmap"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
)

// FlagCompressed marks a record whose payload is a uint32 decompressed
// size followed by a zlib stream.
const FlagCompressed = 0x00040000

// maxRecordSize guards length fields read from hostile files.
const maxRecordSize = 1 << 28

// Entry is one top-level or group-nested element: a *Record or a
// *Group.
type Entry interface {
	// Tag returns the four-character type.
	Tag() string

	size(headerLen int) int64
	write(s *codec.Stream, headerLen int) error
}

// Record is one leaf record. The payload is kept exactly as it was on
// disk, compressed records included, so writing reproduces the input.
type Record struct {
	Type     string
	Flags    uint32
	FormID   uint32
	Revision uint32
	Version  uint16
	Unknown  uint16

	data []byte
}

// Tag returns the record type.
func (r *Record) Tag() string { return r.Type }

// Compressed reports whether the payload is zlib-compressed.
func (r *Record) Compressed() bool { return r.Flags&FlagCompressed != 0 }

// Data returns the raw on-disk payload.
func (r *Record) Data() []byte { return r.data }

// Payload returns the decompressed payload.
func (r *Record) Payload() ([]byte, error) {
	if !r.Compressed() {
		return r.data, nil
	}
	if len(r.data) < 4 {
		return nil, &format.ContentError{Format: "ESP", Message: "compressed record too short for its size field"}
	}
	want := binary.LittleEndian.Uint32(r.data)
	if want > maxRecordSize {
		return nil, &codec.SizeError{What: "decompressed record", Length: int64(want), Max: maxRecordSize}
	}
	zr, err := zlib.NewReader(bytes.NewReader(r.data[4:]))
	if err != nil {
		return nil, &format.ContentError{Format: "ESP", Message: "bad zlib stream: " + err.Error()}
	}
	defer zr.Close()
	out, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil {
		return nil, &format.ContentError{Format: "ESP", Message: "bad zlib stream: " + err.Error()}
	}
	if uint32(len(out)) != want {
		return nil, &format.ContentError{
			Format:  "ESP",
			Message: fmt.Sprintf("record inflated to %d bytes, header promised %d", len(out), want),
		}
	}
	return out, nil
}

// Subrecord is one typed field inside a record payload.
type Subrecord struct {
	Type string
	Data []byte
}

// String decodes the subrecord as a NUL-terminated Windows-1252 string.
func (sr Subrecord) String() (string, error) {
	b := sr.Data
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	return charmap.Windows1252.NewDecoder().String(string(b))
}

// Uint32 decodes the subrecord as a little-endian uint32.
func (sr Subrecord) Uint32() (uint32, error) {
	if len(sr.Data) != 4 {
		return 0, fmt.Errorf("subrecord %s is %d bytes, not 4", sr.Type, len(sr.Data))
	}
	return binary.LittleEndian.Uint32(sr.Data), nil
}

// Subrecords decodes the record payload into its typed fields. An XXXX
// subrecord announces an oversized successor and is folded into it.
func (r *Record) Subrecords() ([]Subrecord, error) {
	payload, err := r.Payload()
	if err != nil {
		return nil, err
	}
	var out []Subrecord
	var bigSize uint32
	haveBig := false
	for len(payload) > 0 {
		if len(payload) < 6 {
			return nil, &format.ContentError{Format: "ESP", Message: "truncated subrecord header"}
		}
		typ := string(payload[:4])
		size := int(binary.LittleEndian.Uint16(payload[4:6]))
		payload = payload[6:]
		if typ == "XXXX" {
			if size != 4 || len(payload) < 4 {
				return nil, &format.ContentError{Format: "ESP", Message: "malformed XXXX subrecord"}
			}
			bigSize = binary.LittleEndian.Uint32(payload)
			haveBig = true
			payload = payload[4:]
			continue
		}
		if haveBig {
			size = int(bigSize)
			haveBig = false
		}
		if len(payload) < size {
			return nil, &format.ContentError{Format: "ESP", Message: "subrecord " + typ + " overruns its record"}
		}
		out = append(out, Subrecord{Type: typ, Data: payload[:size]})
		payload = payload[size:]
	}
	return out, nil
}

// Subrecord finds the first subrecord of the given type.
func (r *Record) Subrecord(typ string) (Subrecord, bool, error) {
	subs, err := r.Subrecords()
	if err != nil {
		return Subrecord{}, false, err
	}
	for _, sr := range subs {
		if sr.Type == typ {
			return sr, true, nil
		}
	}
	return Subrecord{}, false, nil
}

// EditorID returns the record's EDID string, or "" when absent.
func (r *Record) EditorID() (string, error) {
	sr, ok, err := r.Subrecord("EDID")
	if err != nil || !ok {
		return "", err
	}
	return sr.String()
}

func (r *Record) size(headerLen int) int64 {
	return int64(headerLen) + int64(len(r.data))
}

func (r *Record) write(s *codec.Stream, headerLen int) error {
	hdr := make([]byte, headerLen)
	copy(hdr, r.Type)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(r.data)))
	binary.LittleEndian.PutUint32(hdr[8:], r.Flags)
	binary.LittleEndian.PutUint32(hdr[12:], r.FormID)
	binary.LittleEndian.PutUint32(hdr[16:], r.Revision)
	if headerLen == headerLenNew {
		binary.LittleEndian.PutUint16(hdr[20:], r.Version)
		binary.LittleEndian.PutUint16(hdr[22:], r.Unknown)
	}
	if err := s.WriteFull(hdr); err != nil {
		return err
	}
	return s.WriteFull(r.data)
}

// Group is one GRUP container.
type Group struct {
	Label     [4]byte
	GroupType int32
	Stamp     uint32
	Extra     uint32
	Children  []Entry
}

// Tag returns "GRUP".
func (g *Group) Tag() string { return "GRUP" }

func (g *Group) size(headerLen int) int64 {
	total := int64(headerLen)
	for _, c := range g.Children {
		total += c.size(headerLen)
	}
	return total
}

func (g *Group) write(s *codec.Stream, headerLen int) error {
	hdr := make([]byte, headerLen)
	copy(hdr, "GRUP")
	binary.LittleEndian.PutUint32(hdr[4:], uint32(g.size(headerLen)))
	copy(hdr[8:], g.Label[:])
	binary.LittleEndian.PutUint32(hdr[12:], uint32(g.GroupType))
	binary.LittleEndian.PutUint32(hdr[16:], g.Stamp)
	if headerLen == headerLenNew {
		binary.LittleEndian.PutUint32(hdr[20:], g.Extra)
	}
	if err := s.WriteFull(hdr); err != nil {
		return err
	}
	for _, c := range g.Children {
		if err := c.write(s, headerLen); err != nil {
			return err
		}
	}
	return nil
}

// Walk visits every record under the group, descending into nested
// groups.
func (g *Group) Walk(visit func(*Record) error) error {
	for _, c := range g.Children {
		switch e := c.(type) {
		case *Record:
			if err := visit(e); err != nil {
				return err
			}
		case *Group:
			if err := e.Walk(visit); err != nil {
				return err
			}
		}
	}
	return nil
}

const (
	headerLenOld = 20
	headerLenNew = 24
)

// Data is one parsed plugin file.
type Data struct {
	format.Lifecycle

	headerLen int
	tes4      *Record
	entries   []Entry
}

// Version reports the TES4 record's header version field: zero on
// Oblivion-era files, 40 and up on later games.
func (d *Data) Version() uint32 {
	if d.tes4 == nil {
		return 0
	}
	return uint32(d.tes4.Version)
}

// UserVersion is always zero; plugins carry no user version.
func (d *Data) UserVersion() uint32 { return 0 }

// Header returns the TES4 record, valid after Read.
func (d *Data) Header() *Record { return d.tes4 }

// Entries returns the top-level records and groups after the TES4
// header.
func (d *Data) Entries() []Entry { return d.entries }

// Walk visits every record in the file, the TES4 header first.
func (d *Data) Walk(visit func(*Record) error) error {
	if d.tes4 != nil {
		if err := visit(d.tes4); err != nil {
			return err
		}
	}
	for _, e := range d.entries {
		switch c := e.(type) {
		case *Record:
			if err := visit(c); err != nil {
				return err
			}
		case *Group:
			if err := c.Walk(visit); err != nil {
				return err
			}
		}
	}
	return nil
}

// inspect vets the TES4 magic and decides the record header width. The
// width is observable without version knowledge: on old files the
// TES4 subrecords start right after the 20-byte header, so bytes 20:24
// spell a subrecord tag, which is always "HEDR" first.
func (d *Data) inspect(s *codec.Stream) error {
	var head [24]byte
	if err := s.ReadFull(head[:]); err != nil {
		return &format.MismatchError{Format: "ESP", Reason: "too short for a TES4 header"}
	}
	if string(head[:4]) != "TES4" {
		return &format.MismatchError{Format: "ESP", Reason: "missing TES4 record"}
	}
	if string(head[20:24]) == "HEDR" {
		d.headerLen = headerLenOld
	} else {
		d.headerLen = headerLenNew
	}
	return nil
}

// InspectQuick checks the TES4 magic without moving the cursor.
func (d *Data) InspectQuick(s *codec.Stream) error {
	return d.Transition(format.StateInspected, s.PreservePos(func() error {
		return d.inspect(s)
	}))
}

// Inspect is identical to InspectQuick.
func (d *Data) Inspect(s *codec.Stream) error {
	return d.InspectQuick(s)
}

// Read parses the whole plugin.
func (d *Data) Read(s *codec.Stream) error {
	return d.Transition(format.StateRead, d.read(s))
}

func (d *Data) read(s *codec.Stream) error {
	if err := s.PreservePos(func() error { return d.inspect(s) }); err != nil {
		return err
	}
	end, err := s.Len()
	if err != nil {
		return err
	}

	tes4, err := d.readEntry(s)
	if err != nil {
		return err
	}
	rec, ok := tes4.(*Record)
	if !ok || rec.Type != "TES4" {
		return &format.ContentError{Format: "ESP", Message: "first entry is not the TES4 record"}
	}

	var entries []Entry
	for {
		pos, err := s.Pos()
		if err != nil {
			return err
		}
		if pos >= end {
			break
		}
		e, err := d.readEntry(s)
		if err != nil {
			return err
		}
		entries = append(entries, e)
	}
	if err := format.CheckExhausted("ESP", s); err != nil {
		return err
	}
	d.tes4 = rec
	d.entries = entries
	return nil
}

func (d *Data) readEntry(s *codec.Stream) (Entry, error) {
	hdr := make([]byte, d.headerLen)
	if err := s.ReadFull(hdr); err != nil {
		return nil, err
	}
	typ := string(hdr[:4])
	if typ == "GRUP" {
		return d.readGroup(s, hdr)
	}

	size := binary.LittleEndian.Uint32(hdr[4:])
	if size > maxRecordSize {
		return nil, &codec.SizeError{What: "record " + typ, Length: int64(size), Max: maxRecordSize}
	}
	rec := &Record{
		Type:     typ,
		Flags:    binary.LittleEndian.Uint32(hdr[8:]),
		FormID:   binary.LittleEndian.Uint32(hdr[12:]),
		Revision: binary.LittleEndian.Uint32(hdr[16:]),
		data:     make([]byte, size),
	}
	if d.headerLen == headerLenNew {
		rec.Version = binary.LittleEndian.Uint16(hdr[20:])
		rec.Unknown = binary.LittleEndian.Uint16(hdr[22:])
	}
	if err := s.ReadFull(rec.data); err != nil {
		return nil, fmt.Errorf("record %s: %w", typ, err)
	}
	return rec, nil
}

// readGroup parses a GRUP whose header was already consumed. The group
// size field counts the header itself.
func (d *Data) readGroup(s *codec.Stream, hdr []byte) (Entry, error) {
	size := int64(binary.LittleEndian.Uint32(hdr[4:]))
	if size < int64(d.headerLen) || size > maxRecordSize {
		return nil, &format.ContentError{Format: "ESP", Message: fmt.Sprintf("group size %d out of range", size)}
	}
	g := &Group{
		GroupType: int32(binary.LittleEndian.Uint32(hdr[12:])),
		Stamp:     binary.LittleEndian.Uint32(hdr[16:]),
	}
	copy(g.Label[:], hdr[8:12])
	if d.headerLen == headerLenNew {
		g.Extra = binary.LittleEndian.Uint32(hdr[20:])
	}

	start, err := s.Pos()
	if err != nil {
		return nil, err
	}
	end := start + size - int64(d.headerLen)
	for {
		pos, err := s.Pos()
		if err != nil {
			return nil, err
		}
		if pos >= end {
			if pos > end {
				return nil, &format.ContentError{Format: "ESP", Message: "group children overrun the group size"}
			}
			break
		}
		child, err := d.readEntry(s)
		if err != nil {
			return nil, err
		}
		g.Children = append(g.Children, child)
	}
	return g, nil
}

// Write serializes the whole plugin.
func (d *Data) Write(s *codec.Stream) error {
	if d.tes4 == nil {
		return &format.ContentError{Format: "ESP", Message: "no TES4 record to write"}
	}
	if err := d.tes4.write(s, d.headerLen); err != nil {
		return err
	}
	for _, e := range d.entries {
		if err := e.write(s, d.headerLen); err != nil {
			return err
		}
	}
	return nil
}

// Format registers ESP with the format registry.
type Format struct{}

func (Format) Name() string { return "ESP" }

func (Format) Extensions() []string { return []string{".esp", ".esm", ".ess"} }

func (Format) New() (format.Data, error) { return &Data{}, nil }
