// Package dir reads and writes Rockstar IMG directory files.
//
// A DIR file is a bare table of 32-byte entries, each an offset and a
// size in 2048-byte sectors plus a NUL-padded name. There is no magic
// and no version; classification leans on the fixed entry size and on
// the first entry's name looking like a file name.
package dir

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/compiler"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/ir"
	"github.com/quellen/fileform/internal/record"
)

//go:embed dir.xml
var description []byte

var (
	schemaOnce sync.Once
	schema     *ir.Schema
	schemaErr  error
)

func loadSchema() (*ir.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = compiler.LoadFormat("DIR", description)
	})
	return schema, schemaErr
}

const (
	entryLen = 32

	// SectorSize is the unit of the offset and size fields.
	SectorSize = 2048
)

// Data is one parsed DIR file.
type Data struct {
	format.Lifecycle

	ctx     record.Context
	entries []*record.Record
}

// Version is always zero; DIR files carry no version.
func (d *Data) Version() uint32 { return 0 }

// UserVersion is always zero.
func (d *Data) UserVersion() uint32 { return 0 }

// Entries returns the directory entries, valid after Read.
func (d *Data) Entries() []*record.Record { return d.entries }

// EntryByName finds an entry by file name, ignoring case the way the
// engines that consume these archives do.
func (d *Data) EntryByName(name string) (*record.Record, error) {
	for _, e := range d.entries {
		n, err := e.Str("Name")
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(n, name) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no entry named %q", name)
}

func (d *Data) inspect(s *codec.Stream) error {
	pos, err := s.Pos()
	if err != nil {
		return err
	}
	end, err := s.Len()
	if err != nil {
		return err
	}
	size := end - pos
	if size == 0 || size%entryLen != 0 {
		return &format.MismatchError{Format: "DIR", Reason: "size is not a multiple of the entry size"}
	}
	var first [entryLen]byte
	if err := s.ReadFull(first[:]); err != nil {
		return err
	}
	if !plausibleName(first[8:]) {
		return &format.MismatchError{Format: "DIR", Reason: "first entry name is not printable"}
	}
	return nil
}

// plausibleName accepts printable ASCII followed by NUL padding, with
// at least one name byte.
func plausibleName(b []byte) bool {
	n := 0
	for ; n < len(b); n++ {
		if b[n] == 0 {
			break
		}
		if b[n] < 0x20 || b[n] > 0x7E {
			return false
		}
	}
	if n == 0 {
		return false
	}
	for ; n < len(b); n++ {
		if b[n] != 0 {
			return false
		}
	}
	return true
}

// InspectQuick vets the table shape without moving the cursor.
func (d *Data) InspectQuick(s *codec.Stream) error {
	return d.Transition(format.StateInspected, s.PreservePos(func() error {
		return d.inspect(s)
	}))
}

// Inspect is identical to InspectQuick.
func (d *Data) Inspect(s *codec.Stream) error {
	return d.InspectQuick(s)
}

// Read parses every entry until the stream ends.
func (d *Data) Read(s *codec.Stream) error {
	return d.Transition(format.StateRead, d.read(s))
}

func (d *Data) read(s *codec.Stream) error {
	if err := s.PreservePos(func() error { return d.inspect(s) }); err != nil {
		return err
	}
	sc, err := loadSchema()
	if err != nil {
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
	count := (end - pos) / entryLen

	fac := record.NewFactory(sc, &d.ctx)
	entries := make([]*record.Record, 0, count)
	for i := int64(0); i < count; i++ {
		e, err := fac.NewRecordByName("Entry", "")
		if err != nil {
			return err
		}
		if err := e.Read(s); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	if err := format.CheckExhausted("DIR", s); err != nil {
		return err
	}
	d.entries = entries
	return nil
}

// Write serializes every entry.
func (d *Data) Write(s *codec.Stream) error {
	for i, e := range d.entries {
		if err := e.Write(s); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return nil
}

// Format registers DIR with the format registry.
type Format struct{}

func (Format) Name() string { return "DIR" }

func (Format) Extensions() []string { return []string{".dir"} }

func (Format) New() (format.Data, error) {
	if _, err := loadSchema(); err != nil {
		return nil, err
	}
	return &Data{}, nil
}
