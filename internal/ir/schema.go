package ir

import (
	"fmt"
	"sync"
)

// StructDef describes a record type: its inheritance parent and its own
// ordered field list. Flattening and filter tables are built by
// Schema.Finalize and are read-only afterward.
type StructDef struct {
	Name    string
	Inherit string // base struct name, empty for roots
	Generic bool   // declared with a template parameter
	Fields  []FieldDescriptor

	flat      []FieldDescriptor
	nameIndex map[string]int

	mu     sync.Mutex
	active map[verKey][]int
}

type verKey struct {
	version     uint32
	userVersion uint32
}

// Flattened returns the inheritance-flattened field list: base fields first,
// then own fields, with later duplicate names collapsed onto the first
// occurrence.
func (d *StructDef) Flattened() []FieldDescriptor { return d.flat }

// IndexOf returns the position of the named field in Flattened().
func (d *StructDef) IndexOf(name string) (int, bool) {
	i, ok := d.nameIndex[name]
	return i, ok
}

// ActiveFields returns the indexes into Flattened() of the fields whose
// version range and user-version restriction admit the given context. The
// result is cached per (version, userVersion) pair; presence conditions are
// not part of this table because they read sibling field values.
func (d *StructDef) ActiveFields(version, userVersion uint32) []int {
	key := verKey{version, userVersion}
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx, ok := d.active[key]; ok {
		return idx
	}
	var idx []int
	for i := range d.flat {
		f := &d.flat[i]
		if !f.InVersion(version) {
			continue
		}
		if f.UserVersion != nil && *f.UserVersion != userVersion {
			continue
		}
		idx = append(idx, i)
	}
	if d.active == nil {
		d.active = make(map[verKey][]int)
	}
	d.active[key] = idx
	return idx
}

// VersionDef maps a version string from the description to its numeric form.
type VersionDef struct {
	ID  string
	Num uint32
}

// Schema is a complete compiled format description. It is immutable after
// Finalize and safe to share between any number of record instances.
type Schema struct {
	Format   string
	Versions []VersionDef

	Basics    map[string]*BasicDef
	Enums     map[string]*EnumDef
	BitFields map[string]*BitFieldDef
	Structs   map[string]*StructDef

	// StructOrder preserves declaration order for tooling that walks the
	// whole description.
	StructOrder []string

	versionSet map[uint32]bool
}

// NewSchema creates an empty schema for the named format.
func NewSchema(format string) *Schema {
	return &Schema{
		Format:    format,
		Basics:    make(map[string]*BasicDef),
		Enums:     make(map[string]*EnumDef),
		BitFields: make(map[string]*BitFieldDef),
		Structs:   make(map[string]*StructDef),
	}
}

// SchemaError reports an inconsistency detected while finalizing a format
// description.
type SchemaError struct {
	Format  string
	Type    string
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s description, type %s: %s", e.Format, e.Type, e.Message)
}

// Finalize flattens inheritance, builds enum lookup tables and validates
// type references. Must be called exactly once, by the loader, before the
// schema is shared.
func (s *Schema) Finalize() error {
	s.versionSet = make(map[uint32]bool, len(s.Versions))
	for _, v := range s.Versions {
		s.versionSet[v.Num] = true
	}
	for _, e := range s.Enums {
		if _, ok := s.Basics[e.Storage]; !ok {
			return &SchemaError{Format: s.Format, Type: e.Name, Message: "enum storage type " + e.Storage + " is not a basic type"}
		}
		e.finalize()
	}
	for _, b := range s.BitFields {
		if _, ok := s.Basics[b.Storage]; !ok {
			return &SchemaError{Format: s.Format, Type: b.Name, Message: "bitfield storage type " + b.Storage + " is not a basic type"}
		}
	}
	for _, name := range s.StructOrder {
		if _, err := s.flatten(s.Structs[name], nil); err != nil {
			return err
		}
	}
	for _, d := range s.Structs {
		for i := range d.flat {
			f := &d.flat[i]
			if f.Type == TemplateType {
				continue
			}
			if !s.HasType(f.Type) {
				return &SchemaError{Format: s.Format, Type: d.Name, Message: "field " + f.Name + " has unknown type " + f.Type}
			}
		}
	}
	return nil
}

// flatten builds d.flat, recursing into the base chain first. seen guards
// against inheritance cycles.
func (s *Schema) flatten(d *StructDef, seen []string) ([]FieldDescriptor, error) {
	if d.flat != nil {
		return d.flat, nil
	}
	for _, n := range seen {
		if n == d.Name {
			return nil, &SchemaError{Format: s.Format, Type: d.Name, Message: "inheritance cycle"}
		}
	}
	var base []FieldDescriptor
	if d.Inherit != "" {
		parent, ok := s.Structs[d.Inherit]
		if !ok {
			return nil, &SchemaError{Format: s.Format, Type: d.Name, Message: "unknown base type " + d.Inherit}
		}
		var err error
		base, err = s.flatten(parent, append(seen, d.Name))
		if err != nil {
			return nil, err
		}
	}
	flat := make([]FieldDescriptor, 0, len(base)+len(d.Fields))
	names := make(map[string]bool, len(base)+len(d.Fields))
	for _, f := range base {
		flat = append(flat, f)
		names[f.Name] = true
	}
	for _, f := range d.Fields {
		if names[f.Name] {
			// First-seen duplicate wins; the redeclaration is dropped.
			continue
		}
		flat = append(flat, f)
		names[f.Name] = true
	}
	d.flat = flat
	d.nameIndex = make(map[string]int, len(flat))
	for i := range flat {
		d.nameIndex[flat[i].Name] = i
	}
	return flat, nil
}

// HasType reports whether name is any known type in the description.
func (s *Schema) HasType(name string) bool {
	if _, ok := s.Basics[name]; ok {
		return true
	}
	if _, ok := s.Enums[name]; ok {
		return true
	}
	if _, ok := s.BitFields[name]; ok {
		return true
	}
	_, ok := s.Structs[name]
	return ok
}

// SupportsVersion reports whether the numeric version appears in the
// description's version table. An empty table admits everything; single
// version formats omit the table.
func (s *Schema) SupportsVersion(num uint32) bool {
	if len(s.versionSet) == 0 {
		return true
	}
	return s.versionSet[num]
}

// VersionNum resolves a version string from the description's table.
func (s *Schema) VersionNum(id string) (uint32, bool) {
	for _, v := range s.Versions {
		if v.ID == id {
			return v.Num, true
		}
	}
	return 0, false
}
