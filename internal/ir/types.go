package ir

import (
	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/expr"
)

// TemplateType is the placeholder type name a field declares when its real
// type is the owning struct's template parameter. Resolution happens at
// record construction time.
const TemplateType = "TEMPLATE"

// FieldDescriptor is the static per-class metadata for one struct member.
// Descriptors are owned by the struct definition and shared read-only across
// all record instances. Length, width, argument and condition expressions may
// only reference fields declared earlier, so declaration order is a strict
// dependency order.
type FieldDescriptor struct {
	Name     string
	Type     string // type name, or TemplateType
	Template string // template argument for the field's type, or TemplateType

	// Arg is an optional runtime argument forwarded to the field's value,
	// evaluated against the owning record.
	Arg *expr.Expr

	// Length and Width are the array dimensions. Nil means scalar; Width
	// set without Length never occurs in a valid description.
	Length *expr.Expr
	Width  *expr.Expr

	// Cond is the presence condition, evaluated against the owning record.
	Cond *expr.Expr

	// VerCond is a second, independent condition keyed off version fields.
	VerCond *expr.Expr

	// Since and Until bound the versions in which the field exists.
	// Zero means unbounded on that side.
	Since uint32
	Until uint32

	// UserVersion, when non-nil, restricts the field to files with exactly
	// this user version.
	UserVersion *uint32

	// Default is the schema's default value in string form, applied when a
	// record is constructed.
	Default string
}

// IsArray reports whether the field is a one- or two-dimensional array.
func (f *FieldDescriptor) IsArray() bool { return f.Length != nil }

// InVersion reports whether the descriptor's version range admits version.
func (f *FieldDescriptor) InVersion(version uint32) bool {
	if f.Since != 0 && version < f.Since {
		return false
	}
	if f.Until != 0 && version > f.Until {
		return false
	}
	return true
}

// BasicDef describes a primitive type: its name in the description language
// and the codec constructor producing a fresh value of it.
type BasicDef struct {
	Name string
	// New constructs a zero value for a file of the given version. Almost
	// every type ignores the version; the NIF bool needs it because the
	// encoding narrowed from four bytes to one after 4.0.0.2.
	New func(version uint32) codec.Value
	// Integral marks types whose values participate in expressions and can
	// back enums and bitfields.
	Integral bool
	// Boolean marks the description language's bool, which narrows from
	// four bytes to one in later NIF versions.
	Boolean bool
}

// EnumOption is one named constant of an enum type.
type EnumOption struct {
	Name  string
	Value uint64
}

// EnumDef describes a named integer value set layered on a basic storage
// type.
type EnumDef struct {
	Name    string
	Storage string // basic type name
	Options []EnumOption

	byName  map[string]uint64
	byValue map[uint64]string
}

// ValueOf returns the numeric value of a named option.
func (d *EnumDef) ValueOf(name string) (uint64, bool) {
	v, ok := d.byName[name]
	return v, ok
}

// NameOf returns the option name for a numeric value, if any option has it.
func (d *EnumDef) NameOf(v uint64) (string, bool) {
	n, ok := d.byValue[v]
	return n, ok
}

func (d *EnumDef) finalize() {
	d.byName = make(map[string]uint64, len(d.Options))
	d.byValue = make(map[uint64]string, len(d.Options))
	for _, o := range d.Options {
		d.byName[o.Name] = o.Value
		if _, seen := d.byValue[o.Value]; !seen {
			d.byValue[o.Value] = o.Name
		}
	}
}

// BitMember is one packed sub-field of a bitfield, Width bits wide starting
// Pos bits from the least significant end of the storage integer.
type BitMember struct {
	Name  string
	Pos   uint
	Width uint
}

// Mask returns the member's mask within the storage integer.
func (m *BitMember) Mask() uint64 {
	return ((uint64(1) << m.Width) - 1) << m.Pos
}

// BitFieldDef describes a packed integer whose bits subdivide into named
// members. Members are declared least-significant first; Pos is assigned
// cumulatively at load time when the description omits it.
type BitFieldDef struct {
	Name    string
	Storage string // basic type name
	Members []BitMember
}

// Member looks up a member by name.
func (d *BitFieldDef) Member(name string) (*BitMember, bool) {
	for i := range d.Members {
		if d.Members[i].Name == name {
			return &d.Members[i], true
		}
	}
	return nil, false
}
