package record

import (
	"fmt"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/ir"
)

// Enum is a named integer value set layered on an integral storage
// primitive. The wire form is the storage type's; the name mapping is pure
// convenience.
type Enum struct {
	def     *ir.EnumDef
	storage codec.Value
}

func (e *Enum) Read(s *codec.Stream) error  { return e.storage.Read(s) }
func (e *Enum) Write(s *codec.Stream) error { return e.storage.Write(s) }
func (e *Enum) Size() (int64, error)        { return e.storage.Size(), nil }

// Uint returns the numeric value.
func (e *Enum) Uint() uint64 {
	n, _ := asUint(e.storage.Get())
	return n
}

// Name returns the option name for the current value, or its decimal form
// when the value matches no option.
func (e *Enum) Name() string {
	if n, ok := e.def.NameOf(e.Uint()); ok {
		return n
	}
	return fmt.Sprintf("%d", e.Uint())
}

// Set accepts an option name or anything the storage type accepts.
func (e *Enum) Set(v any) error {
	if name, ok := v.(string); ok {
		if n, found := e.def.ValueOf(name); found {
			return e.storage.Set(n)
		}
	}
	return e.storage.Set(v)
}

// BitField is a packed integer whose bits subdivide into named members.
type BitField struct {
	def     *ir.BitFieldDef
	storage codec.Value
}

func (b *BitField) Read(s *codec.Stream) error  { return b.storage.Read(s) }
func (b *BitField) Write(s *codec.Stream) error { return b.storage.Write(s) }
func (b *BitField) Size() (int64, error)        { return b.storage.Size(), nil }

// Uint returns the whole packed integer.
func (b *BitField) Uint() uint64 {
	n, _ := asUint(b.storage.Get())
	return n
}

// Member extracts one named sub-field.
func (b *BitField) Member(name string) (uint64, error) {
	m, ok := b.def.Member(name)
	if !ok {
		return 0, fmt.Errorf("bitfield %s has no member %s", b.def.Name, name)
	}
	return (b.Uint() & m.Mask()) >> m.Pos, nil
}

// SetMember stores a value into one named sub-field, rejecting values wider
// than the member.
func (b *BitField) SetMember(name string, v uint64) error {
	m, ok := b.def.Member(name)
	if !ok {
		return fmt.Errorf("bitfield %s has no member %s", b.def.Name, name)
	}
	if v >= uint64(1)<<m.Width {
		return &codec.RangeError{Type: b.def.Name + "." + name, Value: v}
	}
	raw := b.Uint()&^m.Mask() | v<<m.Pos
	return b.storage.Set(raw)
}

func asUint(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int64:
		return uint64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
