package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quellen/fileform/internal/codec"
)

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s := NewSchema("TEST")
	s.Basics["uint"] = &BasicDef{Name: "uint", New: func(uint32) codec.Value { return &codec.UInt32{} }, Integral: true}
	s.Basics["ushort"] = &BasicDef{Name: "ushort", New: func(uint32) codec.Value { return &codec.UInt16{} }, Integral: true}
	return s
}

func TestFlattenBaseFirst(t *testing.T) {
	s := testSchema(t)
	s.Structs["Base"] = &StructDef{
		Name: "Base",
		Fields: []FieldDescriptor{
			{Name: "A", Type: "uint"},
			{Name: "B", Type: "uint"},
		},
	}
	s.Structs["Derived"] = &StructDef{
		Name:    "Derived",
		Inherit: "Base",
		Fields: []FieldDescriptor{
			{Name: "C", Type: "ushort"},
		},
	}
	s.StructOrder = []string{"Base", "Derived"}
	require.NoError(t, s.Finalize())

	flat := s.Structs["Derived"].Flattened()
	require.Len(t, flat, 3)
	assert.Equal(t, "A", flat[0].Name)
	assert.Equal(t, "B", flat[1].Name)
	assert.Equal(t, "C", flat[2].Name)
}

func TestFlattenFirstSeenDuplicateWins(t *testing.T) {
	s := testSchema(t)
	s.Structs["Base"] = &StructDef{
		Name: "Base",
		Fields: []FieldDescriptor{
			{Name: "Flags", Type: "uint"},
		},
	}
	s.Structs["Derived"] = &StructDef{
		Name:    "Derived",
		Inherit: "Base",
		Fields: []FieldDescriptor{
			{Name: "Flags", Type: "ushort"}, // redeclaration, dropped
			{Name: "Extra", Type: "uint"},
		},
	}
	s.StructOrder = []string{"Base", "Derived"}
	require.NoError(t, s.Finalize())

	flat := s.Structs["Derived"].Flattened()
	require.Len(t, flat, 2)
	assert.Equal(t, "Flags", flat[0].Name)
	assert.Equal(t, "uint", flat[0].Type, "first-declared descriptor wins")
	assert.Equal(t, "Extra", flat[1].Name)

	// The collapse holds for any version pair.
	for _, ver := range []uint32{0, 1, 0x14000005} {
		idx := s.Structs["Derived"].ActiveFields(ver, 0)
		names := map[string]int{}
		for _, i := range idx {
			names[flat[i].Name]++
		}
		assert.LessOrEqual(t, names["Flags"], 1)
	}
}

func TestActiveFieldsVersionRange(t *testing.T) {
	uv := uint32(11)
	s := testSchema(t)
	s.Structs["Rec"] = &StructDef{
		Name: "Rec",
		Fields: []FieldDescriptor{
			{Name: "Always", Type: "uint"},
			{Name: "Old", Type: "uint", Until: 0x04000002},
			{Name: "New", Type: "uint", Since: 0x0A000100},
			{Name: "Branded", Type: "uint", UserVersion: &uv},
		},
	}
	s.StructOrder = []string{"Rec"}
	require.NoError(t, s.Finalize())
	rec := s.Structs["Rec"]

	names := func(version, userVersion uint32) []string {
		var out []string
		for _, i := range rec.ActiveFields(version, userVersion) {
			out = append(out, rec.Flattened()[i].Name)
		}
		return out
	}

	assert.Equal(t, []string{"Always", "Old"}, names(0x04000002, 0))
	assert.Equal(t, []string{"Always", "New"}, names(0x14000005, 0))
	assert.Equal(t, []string{"Always", "New", "Branded"}, names(0x14000005, 11))

	// Cached result is stable.
	assert.Equal(t, names(0x14000005, 11), names(0x14000005, 11))
}

func TestFinalizeRejectsUnknownTypes(t *testing.T) {
	s := testSchema(t)
	s.Structs["Rec"] = &StructDef{
		Name:   "Rec",
		Fields: []FieldDescriptor{{Name: "X", Type: "nosuch"}},
	}
	s.StructOrder = []string{"Rec"}
	var se *SchemaError
	require.ErrorAs(t, s.Finalize(), &se)
}

func TestFinalizeRejectsInheritanceCycle(t *testing.T) {
	s := testSchema(t)
	s.Structs["A"] = &StructDef{Name: "A", Inherit: "B"}
	s.Structs["B"] = &StructDef{Name: "B", Inherit: "A"}
	s.StructOrder = []string{"A", "B"}
	var se *SchemaError
	require.ErrorAs(t, s.Finalize(), &se)
}

func TestEnumLookup(t *testing.T) {
	s := testSchema(t)
	s.Enums["PixelFormat"] = &EnumDef{
		Name:    "PixelFormat",
		Storage: "uint",
		Options: []EnumOption{
			{Name: "FMT_RGB", Value: 0},
			{Name: "FMT_RGBA", Value: 1},
		},
	}
	require.NoError(t, s.Finalize())

	e := s.Enums["PixelFormat"]
	v, ok := e.ValueOf("FMT_RGBA")
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)
	n, ok := e.NameOf(0)
	require.True(t, ok)
	assert.Equal(t, "FMT_RGB", n)
	_, ok = e.NameOf(9)
	assert.False(t, ok)
}

func TestBitMemberMask(t *testing.T) {
	m := BitMember{Name: "level", Pos: 4, Width: 3}
	assert.Equal(t, uint64(0x70), m.Mask())
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		s    string
		want uint32
	}{
		{"20.2.0.7", 0x14020007},
		{"4.0.0.2", 0x04000002},
		{"3.1", 0x03010000},
		{"10.0.1.0", 0x0A000100},
	}
	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			got, err := ParseVersion(tt.s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.s, FormatVersion(got))
		})
	}

	_, err := ParseVersion("1.2.3.4.5")
	assert.Error(t, err)
	_, err = ParseVersion("300.1")
	assert.Error(t, err)
}
