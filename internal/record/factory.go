package record

import (
	"fmt"

	"github.com/quellen/fileform/internal/ir"
)

// Factory constructs record trees for one parsed file. It binds the
// immutable schema to the file's Context, so freshly built values pick up
// the right version-dependent encodings.
type Factory struct {
	schema *ir.Schema
	ctx    *Context
}

// NewFactory creates a factory over schema with the given file context.
func NewFactory(schema *ir.Schema, ctx *Context) *Factory {
	return &Factory{schema: schema, ctx: ctx}
}

// Schema returns the bound schema.
func (f *Factory) Schema() *ir.Schema { return f.schema }

// Context returns the bound file context.
func (f *Factory) Context() *Context { return f.ctx }

// New constructs a zero value of the named type. template supplies the
// concrete type for generic structs and is empty otherwise.
func (f *Factory) New(typeName, template string) (Value, error) {
	if bd, ok := f.schema.Basics[typeName]; ok {
		return &prim{v: bd.New(f.ctx.Version)}, nil
	}
	if ed, ok := f.schema.Enums[typeName]; ok {
		storage := f.schema.Basics[ed.Storage]
		return &Enum{def: ed, storage: storage.New(f.ctx.Version)}, nil
	}
	if bd, ok := f.schema.BitFields[typeName]; ok {
		storage := f.schema.Basics[bd.Storage]
		return &BitField{def: bd, storage: storage.New(f.ctx.Version)}, nil
	}
	if sd, ok := f.schema.Structs[typeName]; ok {
		return f.NewRecord(sd, template)
	}
	return nil, fmt.Errorf("%s description has no type %s", f.schema.Format, typeName)
}

// NewRecord constructs an empty record of the given definition. For generic
// definitions template names the concrete element type; field access fails
// later if it is missing.
func (f *Factory) NewRecord(def *ir.StructDef, template string) (*Record, error) {
	if !def.Generic && template != "" {
		return nil, fmt.Errorf("type %s does not take a template argument", def.Name)
	}
	return &Record{
		fac:      f,
		def:      def,
		template: template,
		values:   make([]Value, len(def.Flattened())),
	}, nil
}

// NewRecordByName is NewRecord with a schema lookup.
func (f *Factory) NewRecordByName(name, template string) (*Record, error) {
	def, ok := f.schema.Structs[name]
	if !ok {
		return nil, fmt.Errorf("%s description has no struct %s", f.schema.Format, name)
	}
	return f.NewRecord(def, template)
}
