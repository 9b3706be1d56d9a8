package record

import "github.com/quellen/fileform/internal/ir"

// Field pairs a descriptor name with its materialized value, for tooling
// that walks a parsed tree.
type Field struct {
	Name  string
	Value Value
}

// TypedField is Field with the full descriptor attached, for callers
// that dispatch on the declared type name.
type TypedField struct {
	Desc  *ir.FieldDescriptor
	Value Value
}

// TypedFields returns the record's materialized fields with their
// descriptors, in declaration order.
func (r *Record) TypedFields() []TypedField {
	flat := r.def.Flattened()
	out := make([]TypedField, 0, len(flat))
	for i := range flat {
		if r.values[i] == nil {
			continue
		}
		out = append(out, TypedField{Desc: &flat[i], Value: r.values[i]})
	}
	return out
}

// Fields returns the record's materialized fields in declaration order.
// Unmaterialized fields (filtered out, or simply never touched) are skipped.
func (r *Record) Fields() []Field {
	flat := r.def.Flattened()
	out := make([]Field, 0, len(flat))
	for i := range flat {
		if r.values[i] == nil {
			continue
		}
		out = append(out, Field{Name: flat[i].Name, Value: r.values[i]})
	}
	return out
}

// Walk visits v and every materialized descendant, parents before children.
// The visitor receives the field name that reached the value ("" for the
// root and for array elements) and can stop descent by returning false.
func Walk(name string, v Value, visit func(name string, v Value) bool) {
	if !visit(name, v) {
		return
	}
	switch x := v.(type) {
	case *Record:
		for _, f := range x.Fields() {
			Walk(f.Name, f.Value, visit)
		}
	case *Array:
		if x.TwoDim() {
			for i := 0; i < x.Len(); i++ {
				for _, e := range x.Row(i) {
					Walk("", e, visit)
				}
			}
			return
		}
		for _, e := range x.Elements() {
			Walk("", e, visit)
		}
	}
}
