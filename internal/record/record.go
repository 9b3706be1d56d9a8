package record

import (
	"fmt"
	"strings"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/ir"
)

// Record is one concrete occurrence of a struct type. Child values are
// materialized lazily: fields the version filter or a presence condition
// rules out are never built during a read.
type Record struct {
	fac      *Factory
	def      *ir.StructDef
	template string
	arg      int64
	values   []Value
}

// Def returns the record's definition.
func (r *Record) Def() *ir.StructDef { return r.def }

func (r *Record) setArg(n int64) { r.arg = n }

// newField constructs the value for one descriptor, resolving template
// placeholders against the record's own template parameter.
func (r *Record) newField(fd *ir.FieldDescriptor) (Value, error) {
	typeName, template := fd.Type, fd.Template
	if typeName == ir.TemplateType {
		if r.template == "" {
			return nil, fmt.Errorf("%s.%s: template field in a record built without a template argument", r.def.Name, fd.Name)
		}
		typeName = r.template
	}
	if template == ir.TemplateType {
		template = r.template
	}
	if fd.IsArray() {
		return &Array{
			owner: r,
			fd:    fd,
			newElem: func() (Value, error) {
				return r.fac.New(typeName, template)
			},
		}, nil
	}
	v, err := r.fac.New(typeName, template)
	if err != nil {
		return nil, err
	}
	if fd.Default != "" {
		if err := setScalar(v, fd.Default); err != nil {
			return nil, fmt.Errorf("%s.%s: bad default: %w", r.def.Name, fd.Name, err)
		}
	}
	return v, nil
}

func setScalar(v Value, val any) error {
	switch x := v.(type) {
	case *prim:
		return x.v.Set(val)
	case *Enum:
		return x.Set(val)
	case *BitField:
		n, ok := asUint(val)
		if !ok {
			if s, isStr := val.(string); isStr {
				return x.storage.Set(s)
			}
			return fmt.Errorf("cannot set bitfield from %T", val)
		}
		return x.storage.Set(n)
	default:
		return fmt.Errorf("cannot set %T from a scalar", v)
	}
}

// ensure materializes the value at flat index i.
func (r *Record) ensure(i int) (Value, error) {
	if r.values[i] != nil {
		return r.values[i], nil
	}
	fd := &r.def.Flattened()[i]
	v, err := r.newField(fd)
	if err != nil {
		return nil, err
	}
	r.values[i] = v
	return v, nil
}

// fieldActive evaluates the instance-dependent part of the filter: the
// presence condition and the version condition. The version-range and
// user-version checks were already applied by the precomputed table.
func (r *Record) fieldActive(fd *ir.FieldDescriptor) (bool, error) {
	if fd.Cond != nil {
		ok, err := fd.Cond.EvalBool(r)
		if err != nil || !ok {
			return false, err
		}
	}
	if fd.VerCond != nil {
		ok, err := fd.VerCond.EvalBool(r)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// passArg evaluates the descriptor's runtime argument against this record
// and hands it to the child value.
func (r *Record) passArg(fd *ir.FieldDescriptor, v Value) error {
	if fd.Arg == nil {
		return nil
	}
	setter, ok := v.(argSetter)
	if !ok {
		return nil
	}
	n, err := fd.Arg.Eval(r)
	if err != nil {
		return fmt.Errorf("%s.%s: argument: %w", r.def.Name, fd.Name, err)
	}
	setter.setArg(n)
	return nil
}

// Read parses the record from the stream, iterating the filtered field list
// in declaration order.
func (r *Record) Read(s *codec.Stream) error {
	ctx := r.fac.ctx
	for _, i := range r.def.ActiveFields(ctx.Version, ctx.UserVersion) {
		fd := &r.def.Flattened()[i]
		active, err := r.fieldActive(fd)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", r.def.Name, fd.Name, err)
		}
		if !active {
			continue
		}
		v, err := r.ensure(i)
		if err != nil {
			return err
		}
		if err := r.passArg(fd, v); err != nil {
			return err
		}
		if err := v.Read(s); err != nil {
			return fmt.Errorf("%s.%s: %w", r.def.Name, fd.Name, err)
		}
	}
	return nil
}

// Write serializes the record, iterating the same filtered list and order
// as Read. Arrays verify their lengths against their length expressions and
// fail with a size error on mismatch.
func (r *Record) Write(s *codec.Stream) error {
	ctx := r.fac.ctx
	for _, i := range r.def.ActiveFields(ctx.Version, ctx.UserVersion) {
		fd := &r.def.Flattened()[i]
		active, err := r.fieldActive(fd)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", r.def.Name, fd.Name, err)
		}
		if !active {
			continue
		}
		v, err := r.ensure(i)
		if err != nil {
			return err
		}
		if err := r.passArg(fd, v); err != nil {
			return err
		}
		if err := v.Write(s); err != nil {
			return fmt.Errorf("%s.%s: %w", r.def.Name, fd.Name, err)
		}
	}
	return nil
}

// Size returns the wire size of the record in its current state: the sum of
// the sizes of its active fields.
func (r *Record) Size() (int64, error) {
	ctx := r.fac.ctx
	var total int64
	for _, i := range r.def.ActiveFields(ctx.Version, ctx.UserVersion) {
		fd := &r.def.Flattened()[i]
		active, err := r.fieldActive(fd)
		if err != nil {
			return 0, fmt.Errorf("%s.%s: %w", r.def.Name, fd.Name, err)
		}
		if !active {
			continue
		}
		v, err := r.ensure(i)
		if err != nil {
			return 0, err
		}
		n, err := v.Size()
		if err != nil {
			return 0, fmt.Errorf("%s.%s: %w", r.def.Name, fd.Name, err)
		}
		total += n
	}
	return total, nil
}

// Resolve implements expr.Context. The three context names Version,
// User Version and Argument resolve against the file context; everything
// else is a member lookup, descending into nested records and bitfields for
// multi-component paths.
func (r *Record) Resolve(path []string) (any, error) {
	switch path[0] {
	case "Version":
		return uint64(r.fac.ctx.Version), nil
	case "User Version":
		return uint64(r.fac.ctx.UserVersion), nil
	case "Argument", "ARG":
		return r.arg, nil
	}
	i, ok := r.def.IndexOf(path[0])
	if !ok {
		return nil, fmt.Errorf("%s has no field %s", r.def.Name, path[0])
	}
	v, err := r.ensure(i)
	if err != nil {
		return nil, err
	}
	if len(path) > 1 {
		switch x := v.(type) {
		case *Record:
			return x.Resolve(path[1:])
		case *BitField:
			if len(path) == 2 {
				return x.Member(path[1])
			}
		}
		return nil, fmt.Errorf("%s.%s is not a record", r.def.Name, strings.Join(path, "."))
	}
	return scalarOf(v)
}

// scalarOf reduces a value to an expression operand.
func scalarOf(v Value) (any, error) {
	switch x := v.(type) {
	case *prim:
		return x.v.Get(), nil
	case *Enum:
		return x.Uint(), nil
	case *BitField:
		return x.Uint(), nil
	case *Array:
		return x.intSlice()
	default:
		return nil, fmt.Errorf("%T is not a scalar", v)
	}
}

// Get returns the named field's value, materializing it if needed.
func (r *Record) Get(name string) (Value, error) {
	i, ok := r.def.IndexOf(name)
	if !ok {
		return nil, fmt.Errorf("%s has no field %s", r.def.Name, name)
	}
	return r.ensure(i)
}

// Sub returns the named field as a nested record.
func (r *Record) Sub(name string) (*Record, error) {
	v, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	rec, ok := v.(*Record)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a record", r.def.Name, name)
	}
	return rec, nil
}

// Array returns the named field as an array container.
func (r *Record) Array(name string) (*Array, error) {
	v, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	arr, ok := v.(*Array)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not an array", r.def.Name, name)
	}
	return arr, nil
}

// Uint returns the named field as an unsigned integer.
func (r *Record) Uint(name string) (uint64, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	s, err := scalarOf(v)
	if err != nil {
		return 0, err
	}
	n, ok := asUint(s)
	if !ok {
		return 0, fmt.Errorf("%s.%s is not an integer", r.def.Name, name)
	}
	return n, nil
}

// Int returns the named field as a signed integer.
func (r *Record) Int(name string) (int64, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	s, err := scalarOf(v)
	if err != nil {
		return 0, err
	}
	switch x := s.(type) {
	case int64:
		return x, nil
	case uint64:
		return int64(x), nil
	default:
		return 0, fmt.Errorf("%s.%s is not an integer", r.def.Name, name)
	}
}

// Float returns the named field as a float.
func (r *Record) Float(name string) (float64, error) {
	v, err := r.Get(name)
	if err != nil {
		return 0, err
	}
	p, ok := v.(*prim)
	if !ok {
		return 0, fmt.Errorf("%s.%s is not a float", r.def.Name, name)
	}
	f, ok := p.v.Get().(float64)
	if !ok {
		return 0, fmt.Errorf("%s.%s is not a float", r.def.Name, name)
	}
	return f, nil
}

// Str returns the named field as a string.
func (r *Record) Str(name string) (string, error) {
	v, err := r.Get(name)
	if err != nil {
		return "", err
	}
	p, ok := v.(*prim)
	if !ok {
		return "", fmt.Errorf("%s.%s is not a string", r.def.Name, name)
	}
	s, ok := p.v.Get().(string)
	if !ok {
		return "", fmt.Errorf("%s.%s is not a string", r.def.Name, name)
	}
	return s, nil
}

// Bytes returns the named field as a raw byte payload.
func (r *Record) Bytes(name string) ([]byte, error) {
	v, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	p, ok := v.(*prim)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a byte payload", r.def.Name, name)
	}
	b, ok := p.v.Get().([]byte)
	if !ok {
		return nil, fmt.Errorf("%s.%s is not a byte payload", r.def.Name, name)
	}
	return b, nil
}

// SetField stores a scalar into the named field.
func (r *Record) SetField(name string, val any) error {
	v, err := r.Get(name)
	if err != nil {
		return err
	}
	return setScalar(v, val)
}
