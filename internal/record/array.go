package record

import (
	"fmt"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/ir"
)

// MaxArrayLen is the sanity ceiling on any evaluated array length. A corrupt
// count field fails the read instead of driving an unbounded allocation.
const MaxArrayLen = 10_000_000

// Array is a one- or two-dimensional homogeneous sequence whose lengths are
// expressions evaluated against the owning record. One-dimensional arrays
// use elems; two-dimensional arrays use rows.
type Array struct {
	owner   *Record
	fd      *ir.FieldDescriptor
	newElem func() (Value, error)
	arg     int64

	elems []Value
	rows  [][]Value
}

func (a *Array) setArg(n int64) { a.arg = n }

// TwoDim reports whether the array has a second dimension.
func (a *Array) TwoDim() bool { return a.fd.Width != nil }

// Len returns the first-dimension length.
func (a *Array) Len() int {
	if a.TwoDim() {
		return len(a.rows)
	}
	return len(a.elems)
}

// At returns the i-th element of a one-dimensional array.
func (a *Array) At(i int) Value { return a.elems[i] }

// Row returns the i-th row of a two-dimensional array.
func (a *Array) Row(i int) []Value { return a.rows[i] }

// Elements returns the backing slice of a one-dimensional array.
func (a *Array) Elements() []Value { return a.elems }

func (a *Array) build() (Value, error) {
	v, err := a.newElem()
	if err != nil {
		return nil, err
	}
	if setter, ok := v.(argSetter); ok {
		setter.setArg(a.arg)
	}
	return v, nil
}

// length evaluates the first-dimension expression and applies the ceiling.
func (a *Array) length() (int, error) {
	n, err := a.fd.Length.Eval(a.owner)
	if err != nil {
		return 0, fmt.Errorf("array %s length: %w", a.fd.Name, err)
	}
	if n < 0 || n > MaxArrayLen {
		return 0, &codec.SizeError{What: "array " + a.fd.Name, Length: n, Max: MaxArrayLen}
	}
	return int(n), nil
}

// widths evaluates the second-dimension expression. The expression may
// resolve to a sibling integer, giving a uniform width, or to a sibling
// array of integers, giving one width per row (strip lengths are the
// classic case).
func (a *Array) widths(rowCount int) ([]int, error) {
	v, err := a.fd.Width.EvalValue(a.owner)
	if err != nil {
		return nil, fmt.Errorf("array %s width: %w", a.fd.Name, err)
	}
	out := make([]int, rowCount)
	if per, ok := v.([]int64); ok {
		if len(per) < rowCount {
			return nil, &codec.SizeError{What: "array " + a.fd.Name + " widths", Length: int64(len(per)), Max: int64(rowCount)}
		}
		for i := 0; i < rowCount; i++ {
			if per[i] < 0 || per[i] > MaxArrayLen {
				return nil, &codec.SizeError{What: "array " + a.fd.Name, Length: per[i], Max: MaxArrayLen}
			}
			out[i] = int(per[i])
		}
		return out, nil
	}
	n, ok := asUint(v)
	if !ok {
		return nil, fmt.Errorf("array %s width is not an integer", a.fd.Name)
	}
	if n > MaxArrayLen {
		return nil, &codec.SizeError{What: "array " + a.fd.Name, Length: int64(n), Max: MaxArrayLen}
	}
	for i := range out {
		out[i] = int(n)
	}
	return out, nil
}

// Read discards the current contents and parses length-expression many
// elements from the stream.
func (a *Array) Read(s *codec.Stream) error {
	n, err := a.length()
	if err != nil {
		return err
	}
	if a.TwoDim() {
		ws, err := a.widths(n)
		if err != nil {
			return err
		}
		a.rows = make([][]Value, n)
		for i := 0; i < n; i++ {
			row := make([]Value, ws[i])
			for j := range row {
				v, err := a.build()
				if err != nil {
					return err
				}
				if err := v.Read(s); err != nil {
					return fmt.Errorf("array %s[%d][%d]: %w", a.fd.Name, i, j, err)
				}
				row[j] = v
			}
			a.rows[i] = row
		}
		return nil
	}
	a.elems = make([]Value, n)
	for i := 0; i < n; i++ {
		v, err := a.build()
		if err != nil {
			return err
		}
		if err := v.Read(s); err != nil {
			return fmt.Errorf("array %s[%d]: %w", a.fd.Name, i, err)
		}
		a.elems[i] = v
	}
	return nil
}

// Write serializes the array after verifying the invariant that the backing
// length matches a fresh evaluation of the length expression. Callers that
// resized without running UpdateSize get a size error, not corrupt output.
func (a *Array) Write(s *codec.Stream) error {
	n, err := a.length()
	if err != nil {
		return err
	}
	if a.Len() != n {
		return &codec.SizeError{What: "array " + a.fd.Name + " (length field disagrees with contents)", Length: int64(a.Len()), Max: int64(n)}
	}
	if a.TwoDim() {
		ws, err := a.widths(n)
		if err != nil {
			return err
		}
		for i, row := range a.rows {
			if len(row) != ws[i] {
				return &codec.SizeError{What: fmt.Sprintf("array %s row %d", a.fd.Name, i), Length: int64(len(row)), Max: int64(ws[i])}
			}
			for j, v := range row {
				if err := v.Write(s); err != nil {
					return fmt.Errorf("array %s[%d][%d]: %w", a.fd.Name, i, j, err)
				}
			}
		}
		return nil
	}
	for i, v := range a.elems {
		if err := v.Write(s); err != nil {
			return fmt.Errorf("array %s[%d]: %w", a.fd.Name, i, err)
		}
	}
	return nil
}

// Size sums the element sizes.
func (a *Array) Size() (int64, error) {
	var total int64
	add := func(v Value) error {
		n, err := v.Size()
		if err != nil {
			return err
		}
		total += n
		return nil
	}
	if a.TwoDim() {
		for _, row := range a.rows {
			for _, v := range row {
				if err := add(v); err != nil {
					return 0, err
				}
			}
		}
		return total, nil
	}
	for _, v := range a.elems {
		if err := add(v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// UpdateSize re-evaluates the length expressions and grows or shrinks the
// backing sequence to match, default-constructing new elements and
// discarding excess ones from the end.
func (a *Array) UpdateSize() error {
	n, err := a.length()
	if err != nil {
		return err
	}
	if a.TwoDim() {
		ws, err := a.widths(n)
		if err != nil {
			return err
		}
		if len(a.rows) > n {
			a.rows = a.rows[:n]
		}
		for len(a.rows) < n {
			a.rows = append(a.rows, nil)
		}
		for i := range a.rows {
			if len(a.rows[i]) > ws[i] {
				a.rows[i] = a.rows[i][:ws[i]]
			}
			for len(a.rows[i]) < ws[i] {
				v, err := a.build()
				if err != nil {
					return err
				}
				a.rows[i] = append(a.rows[i], v)
			}
		}
		return nil
	}
	if len(a.elems) > n {
		a.elems = a.elems[:n]
	}
	for len(a.elems) < n {
		v, err := a.build()
		if err != nil {
			return err
		}
		a.elems = append(a.elems, v)
	}
	return nil
}

// Ints flattens a one-dimensional integral array into a signed slice.
func (a *Array) Ints() ([]int64, error) { return a.intSlice() }

// SetAt stores a scalar into element i.
func (a *Array) SetAt(i int, v any) error {
	if i < 0 || i >= len(a.elems) {
		return fmt.Errorf("array %s has no element %d", a.fd.Name, i)
	}
	return setScalar(a.elems[i], v)
}

// intSlice flattens a one-dimensional integral array into expression
// operand form, serving per-row width lookups.
func (a *Array) intSlice() ([]int64, error) {
	if a.TwoDim() {
		return nil, fmt.Errorf("array %s is two-dimensional", a.fd.Name)
	}
	out := make([]int64, len(a.elems))
	for i, v := range a.elems {
		s, err := scalarOf(v)
		if err != nil {
			return nil, err
		}
		n, ok := asUint(s)
		if !ok {
			return nil, fmt.Errorf("array %s element %d is not an integer", a.fd.Name, i)
		}
		out[i] = int64(n)
	}
	return out, nil
}
