package record

import (
	"fmt"
	"io"
	"strings"
)

// dumpInlineCap bounds how many scalar array elements print on one
// line before the rest collapse into an ellipsis.
const dumpInlineCap = 16

// Dump writes an indented plain-text rendering of a value tree, for
// inspection tooling. The layout is stable so output can be diffed.
func Dump(w io.Writer, name string, v Value) error {
	p := &printer{w: w}
	p.value(0, name, v)
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) value(depth int, label string, v Value) {
	ind := strings.Repeat("  ", depth)
	switch x := v.(type) {
	case *Record:
		if label == "" {
			p.printf("%s%s\n", ind, x.def.Name)
		} else {
			p.printf("%s%s (%s)\n", ind, label, x.def.Name)
		}
		for _, f := range x.Fields() {
			p.value(depth+1, f.Name, f.Value)
		}
	case *Array:
		p.array(depth, label, x)
	case *Enum:
		p.printf("%s%s: %s\n", ind, label, x.Name())
	case *BitField:
		p.printf("%s%s: 0x%X\n", ind, label, x.Uint())
	case *prim:
		p.printf("%s%s: %s\n", ind, label, scalarText(x))
	default:
		p.printf("%s%s: ?\n", ind, label)
	}
}

func (p *printer) array(depth int, label string, a *Array) {
	ind := strings.Repeat("  ", depth)
	if a.TwoDim() {
		p.printf("%s%s: %d rows\n", ind, label, a.Len())
		for i := 0; i < a.Len(); i++ {
			p.row(depth+1, fmt.Sprintf("[%d]", i), a.Row(i))
		}
		return
	}

	elems := a.Elements()
	if scalars, ok := scalarTexts(elems); ok {
		p.printf("%s%s: [%s]\n", ind, label, strings.Join(scalars, ", "))
		return
	}
	p.printf("%s%s: %d entries\n", ind, label, len(elems))
	for i, e := range elems {
		p.value(depth+1, fmt.Sprintf("[%d]", i), e)
	}
}

func (p *printer) row(depth int, label string, elems []Value) {
	ind := strings.Repeat("  ", depth)
	if scalars, ok := scalarTexts(elems); ok {
		p.printf("%s%s: [%s]\n", ind, label, strings.Join(scalars, ", "))
		return
	}
	p.printf("%s%s: %d entries\n", ind, label, len(elems))
	for i, e := range elems {
		p.value(depth+1, fmt.Sprintf("[%d]", i), e)
	}
}

// scalarTexts renders a homogeneous scalar slice inline, or reports
// that the elements are structured and need their own lines.
func scalarTexts(elems []Value) ([]string, bool) {
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		pr, ok := e.(*prim)
		if !ok {
			return nil, false
		}
		if len(out) == dumpInlineCap {
			out = append(out, fmt.Sprintf("... %d more", len(elems)-dumpInlineCap))
			return out, true
		}
		out = append(out, scalarText(pr))
	}
	return out, true
}

func scalarText(p *prim) string {
	switch v := p.v.Get().(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(v))
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
