package compiler

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/quellen/fileform/internal/expr"
	"github.com/quellen/fileform/internal/ir"
)

// CompileError reports a malformed description document.
type CompileError struct {
	Format  string
	Element string
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s description, %s: %s", e.Format, e.Element, e.Message)
}

// xmlFormat mirrors the description document structure.
type xmlFormat struct {
	XMLName   xml.Name       `xml:"fileformat"`
	Format    string         `xml:"format,attr"`
	Versions  []xmlVersion   `xml:"version"`
	Basics    []xmlBasic     `xml:"basic"`
	Enums     []xmlEnum      `xml:"enum"`
	BitFields []xmlBitField  `xml:"bitfield"`
	Structs   []xmlStruct    `xml:"struct"`
}

type xmlVersion struct {
	Num string `xml:"num,attr"`
}

type xmlBasic struct {
	Name      string `xml:"name,attr"`
	Type      string `xml:"type,attr"`
	Size      int    `xml:"size,attr"`
	WideUntil string `xml:"wideuntil,attr"`
}

type xmlEnum struct {
	Name    string      `xml:"name,attr"`
	Storage string      `xml:"storage,attr"`
	Options []xmlOption `xml:"option"`
}

type xmlOption struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type xmlBitField struct {
	Name    string      `xml:"name,attr"`
	Storage string      `xml:"storage,attr"`
	Members []xmlMember `xml:"member"`
}

type xmlMember struct {
	Name  string `xml:"name,attr"`
	Width uint   `xml:"width,attr"`
	Pos   string `xml:"pos,attr"`
}

type xmlStruct struct {
	Name    string     `xml:"name,attr"`
	Inherit string     `xml:"inherit,attr"`
	Generic bool       `xml:"generic,attr"`
	Fields  []xmlField `xml:"field"`
}

type xmlField struct {
	Name     string `xml:"name,attr"`
	Type     string `xml:"type,attr"`
	Template string `xml:"template,attr"`
	Arg      string `xml:"arg,attr"`
	Length   string `xml:"length,attr"`
	Width    string `xml:"width,attr"`
	Cond     string `xml:"cond,attr"`
	VerCond  string `xml:"vercond,attr"`
	Since    string `xml:"since,attr"`
	Until    string `xml:"until,attr"`
	UserVer  string `xml:"userver,attr"`
	Default  string `xml:"default,attr"`
}

// Compile parses and finalizes a format description document.
func Compile(r io.Reader) (*ir.Schema, error) {
	var doc xmlFormat
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("description is not well-formed XML: %w", err)
	}
	if doc.Format == "" {
		return nil, &CompileError{Format: "?", Element: "fileformat", Message: "missing format attribute"}
	}

	schema := ir.NewSchema(doc.Format)

	for _, v := range doc.Versions {
		num, err := parseVersionAttr(v.Num)
		if err != nil {
			return nil, &CompileError{Format: doc.Format, Element: "version " + v.Num, Message: err.Error()}
		}
		schema.Versions = append(schema.Versions, ir.VersionDef{ID: v.Num, Num: num})
	}

	for _, b := range doc.Basics {
		var wideUntil uint32
		if b.WideUntil != "" {
			n, err := parseVersionAttr(b.WideUntil)
			if err != nil {
				return nil, &CompileError{Format: doc.Format, Element: "basic " + b.Name, Message: err.Error()}
			}
			wideUntil = n
		}
		factory, err := newBasicFactory(b.Type, b.Size, wideUntil)
		if err != nil {
			return nil, &CompileError{Format: doc.Format, Element: "basic " + b.Name, Message: err.Error()}
		}
		schema.Basics[b.Name] = &ir.BasicDef{
			Name:     b.Name,
			New:      factory,
			Integral: integralKinds[b.Type],
			Boolean:  b.Type == "bool",
		}
	}

	for _, e := range doc.Enums {
		def := &ir.EnumDef{Name: e.Name, Storage: e.Storage}
		for _, o := range e.Options {
			v, err := strconv.ParseUint(o.Value, 0, 64)
			if err != nil {
				return nil, &CompileError{Format: doc.Format, Element: "enum " + e.Name, Message: "bad option value " + o.Value}
			}
			def.Options = append(def.Options, ir.EnumOption{Name: o.Name, Value: v})
		}
		schema.Enums[e.Name] = def
	}

	for _, b := range doc.BitFields {
		def := &ir.BitFieldDef{Name: b.Name, Storage: b.Storage}
		next := uint(0)
		for _, m := range b.Members {
			pos := next
			if m.Pos != "" {
				p, err := strconv.ParseUint(m.Pos, 0, 8)
				if err != nil {
					return nil, &CompileError{Format: doc.Format, Element: "bitfield " + b.Name, Message: "bad member pos " + m.Pos}
				}
				pos = uint(p)
			}
			if m.Width == 0 {
				return nil, &CompileError{Format: doc.Format, Element: "bitfield " + b.Name, Message: "member " + m.Name + " has zero width"}
			}
			def.Members = append(def.Members, ir.BitMember{Name: m.Name, Pos: pos, Width: m.Width})
			next = pos + m.Width
		}
		schema.BitFields[b.Name] = def
	}

	for _, st := range doc.Structs {
		def := &ir.StructDef{Name: st.Name, Inherit: st.Inherit, Generic: st.Generic}
		for _, f := range st.Fields {
			fd, err := compileField(doc.Format, st.Name, f)
			if err != nil {
				return nil, err
			}
			def.Fields = append(def.Fields, fd)
		}
		schema.Structs[st.Name] = def
		schema.StructOrder = append(schema.StructOrder, st.Name)
	}

	if err := schema.Finalize(); err != nil {
		return nil, err
	}
	return schema, nil
}

func compileField(format, structName string, f xmlField) (ir.FieldDescriptor, error) {
	bad := func(attr string, err error) (ir.FieldDescriptor, error) {
		return ir.FieldDescriptor{}, &CompileError{
			Format:  format,
			Element: "struct " + structName + ", field " + f.Name,
			Message: attr + ": " + err.Error(),
		}
	}
	fd := ir.FieldDescriptor{
		Name:     f.Name,
		Type:     f.Type,
		Template: f.Template,
		Default:  f.Default,
	}
	var err error
	if f.Arg != "" {
		if fd.Arg, err = expr.Parse(f.Arg); err != nil {
			return bad("arg", err)
		}
	}
	if f.Length != "" {
		if fd.Length, err = expr.Parse(f.Length); err != nil {
			return bad("length", err)
		}
	}
	if f.Width != "" {
		if fd.Width, err = expr.Parse(f.Width); err != nil {
			return bad("width", err)
		}
	}
	if f.Cond != "" {
		if fd.Cond, err = expr.Parse(f.Cond); err != nil {
			return bad("cond", err)
		}
	}
	if f.VerCond != "" {
		if fd.VerCond, err = expr.Parse(f.VerCond); err != nil {
			return bad("vercond", err)
		}
	}
	if f.Since != "" {
		if fd.Since, err = parseVersionAttr(f.Since); err != nil {
			return bad("since", err)
		}
	}
	if f.Until != "" {
		if fd.Until, err = parseVersionAttr(f.Until); err != nil {
			return bad("until", err)
		}
	}
	if f.UserVer != "" {
		n, perr := strconv.ParseUint(f.UserVer, 0, 32)
		if perr != nil {
			return bad("userver", perr)
		}
		uv := uint32(n)
		fd.UserVersion = &uv
	}
	return fd, nil
}

// parseVersionAttr accepts either the dotted form ("20.2.0.7") or a plain
// 0x-prefixed number.
func parseVersionAttr(s string) (uint32, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return 0, err
		}
		return uint32(n), nil
	}
	return ir.ParseVersion(s)
}

// LoadFormat compiles the embedded description for a format, honoring the
// <FORMAT>XMLPATH override environment variable. The override file, when
// set, fully replaces the embedded document.
func LoadFormat(format string, embedded []byte) (*ir.Schema, error) {
	envVar := strings.ToUpper(format) + "XMLPATH"
	if path := os.Getenv(envVar); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envVar, err)
		}
		defer f.Close()
		slog.Info("loading format description override", "format", format, "path", path)
		return Compile(f)
	}
	return Compile(strings.NewReader(string(embedded)))
}
