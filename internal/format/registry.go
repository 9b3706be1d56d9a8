package format

import (
	"log/slog"
	"strings"

	"github.com/quellen/fileform/internal/codec"
)

// Registry holds formats in registration order, which is also the order
// Identify tries them in. Registration happens at startup; the registry is
// read-only afterward.
type Registry struct {
	formats []Format
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register appends a format.
func (r *Registry) Register(f Format) { r.formats = append(r.formats, f) }

// Formats returns the registered formats in order.
func (r *Registry) Formats() []Format { return r.formats }

// Lookup finds a format by case-insensitive name.
func (r *Registry) Lookup(name string) (Format, bool) {
	for _, f := range r.formats {
		if strings.EqualFold(f.Name(), name) {
			return f, true
		}
	}
	return nil, false
}

// ByExtension finds the formats claiming the given extension (with or
// without dot). TGA has no magic bytes, so extension hints matter for
// ambiguous streams.
func (r *Registry) ByExtension(ext string) []Format {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	var out []Format
	for _, f := range r.formats {
		for _, e := range f.Extensions() {
			if strings.EqualFold(e, ext) {
				out = append(out, f)
			}
		}
	}
	return out
}

// Identify classifies a stream by trying each format's InspectQuick in
// registration order. A MismatchError moves on to the next candidate; any
// other inspection failure is returned as-is. The stream position is
// untouched either way.
func (r *Registry) Identify(s *codec.Stream) (Format, Data, error) {
	for _, f := range r.formats {
		d, err := f.New()
		if err != nil {
			return nil, nil, err
		}
		err = d.InspectQuick(s)
		if err == nil {
			slog.Debug("stream identified", "format", f.Name())
			return f, d, nil
		}
		if IsMismatch(err) {
			continue
		}
		return nil, nil, err
	}
	return nil, nil, ErrUnknownFormat
}
