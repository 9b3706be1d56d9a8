// Package all wires every format into a registry. Importing it is the
// usual way to get a registry that recognizes the full set.
package all

import (
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/bsa"
	"github.com/quellen/fileform/internal/format/dds"
	"github.com/quellen/fileform/internal/format/dir"
	"github.com/quellen/fileform/internal/format/egm"
	"github.com/quellen/fileform/internal/format/egt"
	"github.com/quellen/fileform/internal/format/esp"
	"github.com/quellen/fileform/internal/format/kfm"
	"github.com/quellen/fileform/internal/format/nif"
	"github.com/quellen/fileform/internal/format/tga"
	"github.com/quellen/fileform/internal/format/tri"
)

// Registry returns a fresh registry with every supported format
// registered. Magic-bearing formats come first so that Identify
// settles on them before the heuristic ones get a look.
func Registry() *format.Registry {
	r := format.NewRegistry()
	r.Register(nif.Format{})
	r.Register(kfm.Format{})
	r.Register(dds.Format{})
	r.Register(bsa.Format{})
	r.Register(esp.Format{})
	r.Register(egm.Format{})
	r.Register(egt.Format{})
	r.Register(tri.Format{})
	r.Register(tga.Format{})
	r.Register(dir.Format{})
	return r
}
