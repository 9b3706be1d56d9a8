package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quellen/fileform/internal/codec"
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
	"github.com/quellen/fileform/internal/record"
)

// NewDumpCommand creates the dump command. Dump output is plain text
// regardless of the --format flag.
func NewDumpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "dump <file>",
		Short:         "Parse a file completely and print its structure",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args[0], cmd.OutOrStdout())
		},
	}
}

func runDump(path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "open", err)
	}
	defer f.Close()

	s := codec.NewReader(f)
	ff, data, err := registryIdentify(s)
	if err != nil {
		return err
	}
	if err := data.Read(s); err != nil {
		return WrapExitError(ExitFailure, "read "+path, err)
	}

	fmt.Fprintf(w, "%s: %s version 0x%08X\n", path, ff.Name(), data.Version())
	return dumpData(w, data)
}

// dumpData renders the parsed structure of any supported format.
func dumpData(w io.Writer, data format.Data) error {
	switch d := data.(type) {
	case *nif.Data:
		return dumpNif(w, d)
	case *kfm.Data:
		return record.Dump(w, "Header", d.Header())
	case *dds.Data:
		return record.Dump(w, "Header", d.Header())
	case *egm.Data:
		return record.Dump(w, "Header", d.Header())
	case *egt.Data:
		return record.Dump(w, "Header", d.Header())
	case *tri.Data:
		return record.Dump(w, "Header", d.Header())
	case *tga.Data:
		if err := record.Dump(w, "Header", d.Header()); err != nil {
			return err
		}
		fmt.Fprintf(w, "Pixel bytes: %d\n", len(d.Pixels()))
		if d.Footer() != nil {
			return record.Dump(w, "Footer", d.Footer())
		}
		return nil
	case *esp.Data:
		return dumpEsp(w, d)
	case *bsa.Data:
		return dumpBsa(w, d)
	case *dir.Data:
		for i, e := range d.Entries() {
			if err := record.Dump(w, fmt.Sprintf("Entry %d", i), e); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("no dump for %T", data)
}

func dumpNif(w io.Writer, d *nif.Data) error {
	if d.UserVersion() != 0 {
		fmt.Fprintf(w, "User version: %d\n", d.UserVersion())
	}
	for i, b := range d.Blocks() {
		label := fmt.Sprintf("Block %d", i)
		if name, err := d.BlockName(b); err == nil && name != "" {
			label = fmt.Sprintf("Block %d %q", i, name)
		}
		if err := record.Dump(w, label, b); err != nil {
			return err
		}
	}
	roots := make([]string, 0, len(d.Roots()))
	for _, r := range d.Roots() {
		roots = append(roots, fmt.Sprintf("%d", r))
	}
	fmt.Fprintf(w, "Roots: [%s]\n", strings.Join(roots, ", "))
	return nil
}

func dumpEsp(w io.Writer, d *esp.Data) error {
	var dump func(indent string, e esp.Entry) error
	dump = func(indent string, e esp.Entry) error {
		switch x := e.(type) {
		case *esp.Record:
			id, err := x.EditorID()
			if err != nil {
				return err
			}
			subs, err := x.Subrecords()
			if err != nil {
				return err
			}
			line := fmt.Sprintf("%s%s %08X", indent, x.Type, x.FormID)
			if id != "" {
				line += " " + id
			}
			fmt.Fprintf(w, "%s (%d subrecords)\n", line, len(subs))
		case *esp.Group:
			fmt.Fprintf(w, "%sGRUP %q type %d (%d children)\n",
				indent, string(x.Label[:]), x.GroupType, len(x.Children))
			for _, c := range x.Children {
				if err := dump(indent+"  ", c); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, e := range d.Entries() {
		if err := dump("", e); err != nil {
			return err
		}
	}
	return nil
}

func dumpBsa(w io.Writer, d *bsa.Data) error {
	for _, folder := range d.Folders() {
		if folder.Name != "" {
			fmt.Fprintf(w, "%s/\n", folder.Name)
		}
		for _, file := range folder.Files {
			fmt.Fprintf(w, "  %s (%d bytes)\n", file.Name, file.Size())
		}
	}
	return nil
}
