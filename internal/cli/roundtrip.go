package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/all"
)

// RoundtripResult reports whether a file survives read-then-write
// unchanged.
type RoundtripResult struct {
	Path   string `json:"path"`
	Status string `json:"status"` // "ok", "mismatch", "skipped", "error"
	Detail string `json:"detail,omitempty"`
}

// NewRoundtripCommand creates the roundtrip command.
func NewRoundtripCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "roundtrip <file>...",
		Short:         "Verify files re-serialize byte for byte",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoundtrip(rootOpts, args, cmd)
		},
	}
}

func runRoundtrip(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	registry := all.Registry()

	results := make([]RoundtripResult, 0, len(paths))
	failed := false
	for _, path := range paths {
		res := roundtripFile(registry, path)
		if res.Status == "mismatch" || res.Status == "error" {
			failed = true
		}
		results = append(results, res)
	}

	if err := formatter.Emit(results, func(w io.Writer) error {
		for _, r := range results {
			if r.Detail != "" {
				fmt.Fprintf(w, "%s: %s (%s)\n", r.Path, r.Status, r.Detail)
			} else {
				fmt.Fprintf(w, "%s: %s\n", r.Path, r.Status)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if failed {
		return NewExitError(ExitFailure, "some files did not round-trip")
	}
	return nil
}

func roundtripFile(registry *format.Registry, path string) RoundtripResult {
	res := RoundtripResult{Path: path}

	original, err := os.ReadFile(path)
	if err != nil {
		res.Status = "error"
		res.Detail = err.Error()
		return res
	}

	s := codec.NewReader(bytes.NewReader(original))
	_, data, err := registry.Identify(s)
	if err != nil {
		res.Status = "error"
		res.Detail = err.Error()
		return res
	}
	if err := data.Read(s); err != nil {
		res.Status = "error"
		res.Detail = err.Error()
		return res
	}

	var out bytes.Buffer
	switch err := data.Write(codec.NewWriter(&out)); {
	case format.IsNotImplemented(err):
		res.Status = "skipped"
		res.Detail = err.Error()
		return res
	case err != nil:
		res.Status = "error"
		res.Detail = err.Error()
		return res
	}

	if diff := firstDifference(original, out.Bytes()); diff >= 0 {
		res.Status = "mismatch"
		res.Detail = fmt.Sprintf("first difference at offset %d", diff)
		return res
	}
	res.Status = "ok"
	return res
}

// firstDifference returns the offset where two byte slices diverge, or
// -1 when they are identical.
func firstDifference(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	if len(a) != len(b) {
		return n
	}
	return -1
}
