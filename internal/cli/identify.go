package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/all"
)

// IdentifyResult is the classification of one file.
type IdentifyResult struct {
	Path        string `json:"path"`
	Format      string `json:"format,omitempty"`
	Version     uint32 `json:"version,omitempty"`
	UserVersion uint32 `json:"user_version,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewIdentifyCommand creates the identify command.
func NewIdentifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "identify <file>...",
		Short:         "Classify files by trying each known format",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentify(rootOpts, args, cmd)
		},
	}
}

func runIdentify(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	registry := all.Registry()

	results := make([]IdentifyResult, 0, len(paths))
	failed := false
	for _, path := range paths {
		res := identifyFile(registry, path)
		if res.Format == "" {
			failed = true
		}
		results = append(results, res)
	}

	if err := formatter.Emit(results, func(w io.Writer) error {
		for _, r := range results {
			switch {
			case r.Error != "":
				fmt.Fprintf(w, "%s: error: %s\n", r.Path, r.Error)
			case r.Format == "":
				fmt.Fprintf(w, "%s: unknown format\n", r.Path)
			case r.UserVersion != 0:
				fmt.Fprintf(w, "%s: %s version 0x%08X user %d\n", r.Path, r.Format, r.Version, r.UserVersion)
			default:
				fmt.Fprintf(w, "%s: %s version 0x%08X\n", r.Path, r.Format, r.Version)
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if failed {
		return NewExitError(ExitFailure, "some files were not identified")
	}
	return nil
}

func identifyFile(registry *format.Registry, path string) IdentifyResult {
	res := IdentifyResult{Path: path}

	f, err := os.Open(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer f.Close()

	ff, data, err := registry.Identify(codec.NewReader(f))
	switch {
	case errors.Is(err, format.ErrUnknownFormat):
		return res
	case err != nil:
		res.Error = err.Error()
		return res
	}
	res.Format = ff.Name()
	res.Version = data.Version()
	res.UserVersion = data.UserVersion()
	return res
}
