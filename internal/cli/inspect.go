package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
	"github.com/quellen/fileform/internal/format/all"
	"github.com/quellen/fileform/internal/format/nif"
)

// InspectResult is the cheap header summary of one file.
type InspectResult struct {
	Path        string `json:"path"`
	Format      string `json:"format"`
	Version     uint32 `json:"version"`
	UserVersion uint32 `json:"user_version,omitempty"`
	Size        int64  `json:"size"`
	Blocks      uint32 `json:"blocks,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "inspect <file>",
		Short:         "Read a file's header without loading its body",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], cmd)
		},
	}
}

func runInspect(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

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
	// rerun the full header pass on the identified format
	if err := data.Inspect(s); err != nil {
		return WrapExitError(ExitFailure, "inspect "+path, err)
	}

	res := InspectResult{
		Path:        path,
		Format:      ff.Name(),
		Version:     data.Version(),
		UserVersion: data.UserVersion(),
	}
	if end, err := s.Len(); err == nil {
		res.Size = end
	}
	if nd, ok := data.(*nif.Data); ok {
		res.Blocks = nd.NumBlocks()
	}

	return formatter.Emit(res, func(w io.Writer) error {
		fmt.Fprintf(w, "%s: %s version 0x%08X\n", res.Path, res.Format, res.Version)
		if res.UserVersion != 0 {
			fmt.Fprintf(w, "  user version: %d\n", res.UserVersion)
		}
		fmt.Fprintf(w, "  size: %d bytes\n", res.Size)
		if res.Blocks != 0 {
			fmt.Fprintf(w, "  blocks: %d\n", res.Blocks)
		}
		return nil
	})
}

func registryIdentify(s *codec.Stream) (format.Format, format.Data, error) {
	ff, data, err := all.Registry().Identify(s)
	if err != nil {
		return nil, nil, WrapExitError(ExitFailure, "identify", err)
	}
	return ff, data, nil
}
