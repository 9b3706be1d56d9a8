package cli

import (
	"fmt"
	"io"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quellen/fileform/internal/catalog"
	"github.com/quellen/fileform/internal/format/all"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	CatalogPath string
	ConfigPath  string
	Include     []string
	Exclude     []string
	Workers     int
}

// ScanResult summarizes a finished run.
type ScanResult struct {
	Run     string           `json:"run"`
	Seen    int64            `json:"seen"`
	Matched int64            `json:"matched"`
	Formats map[string]int64 `json:"formats"`
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{}

	cmd := &cobra.Command{
		Use:           "scan <dir>",
		Short:         "Walk a directory tree and record every file in the catalog",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.CatalogPath, "catalog", "fileform.db", "catalog database path")
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML scan configuration file")
	cmd.Flags().StringArrayVar(&opts.Include, "include", nil, "glob pattern to include (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Exclude, "exclude", nil, "glob pattern to exclude (repeatable)")
	cmd.Flags().IntVar(&opts.Workers, "workers", runtime.NumCPU(), "concurrent identification workers")

	return cmd
}

func runScan(rootOpts *RootOptions, opts *ScanOptions, root string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}

	include, exclude := opts.Include, opts.Exclude
	if opts.ConfigPath != "" {
		cfg, err := LoadScanConfig(opts.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "scan config", err)
		}
		// flags add to whatever the config selects
		include = append(cfg.Include, include...)
		exclude = append(cfg.Exclude, exclude...)
	}

	cat, err := catalog.Open(opts.CatalogPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open catalog", err)
	}
	defer cat.Close()

	scanner := &catalog.Scanner{
		Registry: all.Registry(),
		Catalog:  cat,
		Include:  include,
		Exclude:  exclude,
		Workers:  opts.Workers,
	}

	ctx := cmd.Context()
	runID, err := scanner.Scan(ctx, root)
	if err != nil {
		return WrapExitError(ExitFailure, "scan", err)
	}

	summary, err := cat.Summary(ctx, runID)
	if err != nil {
		return WrapExitError(ExitFailure, "summarize", err)
	}
	runs, err := cat.Runs(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "list runs", err)
	}

	res := ScanResult{Run: runID, Formats: summary}
	for _, r := range runs {
		if r.ID == runID {
			res.Seen = r.FilesSeen
			res.Matched = r.FilesMatched
		}
	}

	return formatter.Emit(res, func(w io.Writer) error {
		fmt.Fprintf(w, "run %s: %d files seen, %d identified\n", res.Run, res.Seen, res.Matched)
		names := make([]string, 0, len(res.Formats))
		for name := range res.Formats {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			label := name
			if label == "" {
				label = "(unknown)"
			}
			fmt.Fprintf(w, "  %-10s %d\n", label, res.Formats[name])
		}
		return nil
	})
}
