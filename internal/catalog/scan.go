package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/quellen/fileform/internal/codec"
	"github.com/quellen/fileform/internal/format"
)

// Scanner walks a directory tree, identifies every file against a
// registry and records the results as one catalog run.
type Scanner struct {
	Registry *format.Registry
	Catalog  *Catalog
	Log      *slog.Logger

	// Include and Exclude are glob patterns matched against the
	// slash-separated relative path and the base name. An empty
	// Include list admits everything; Exclude wins over Include.
	Include []string
	Exclude []string

	// Workers bounds how many files are identified concurrently.
	// Values below one run a single worker. Catalog writes stay on
	// the caller's goroutine either way.
	Workers int
}

type scanTask struct {
	path string // absolute
	rel  string // slash-separated, relative to the scan root
}

type scanResult struct {
	rec FileRecord
	ok  bool
}

// Scan runs one pass over root and returns the run token.
func (sc *Scanner) Scan(ctx context.Context, root string) (string, error) {
	log := sc.Log
	if log == nil {
		log = slog.Default()
	}

	runID, err := sc.Catalog.BeginRun(ctx, root)
	if err != nil {
		return "", err
	}
	log.Info("scan started", "run", runID, "root", root)

	tasks, err := sc.collect(ctx, root)
	if err != nil {
		return runID, fmt.Errorf("scan %s: %w", root, err)
	}

	var matched int64
	var firstErr error
	for r := range sc.identifyAll(ctx, tasks, log) {
		if r.ok {
			matched++
		}
		if err := sc.Catalog.RecordFile(ctx, runID, r.rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		return runID, fmt.Errorf("scan %s: %w", root, firstErr)
	}

	seen := int64(len(tasks))
	if err := sc.Catalog.FinishRun(ctx, runID, seen, matched); err != nil {
		return runID, err
	}
	log.Info("scan finished", "run", runID, "seen", seen, "matched", matched)
	return runID, nil
}

// collect walks the tree and gathers every admitted file.
func (sc *Scanner) collect(ctx context.Context, root string) ([]scanTask, error) {
	var tasks []scanTask
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !sc.admits(rel) {
			return nil
		}
		tasks = append(tasks, scanTask{path: path, rel: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// identifyAll fans tasks out to a worker pool and returns the result
// channel. The channel closes once every worker has drained.
func (sc *Scanner) identifyAll(ctx context.Context, tasks []scanTask, log *slog.Logger) <-chan scanResult {
	workers := sc.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tasks) && len(tasks) > 0 {
		workers = len(tasks)
	}

	queue := make(chan scanTask)
	results := make(chan scanResult)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for t := range queue {
				rec, ok := sc.identify(t.path, t.rel, log)
				select {
				case results <- scanResult{rec: rec, ok: ok}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(queue)
		for _, t := range tasks {
			select {
			case queue <- t:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// identify classifies one file. Failures go into the record, not up
// the stack, so a single unreadable file cannot abort a scan.
func (sc *Scanner) identify(path, rel string, log *slog.Logger) (FileRecord, bool) {
	rec := FileRecord{Path: rel}

	f, err := os.Open(path)
	if err != nil {
		rec.Err = err.Error()
		log.Warn("cannot open", "path", rel, "err", err)
		return rec, false
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		rec.Size = info.Size()
	}

	s := codec.NewReader(f)
	ff, data, err := sc.Registry.Identify(s)
	switch {
	case errors.Is(err, format.ErrUnknownFormat):
		return rec, false
	case err != nil:
		rec.Err = err.Error()
		log.Warn("identify failed", "path", rel, "err", err)
		return rec, false
	}

	rec.Format = ff.Name()
	rec.Version = data.Version()
	rec.UserVersion = data.UserVersion()
	log.Debug("identified", "path", rel, "format", rec.Format, "version", rec.Version)
	return rec, true
}

func (sc *Scanner) admits(rel string) bool {
	base := filepath.Base(rel)
	if matchAny(sc.Exclude, rel, base) {
		return false
	}
	if len(sc.Include) == 0 {
		return true
	}
	return matchAny(sc.Include, rel, base)
}

func matchAny(patterns []string, rel, base string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
