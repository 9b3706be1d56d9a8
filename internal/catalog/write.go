package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one scan pass over a directory tree.
type Run struct {
	ID           string
	Root         string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while the run is live
	FilesSeen    int64
	FilesMatched int64
}

// FileRecord is the identification result for one file.
type FileRecord struct {
	Path        string
	Format      string // empty when no format claimed the file
	Version     uint32
	UserVersion uint32
	Size        int64
	Err         string
}

// BeginRun opens a new run and returns its token.
func (c *Catalog) BeginRun(ctx context.Context, root string) (string, error) {
	id := uuid.NewString()
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (id, root, started_at)
		VALUES (?, ?, ?)
	`, id, root, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordFile inserts one identification result. Re-recording the same
// path within a run is silently ignored, so interrupted scans can be
// resumed by rerunning them.
func (c *Catalog) RecordFile(ctx context.Context, runID string, rec FileRecord) error {
	var format any
	if rec.Format != "" {
		format = rec.Format
	}
	var errText any
	if rec.Err != "" {
		errText = rec.Err
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO files (run_id, path, format, version, user_version, size, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, path) DO NOTHING
	`, runID, rec.Path, format, rec.Version, rec.UserVersion, rec.Size, errText)
	if err != nil {
		return fmt.Errorf("record %s: %w", rec.Path, err)
	}
	return nil
}

// FinishRun stamps the end time and totals on a run.
func (c *Catalog) FinishRun(ctx context.Context, runID string, seen, matched int64) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, files_seen = ?, files_matched = ?
		WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), seen, matched, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: no run %s", runID)
	}
	return nil
}
