package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Runs lists all runs, newest first.
func (c *Catalog) Runs(ctx context.Context) ([]Run, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, root, started_at, finished_at, files_seen, files_matched
		FROM runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		var finished sql.NullString
		if err := rows.Scan(&r.ID, &r.Root, &started, &finished, &r.FilesSeen, &r.FilesMatched); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("run %s started_at: %w", r.ID, err)
		}
		if finished.Valid {
			if r.FinishedAt, err = time.Parse(time.RFC3339, finished.String); err != nil {
				return nil, fmt.Errorf("run %s finished_at: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Files lists the records of one run in path order.
func (c *Catalog) Files(ctx context.Context, runID string) ([]FileRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT path, format, version, user_version, size, error
		FROM files WHERE run_id = ? ORDER BY path
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()
	return scanFileRows(rows)
}

// FilesByFormat lists every record of one format across all runs.
func (c *Catalog) FilesByFormat(ctx context.Context, format string) ([]FileRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT path, format, version, user_version, size, error
		FROM files WHERE format = ? ORDER BY path
	`, format)
	if err != nil {
		return nil, fmt.Errorf("list %s files: %w", format, err)
	}
	defer rows.Close()
	return scanFileRows(rows)
}

// Summary counts a run's files per format. Unidentified files count
// under the empty key.
func (c *Catalog) Summary(ctx context.Context, runID string) (map[string]int64, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT COALESCE(format, ''), COUNT(*)
		FROM files WHERE run_id = ? GROUP BY format
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("summarize run: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var format string
		var n int64
		if err := rows.Scan(&format, &n); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out[format] = n
	}
	return out, rows.Err()
}

func scanFileRows(rows *sql.Rows) ([]FileRecord, error) {
	var out []FileRecord
	for rows.Next() {
		var rec FileRecord
		var format, errText sql.NullString
		if err := rows.Scan(&rec.Path, &format, &rec.Version, &rec.UserVersion, &rec.Size, &errText); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		rec.Format = format.String
		rec.Err = errText.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
