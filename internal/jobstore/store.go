// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package jobstore persists conversion job records in SQLite.
package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/docconv/pkg/types"
)

// ErrNotFound is returned by Get for an unknown job ID.
var ErrNotFound = errors.New("job not found")

const defaultListLimit = 100

// Store manages the job database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			source_filename TEXT NOT NULL,
			source_path TEXT NOT NULL,
			target_format TEXT NOT NULL,
			status TEXT NOT NULL,
			status_message TEXT NOT NULL DEFAULT '',
			remote_handle TEXT NOT NULL DEFAULT '',
			dest_file TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save inserts or updates a job record. The remote handle is write-once:
// an update never replaces a stored non-empty handle with a different one.
func (s *Store) Save(ctx context.Context, job *types.ConversionJob) error {
	if job.ID == "" {
		return errors.New("saving job: empty ID")
	}
	if !job.Status.Valid() {
		return fmt.Errorf("saving job %s: invalid status %q", job.ID, job.Status)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, source_id, source_filename, source_path, target_format,
			status, status_message, remote_handle, dest_file, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, status_message=excluded.status_message,
			remote_handle=CASE WHEN jobs.remote_handle = '' THEN excluded.remote_handle ELSE jobs.remote_handle END,
			dest_file=excluded.dest_file, updated_at=excluded.updated_at`,
		job.ID, job.Source.ID, job.Source.Filename, job.Source.Path, job.TargetFormat,
		string(job.Status), job.StatusMessage, job.RemoteHandle, job.DestFile,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads a job by ID.
func (s *Store) Get(ctx context.Context, id string) (*types.ConversionJob, error) {
	row := s.db.QueryRowContext(ctx, selectJobs+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading job %s: %w", id, err)
	}
	return job, nil
}

// ListOptions filters List results.
type ListOptions struct {
	// Statuses restricts results to these states. Empty means all.
	Statuses []types.Status

	// Limit caps the result count. Zero uses the default of 100; a
	// negative value returns every match.
	Limit int
}

// List returns jobs, most recently created first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*types.ConversionJob, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = defaultListLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(selectJobs)
	if len(opts.Statuses) > 0 {
		qb.WriteString(` WHERE status IN (?` + strings.Repeat(",?", len(opts.Statuses)-1) + `)`)
		for _, st := range opts.Statuses {
			args = append(args, string(st))
		}
	}
	qb.WriteString(` ORDER BY created_at DESC, id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.ConversionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Active returns the jobs that still need polling: submitted and not
// terminal.
func (s *Store) Active(ctx context.Context) ([]*types.ConversionJob, error) {
	jobs, err := s.List(ctx, ListOptions{
		Statuses: []types.Status{types.StatusPending, types.StatusInProgress},
		Limit:    -1,
	})
	if err != nil {
		return nil, err
	}
	active := jobs[:0]
	for _, j := range jobs {
		if j.RemoteHandle != "" {
			active = append(active, j)
		}
	}
	return active, nil
}

const selectJobs = `SELECT id, source_id, source_filename, source_path, target_format,
	status, status_message, remote_handle, dest_file, created_at, updated_at FROM jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*types.ConversionJob, error) {
	var (
		job                  types.ConversionJob
		status               string
		createdAt, updatedAt string
	)
	err := sc.Scan(&job.ID, &job.Source.ID, &job.Source.Filename, &job.Source.Path, &job.TargetFormat,
		&status, &job.StatusMessage, &job.RemoteHandle, &job.DestFile, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.Status = types.Status(status)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	return &job, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
