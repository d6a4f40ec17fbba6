// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/docconv/pkg/types"
)

// Resubmission returns a new pending job for the same source and target as
// a failed job. The failed job is not modified; the service may still hold
// a partially registered conversion for it.
func Resubmission(failed *types.ConversionJob, newID string, now time.Time) (*types.ConversionJob, error) {
	if failed.Status != types.StatusFailed {
		return nil, fmt.Errorf("resubmitting job %s in state %s: %w", failed.ID, failed.Status, ErrNotFailed)
	}
	return types.NewJob(newID, failed.Source, failed.TargetFormat, now), nil
}

// BatchResult holds the outcome of converting several files.
type BatchResult struct {
	Converted int
	Pending   int
	Failed    int
}

// Total returns the number of jobs counted.
func (r BatchResult) Total() int {
	return r.Converted + r.Pending + r.Failed
}

// HasFailures reports whether any job failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Add counts job by its current status.
func (r *BatchResult) Add(job *types.ConversionJob) {
	switch job.Status {
	case types.StatusComplete:
		r.Converted++
	case types.StatusFailed:
		r.Failed++
	default:
		r.Pending++
	}
}

// Report writes the per-job status line for job to w.
func Report(w io.Writer, job *types.ConversionJob) {
	switch job.Status {
	case types.StatusComplete:
		fmt.Fprintf(w, "converted: %s -> %s\n", job.Source.Filename, job.DestFile)
	case types.StatusFailed:
		fmt.Fprintf(w, "failed:    %s (%s)\n", job.Source.Filename, job.StatusMessage)
	default:
		fmt.Fprintf(w, "%-10s %s (job %s)\n", string(job.Status)+":", job.Source.Filename, job.ID)
	}
}

// Summary writes the batch summary line to w.
func (r BatchResult) Summary(w io.Writer) {
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d pending, %d failed (total: %d)\n",
		r.Converted, r.Pending, r.Failed, r.Total())
}
