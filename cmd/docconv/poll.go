// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/docconv/internal/convert"
	"github.com/pdiddy/docconv/internal/logging"
	"github.com/pdiddy/docconv/pkg/types"
)

var pollCmd = &cobra.Command{
	Use:   "poll [job-id...]",
	Short: "Query the service for the status of submitted jobs",
	Long: `Poll asks the conversion service for the status of each job and records
the result. A job the service reports as converted has its artifact
stored. Use --all to poll every submitted job that has not finished.`,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().Bool("wait", false, "keep polling until each job completes or fails")
	pollCmd.Flags().Bool("all", false, "poll every unfinished submitted job")

	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, args []string) error {
	wait, _ := cmd.Flags().GetBool("wait")
	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("provide one or more job IDs, or --all")
	}

	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	var jobs []*types.ConversionJob
	if all {
		jobs, err = a.jobs.Active(ctx)
		if err != nil {
			return err
		}
	}
	for _, id := range args {
		job, err := a.resolveJob(ctx, id)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	result, err := a.pollJobs(ctx, cmd.OutOrStdout(), jobs, wait)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d job(s) failed", result.Failed)
	}
	return nil
}

// pollJobs advances each job and reports it to w. It stops at the first
// hard error.
func (a *app) pollJobs(ctx context.Context, w io.Writer, jobs []*types.ConversionJob, wait bool) (convert.BatchResult, error) {
	var result convert.BatchResult
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs to poll.")
		return result, nil
	}

	for _, job := range jobs {
		if err := a.advance(ctx, job, wait); err != nil {
			a.logger.Error("poll failed", append(logging.Job(job), zap.Error(err))...)
			return result, fmt.Errorf("polling job %s: %w", job.ID, err)
		}
		result.Add(job)
		convert.Report(w, job)
	}
	if len(jobs) > 1 {
		result.Summary(w)
	}
	return result, nil
}
