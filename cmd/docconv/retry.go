// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/docconv/internal/convert"
	"github.com/pdiddy/docconv/pkg/types"
)

var retryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Resubmit a failed job as a new job",
	Long: `Retry creates a new job for the same source document and target format
as a failed job and submits it. The failed job is kept as a record.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func init() {
	retryCmd.Flags().Bool("wait", false, "poll the new job until it completes or fails")
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	wait, _ := cmd.Flags().GetBool("wait")

	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	failed, err := a.resolveJob(ctx, args[0])
	if err != nil {
		return err
	}
	job, err := convert.Resubmission(failed, uuid.NewString(), now())
	if err != nil {
		return err
	}
	if err := a.jobs.Save(ctx, job); err != nil {
		return err
	}

	if err := a.converter.Submit(ctx, job); err != nil {
		return err
	}
	if wait && job.RemoteHandle != "" && !job.Status.Terminal() {
		if err := a.wait(ctx, job); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "retry of %s: job %s\n", failed.ID, job.ID)
	convert.Report(out, job)
	if job.Status == types.StatusFailed {
		return fmt.Errorf("job %s failed", job.ID)
	}
	return nil
}
