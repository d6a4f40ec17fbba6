// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/docconv/internal/jobstore"
	"github.com/pdiddy/docconv/pkg/types"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List recorded conversion jobs",
	Long: `Jobs lists the conversion jobs recorded in the local job database,
newest first. Use --status to filter and --yaml to export the records.`,
	Args: cobra.NoArgs,
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().StringSlice("status", nil, "filter by status: pending, in_progress, complete, failed")
	jobsCmd.Flags().Int("limit", 0, "maximum jobs to list (0 = default 100)")
	jobsCmd.Flags().Bool("yaml", false, "export matching jobs as YAML")

	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	opts, err := listOptsFromFlags(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	store, err := jobstore.Open(cfg.Storage.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		return store.ExportYAML(ctx, out, opts)
	}
	return listJobs(ctx, out, store, opts)
}

func listOptsFromFlags(cmd *cobra.Command) (jobstore.ListOptions, error) {
	statuses, _ := cmd.Flags().GetStringSlice("status")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := jobstore.ListOptions{Limit: limit}
	for _, s := range statuses {
		st := types.Status(strings.ToLower(strings.TrimSpace(s)))
		if !st.Valid() {
			return opts, fmt.Errorf("unknown status %q: use pending, in_progress, complete, or failed", s)
		}
		opts.Statuses = append(opts.Statuses, st)
	}
	return opts, nil
}

func listJobs(ctx context.Context, w io.Writer, store *jobstore.Store, opts jobstore.ListOptions) error {
	jobs, err := store.List(ctx, opts)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found.")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-11s  %-30s  %-6s  %s\n", "ID", "Status", "Source", "Target", "Detail")
	fmt.Fprintln(w, strings.Repeat("-", 110))
	for _, j := range jobs {
		fmt.Fprintf(w, "%-36s  %-11s  %-30s  %-6s  %s\n",
			j.ID, j.Status, truncate(j.Source.Filename, 30), j.TargetFormat, jobDetail(j))
	}
	fmt.Fprintf(w, "\n%d jobs\n", len(jobs))
	return nil
}

func jobDetail(j *types.ConversionJob) string {
	if j.Status == types.StatusComplete {
		return j.DestFile
	}
	return j.StatusMessage
}
