// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/docconv/internal/convert"
	"github.com/pdiddy/docconv/internal/logging"
	"github.com/pdiddy/docconv/pkg/types"
)

const defaultConcurrency = 4

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert documents to another format",
	Long: `Convert imports each file (or http/https URL) into the local store, submits it to the
conversion service, and records a job. With --wait it polls each job until
the service finishes and stores the converted file under artifacts/.
Without --wait, use "docconv poll" to collect the results later.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("to", "t", "", "target format extension (e.g. pdf)")
	convertCmd.Flags().Bool("wait", false, "poll each job until it completes or fails")
	convertCmd.Flags().Int("concurrency", defaultConcurrency, "number of files converted at once")
	_ = convertCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	target, _ := cmd.Flags().GetString("to")
	wait, _ := cmd.Flags().GetBool("wait")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	result := a.convertBatch(ctx, cmd.OutOrStdout(), args, target, wait, concurrency)
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return ctx.Err()
}

// outcome is the result of converting one file. job is nil when the file
// could not be imported.
type outcome struct {
	path string
	job  *types.ConversionJob
	err  error
}

// convertBatch converts paths concurrently and reports each outcome to w in
// argument order, followed by a summary.
func (a *app) convertBatch(ctx context.Context, w io.Writer, paths []string, target string, wait bool, concurrency int) convert.BatchResult {
	if concurrency <= 0 {
		concurrency = 1
	}
	outcomes := make([]outcome, len(paths))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, p := range paths {
		g.Go(func() error {
			job, err := a.convertFile(ctx, p, target, wait)
			outcomes[i] = outcome{path: p, job: job, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var result convert.BatchResult
	for _, o := range outcomes {
		switch {
		case o.job == nil:
			result.Failed++
			fmt.Fprintf(w, "failed:    %s (%v)\n", o.path, o.err)
		case o.err != nil:
			result.Add(o.job)
			fmt.Fprintf(w, "error:     %s (job %s): %v\n", o.path, o.job.ID, o.err)
		default:
			result.Add(o.job)
			convert.Report(w, o.job)
		}
	}
	result.Summary(w)
	return result
}

// importSource stores a local file, or downloads an http(s) URL.
func (a *app) importSource(ctx context.Context, arg string) (types.SourceFile, error) {
	u, err := url.Parse(arg)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return a.files.Import(ctx, arg)
	}

	pr, pw := io.Pipe()
	go func() {
		_, err := a.client.Download(ctx, arg, pw)
		pw.CloseWithError(err)
	}()
	src, err := a.files.ImportReader(ctx, path.Base(u.Path), pr)
	pr.CloseWithError(err)
	if err != nil {
		return types.SourceFile{}, fmt.Errorf("downloading %s: %w", arg, err)
	}
	return src, nil
}

// convertFile imports arg, records a job for it and submits it. A hard
// error after the job exists is returned alongside the job.
func (a *app) convertFile(ctx context.Context, arg, target string, wait bool) (*types.ConversionJob, error) {
	src, err := a.importSource(ctx, arg)
	if err != nil {
		return nil, err
	}

	job := types.NewJob(uuid.NewString(), src, target, now())
	if err := a.jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	log := a.logger.With(logging.Job(job)...)
	log.Debug("job created", zap.String("source", arg))

	if err := a.converter.Submit(ctx, job); err != nil {
		return job, err
	}
	if !wait || job.RemoteHandle == "" || job.Status.Terminal() {
		return job, nil
	}

	err = a.wait(ctx, job)
	if errors.Is(err, context.Canceled) {
		log.Info("stopped waiting; resume with docconv poll")
	}
	return job, err
}
