// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert drives a conversion job through the remote service:
// submission, polling, and materialization of the converted file.
//
// A job moves Pending -> InProgress -> Complete or Failed; the last two are
// terminal. Submit and Poll mutate the job in place and persist it through
// the host JobStore. Expected failures are recorded on the job (status
// Failed plus a message) and the call returns nil; only scratch-space I/O
// faults and persistence errors are returned. Neither call retries: a
// caller that wants another attempt creates a new job with Resubmission.
//
// A job has a single writer. Callers must not run Submit or Poll on the
// same job concurrently.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/docconv/internal/httputil"
	"github.com/pdiddy/docconv/internal/logging"
	"github.com/pdiddy/docconv/internal/readiness"
	"github.com/pdiddy/docconv/pkg/types"
)

const inProgressMessage = "In Progress"

// Readiness gates submissions on the service being configured and reachable.
type Readiness interface {
	Verdict(ctx context.Context) readiness.Verdict
}

// Capabilities answers whether the service supports an extension.
type Capabilities interface {
	IsSupported(ctx context.Context, ext string) bool
}

// Transport is the subset of the HTTP client used for submit and poll.
type Transport interface {
	FetchJSON(ctx context.Context, url string, v any) error
	PostMultipart(ctx context.Context, url string, fields []httputil.Field, v any) error
}

// FileStore is host file storage.
type FileStore interface {
	// OpenSource opens the content of a source file for reading.
	OpenSource(ctx context.Context, src types.SourceFile) (io.ReadCloser, error)

	// StoreArtifact takes ownership of the file at path, which lives in a
	// scratch directory, and returns a reference to the stored copy.
	StoreArtifact(ctx context.Context, job *types.ConversionJob, path string) (string, error)
}

// JobStore persists job records.
type JobStore interface {
	Save(ctx context.Context, job *types.ConversionJob) error
}

// Config wires a Converter to its collaborators.
type Config struct {
	// BaseURL is the conversion service base URL.
	BaseURL string

	// ScratchDir is the root for per-call staging directories.
	ScratchDir string

	Readiness    Readiness
	Capabilities Capabilities
	Transport    Transport
	Files        FileStore
	Jobs         JobStore
	Logger       *zap.Logger

	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Converter is the conversion state machine.
type Converter struct {
	baseURL    string
	scratchDir string
	readiness  Readiness
	formats    Capabilities
	transport  Transport
	files      FileStore
	jobs       JobStore
	logger     *zap.Logger
	now        func() time.Time
}

// New validates cfg and returns a Converter.
func New(cfg Config) (*Converter, error) {
	switch {
	case cfg.Readiness == nil:
		return nil, errors.New("convert: readiness checker is required")
	case cfg.Capabilities == nil:
		return nil, errors.New("convert: capability cache is required")
	case cfg.Transport == nil:
		return nil, errors.New("convert: transport is required")
	case cfg.Files == nil:
		return nil, errors.New("convert: file store is required")
	case cfg.Jobs == nil:
		return nil, errors.New("convert: job store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Converter{
		baseURL:    cfg.BaseURL,
		scratchDir: cfg.ScratchDir,
		readiness:  cfg.Readiness,
		formats:    cfg.Capabilities,
		transport:  cfg.Transport,
		files:      cfg.Files,
		jobs:       cfg.Jobs,
		logger:     logging.OrNop(cfg.Logger).Named("convert"),
		now:        now,
	}, nil
}

// Submit sends a pending job to the service. On acceptance the job records
// the remote handle and moves to InProgress. A job that is not pending is
// left untouched and ErrAlreadySubmitted is returned.
func (c *Converter) Submit(ctx context.Context, job *types.ConversionJob) error {
	if job.Status != types.StatusPending || job.RemoteHandle != "" {
		return fmt.Errorf("submitting job %s: %w", job.ID, ErrAlreadySubmitted)
	}
	log := c.logger.With(logging.Job(job)...)
	log.Debug("submitting conversion")

	if v := c.readiness.Verdict(ctx); !v.OK() {
		detail := v.Message
		if detail == "" {
			detail = "conversion service is not ready (" + string(v.Status) + ")"
		}
		log.Error("conversion service is not ready; check the service URL setting",
			zap.String("verdict", string(v.Status)))
		return c.fail(ctx, job, ErrConfiguration, detail)
	}

	from := job.Source.Extension()
	if !c.formats.IsSupported(ctx, from) {
		log.Error("source format not supported", zap.String("format", from))
		return c.fail(ctx, job, ErrUnsupportedFormat,
			fmt.Sprintf("input extension %q of %s is not supported", from, job.Source.Filename))
	}
	to := types.NormalizeExtension(job.TargetFormat)
	if !c.formats.IsSupported(ctx, to) {
		log.Error("target format not supported", zap.String("format", to))
		return c.fail(ctx, job, ErrUnsupportedFormat,
			fmt.Sprintf("output extension %q is not supported", to))
	}

	sc, err := newScratch(c.scratchDir)
	if err != nil {
		return err
	}
	defer sc.remove()

	staged, err := c.stageSource(ctx, sc, job.Source)
	if err != nil {
		log.Error("could not stage source file", zap.Error(err))
		return err
	}

	f, err := os.Open(staged)
	if err != nil {
		return &StagingError{Op: "open", Path: staged, Err: err}
	}
	defer f.Close()

	fields := []httputil.Field{
		{Name: "file", Filename: job.Source.Filename, Content: f},
		{Name: "filename", Value: job.Source.Filename},
		{Name: "originalFormat", Value: from},
		{Name: "targetFormat", Value: to},
	}
	var resp submitResponse
	if err := c.transport.PostMultipart(ctx, httputil.JoinURL(c.baseURL, "conversion"), fields, &resp); err != nil {
		log.Error("submission failed", zap.Error(err))
		return c.fail(ctx, job, ErrTransport, err.Error())
	}

	if resp.rejected() {
		log.Error("service rejected conversion",
			zap.String("name", deref(resp.Name)), zap.String("message", deref(resp.Message)))
		return c.fail(ctx, job, ErrRemoteRejection, resp.rejectionDetail())
	}
	if resp.ConversionID == "" {
		// No handle was allocated and no reason given; the job stays pending.
		log.Error("unknown error: submission response carried no conversionId")
		return nil
	}

	job.RemoteHandle = resp.ConversionID
	job.Status = types.StatusInProgress
	job.StatusMessage = inProgressMessage
	job.UpdatedAt = c.now()
	log.Info("conversion submitted", zap.String(logging.FieldRemoteHandle, job.RemoteHandle))
	return c.save(ctx, job)
}

func (c *Converter) stageSource(ctx context.Context, sc *scratch, src types.SourceFile) (string, error) {
	r, err := c.files.OpenSource(ctx, src)
	if err != nil {
		return "", &StagingError{Op: "open source", Path: src.Path, Err: err}
	}
	defer r.Close()
	return sc.copyIn(localName(src.ID, src.Extension()), r)
}

// Poll asks the service for the job's progress and applies it. Calling Poll
// on a terminal job does nothing. Pacing between calls is up to the caller.
func (c *Converter) Poll(ctx context.Context, job *types.ConversionJob) error {
	if job.Status.Terminal() {
		return nil
	}
	if job.RemoteHandle == "" {
		return fmt.Errorf("polling job %s: %w", job.ID, ErrNotSubmitted)
	}
	log := c.logger.With(logging.Job(job)...)

	var resp pollResponse
	endpoint := httputil.JoinURL(c.baseURL, "conversion/"+url.PathEscape(job.RemoteHandle))
	if err := c.transport.FetchJSON(ctx, endpoint, &resp); err != nil {
		log.Error("poll failed", zap.Error(err))
		return c.fail(ctx, job, ErrTransport, err.Error())
	}

	status := MapRemoteStatus(resp.Status)
	log.Debug("polled conversion", zap.String("remote_status", resp.Status))

	switch status {
	case types.StatusComplete:
		return c.complete(ctx, job, resp.ResultFile)
	case types.StatusFailed:
		log.Warn("service reported conversion failure", zap.String("remote_status", resp.Status))
		return c.fail(ctx, job, ErrRemoteRejection,
			fmt.Sprintf("service reported status %q", resp.Status))
	default:
		job.Status = status
		if status == types.StatusInProgress {
			job.StatusMessage = inProgressMessage
		} else {
			job.StatusMessage = "In Queue"
		}
		job.UpdatedAt = c.now()
		return c.save(ctx, job)
	}
}

// complete materializes the result file and moves the job to Complete, or
// to Failed when the response carries no file or an empty one.
func (c *Converter) complete(ctx context.Context, job *types.ConversionJob, result *resultFile) error {
	log := c.logger.With(logging.Job(job)...)
	to := types.NormalizeExtension(job.TargetFormat)

	// A missing or null data field means no file; an empty one means 0 bytes.
	switch {
	case result == nil || result.Data == nil:
		log.Error("converted result has no file")
		return c.fail(ctx, job, ErrArtifactIntegrity, fmt.Sprintf(
			"conversion of %s from %q to %q was unsuccessful; the output file was not found",
			job.Source.Filename, job.Source.Extension(), to))
	case len(result.Data) == 0:
		log.Error("converted file is empty")
		return c.fail(ctx, job, ErrArtifactIntegrity, fmt.Sprintf(
			"conversion of %s from %q to %q was unsuccessful; the output file has 0 bytes",
			job.Source.Filename, job.Source.Extension(), to))
	}

	sc, err := newScratch(c.scratchDir)
	if err != nil {
		return err
	}
	defer sc.remove()

	out := sc.path(localName(job.Source.ID, to))
	if err := os.WriteFile(out, result.Data, 0o600); err != nil {
		return &StagingError{Op: "write", Path: out, Err: err}
	}

	ref, err := c.files.StoreArtifact(ctx, job, out)
	if err != nil {
		return fmt.Errorf("storing artifact for job %s: %w", job.ID, err)
	}

	job.DestFile = ref
	job.Status = types.StatusComplete
	job.StatusMessage = ""
	job.UpdatedAt = c.now()
	log.Info("conversion complete", zap.String("dest_file", ref), zap.Int("bytes", len(result.Data)))
	return c.save(ctx, job)
}

// fail records a terminal failure of the given kind.
func (c *Converter) fail(ctx context.Context, job *types.ConversionJob, kind error, detail string) error {
	job.Status = types.StatusFailed
	job.StatusMessage = failureMessage(kind, detail)
	job.UpdatedAt = c.now()
	return c.save(ctx, job)
}

func (c *Converter) save(ctx context.Context, job *types.ConversionJob) error {
	if err := c.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("persisting job %s: %w", job.ID, err)
	}
	return nil
}
