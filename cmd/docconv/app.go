// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/docconv/internal/capability"
	"github.com/pdiddy/docconv/internal/convert"
	"github.com/pdiddy/docconv/internal/filestore"
	"github.com/pdiddy/docconv/internal/httputil"
	"github.com/pdiddy/docconv/internal/jobstore"
	"github.com/pdiddy/docconv/internal/logging"
	"github.com/pdiddy/docconv/internal/poller"
	"github.com/pdiddy/docconv/internal/readiness"
	"github.com/pdiddy/docconv/pkg/types"
)

// app holds the components shared by the subcommands. All of them are
// built from one HTTP client so every request follows the same policy.
type app struct {
	cfg    types.Config
	logger *zap.Logger

	client    *httputil.Client
	checker   *readiness.Checker
	formats   *capability.Cache
	files     *filestore.Store
	jobs      *jobstore.Store
	converter *convert.Converter
}

// newApp wires the components for c. The caller must call close.
func newApp(c types.Config, logger *zap.Logger) (*app, error) {
	logger = logging.OrNop(logger)
	client := httputil.NewClient(c.HTTP, c.Service.Token)
	checker := readiness.NewChecker(client, c.Service.URL, c.Service.StrictReadiness, logger)
	formats := capability.New(client, c.Service.URL,
		capability.WithTTL(c.Cache.FormatsTTL),
		capability.WithLogger(logger),
	)

	files, err := filestore.New(c.Storage.Dir)
	if err != nil {
		return nil, err
	}
	jobs, err := jobstore.Open(c.Storage.Database)
	if err != nil {
		return nil, err
	}

	converter, err := convert.New(convert.Config{
		BaseURL:      c.Service.URL,
		ScratchDir:   c.Storage.ScratchDir,
		Readiness:    checker,
		Capabilities: formats,
		Transport:    client,
		Files:        files,
		Jobs:         jobs,
		Logger:       logger,
	})
	if err != nil {
		jobs.Close()
		return nil, err
	}

	return &app{
		cfg:       c,
		logger:    logger,
		client:    client,
		checker:   checker,
		formats:   formats,
		files:     files,
		jobs:      jobs,
		converter: converter,
	}, nil
}

func (a *app) close() {
	if err := a.jobs.Close(); err != nil {
		a.logger.Warn("closing job store", zap.Error(err))
	}
}

// wait polls job until it is terminal, following the poll configuration.
func (a *app) wait(ctx context.Context, job *types.ConversionJob) error {
	return poller.Wait(ctx, job, a.converter.Poll, a.cfg.Poll, a.logger.Named("poller"))
}

// advance polls job once, or until terminal when untilDone is set.
func (a *app) advance(ctx context.Context, job *types.ConversionJob, untilDone bool) error {
	if untilDone {
		return a.wait(ctx, job)
	}
	return a.converter.Poll(ctx, job)
}

// resolveJob loads a job by ID, with a friendlier error for unknown IDs.
func (a *app) resolveJob(ctx context.Context, id string) (*types.ConversionJob, error) {
	job, err := a.jobs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("resolving job: %w", err)
	}
	return job, nil
}

// commandContext returns a context cancelled on interrupt or termination.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func now() time.Time { return time.Now().UTC() }
