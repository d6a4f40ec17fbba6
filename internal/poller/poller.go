// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package poller drives a submitted conversion job to a terminal state by
// polling it on a backoff schedule. Pacing belongs to the caller; the
// conversion client itself never sleeps.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/docconv/internal/logging"
	"github.com/pdiddy/docconv/pkg/types"
)

// ErrMaxAttempts is returned when the job is still running after the
// configured number of polls.
var ErrMaxAttempts = errors.New("job still running after max poll attempts")

// PollFunc advances job by one status query.
type PollFunc func(ctx context.Context, job *types.ConversionJob) error

// Wait calls poll until job reaches a terminal state. The delay starts at
// cfg.Interval and doubles after each poll that leaves the job running,
// capped at cfg.MaxInterval. A zero cfg.MaxAttempts polls without limit.
//
// Wait returns nil once the job is terminal, regardless of whether it
// completed or failed; callers inspect job.Status. Errors from poll and
// context cancellation are returned as-is.
func Wait(ctx context.Context, job *types.ConversionJob, poll PollFunc, cfg types.PollConfig, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	interval := cfg.Interval
	if interval <= 0 {
		interval = types.DefaultPollInterval
	}
	maxInterval := cfg.MaxInterval
	if maxInterval < interval {
		maxInterval = interval
	}

	delay := interval
	for attempt := 1; ; attempt++ {
		if job.Status.Terminal() {
			return nil
		}
		if err := poll(ctx, job); err != nil {
			return err
		}
		if job.Status.Terminal() {
			return nil
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return fmt.Errorf("job %s after %d polls: %w", job.ID, attempt, ErrMaxAttempts)
		}

		logger.Debug("job not finished, waiting",
			append(logging.Job(job), zap.Duration("delay", delay), zap.Int("attempt", attempt))...)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxInterval {
			delay = maxInterval
		}
	}
}
