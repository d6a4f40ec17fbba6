// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package readiness decides whether the conversion service is configured
// and reachable before any conversion is attempted.
package readiness

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/docconv/internal/httputil"
	"github.com/pdiddy/docconv/internal/logging"
)

// Status classifies a readiness probe.
type Status string

const (
	StatusOK          Status = "ok"
	StatusEmptyConfig Status = "emptypath"
	StatusNotFound    Status = "notfound"
	StatusOtherError  Status = "error"
)

const (
	verdictKey = "verdict"

	// checkTimeout bounds a shared readiness check, which no caller can cancel.
	checkTimeout = 30 * time.Second
)

// Probe messages recorded on a Verdict.
const (
	MsgEmptyConfig = "Path to webservice is empty"
	MsgNotFound    = "Path error: webservice not found"
	MsgOtherError  = "unknown error occurred"
)

// Verdict is the outcome of a readiness probe.
type Verdict struct {
	Status  Status `json:"status" yaml:"status"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// OK reports whether the service may be used.
func (v Verdict) OK() bool { return v.Status == StatusOK }

// Advice returns the operator-facing explanation for the verdict.
func (v Verdict) Advice() string {
	switch v.Status {
	case StatusOK:
		return "The conversion webservice URL appears to be properly configured."
	case StatusEmptyConfig:
		return "The conversion webservice URL is not set. Please review your settings."
	case StatusNotFound:
		return "The provided URL does not point to the conversion webservice. Please review your settings."
	default:
		return "The webservice seems to have troubles responding. Review your settings."
	}
}

// StatusProber is the part of the HTTP transport the checker needs.
type StatusProber interface {
	FetchStatusCode(ctx context.Context, url string) (int, error)
}

// Checker probes {endpoint}/formats/ and caches the verdict until Reset.
//
// Without Strict, a response other than 200, 400 or 404 (and a failed
// probe) still yields StatusOK; the condition is logged as a warning. With
// Strict it yields StatusOtherError.
type Checker struct {
	prober   StatusProber
	endpoint string
	strict   bool
	logger   *zap.Logger

	mu      sync.Mutex
	verdict *Verdict
	group   singleflight.Group
}

// NewChecker returns a Checker for endpoint.
func NewChecker(prober StatusProber, endpoint string, strict bool, logger *zap.Logger) *Checker {
	return &Checker{
		prober:   prober,
		endpoint: strings.TrimSpace(endpoint),
		strict:   strict,
		logger:   logging.OrNop(logger).Named("readiness"),
	}
}

// Check probes the service now, bypassing the cache.
func (c *Checker) Check(ctx context.Context) Verdict {
	if c.endpoint == "" {
		return Verdict{Status: StatusEmptyConfig, Message: MsgEmptyConfig}
	}

	url := httputil.JoinURL(c.endpoint, "formats/")
	code, err := c.prober.FetchStatusCode(ctx, url)
	switch {
	case err != nil:
		c.logger.Warn("readiness probe failed", zap.String(logging.FieldURL, url), zap.Error(err))
		if c.strict {
			return Verdict{Status: StatusOtherError, Message: err.Error()}
		}
	case code == http.StatusOK:
	case code == http.StatusBadRequest || code == http.StatusNotFound:
		return Verdict{Status: StatusNotFound, Message: MsgNotFound}
	default:
		c.logger.Warn("readiness probe returned unexpected status",
			zap.String(logging.FieldURL, url), zap.Int("code", code))
		if c.strict {
			return Verdict{Status: StatusOtherError, Message: MsgOtherError}
		}
	}
	return Verdict{Status: StatusOK}
}

// Verdict returns the cached verdict, checking on first use. Concurrent
// first callers share one check, which runs detached from any single
// caller's cancellation. A caller whose ctx ends first gets an uncached
// StatusOtherError verdict; a check cut short by its own timeout is not
// cached either.
func (c *Checker) Verdict(ctx context.Context) Verdict {
	c.mu.Lock()
	if c.verdict != nil {
		v := *c.verdict
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	ch := c.group.DoChan(verdictKey, func() (any, error) {
		c.mu.Lock()
		if c.verdict != nil {
			v := *c.verdict
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()

		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkTimeout)
		defer cancel()
		v := c.Check(checkCtx)
		if checkCtx.Err() != nil {
			c.logger.Warn("readiness check timed out; verdict not cached",
				zap.String(logging.FieldStatus, string(v.Status)))
			return v, nil
		}
		c.mu.Lock()
		c.verdict = &v
		c.mu.Unlock()
		c.logger.Info("readiness verdict", zap.String(logging.FieldStatus, string(v.Status)))
		return v, nil
	})

	select {
	case <-ctx.Done():
		return Verdict{Status: StatusOtherError, Message: ctx.Err().Error()}
	case res := <-ch:
		return res.Val.(Verdict)
	}
}

// Ready reports whether the cached verdict is StatusOK.
func (c *Checker) Ready(ctx context.Context) bool {
	return c.Verdict(ctx).OK()
}

// Reset discards the cached verdict. Call it after the service
// configuration changes.
func (c *Checker) Reset() {
	c.mu.Lock()
	c.verdict = nil
	c.mu.Unlock()
	c.group.Forget(verdictKey)
}
