// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zap loggers used across docconv.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/docconv/pkg/types"
)

// New constructs a logger writing to stderr. Format is "console" (default)
// or "json"; Level is any zap level name and defaults to info.
func New(cfg types.LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if s := strings.TrimSpace(cfg.Level); s != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}

	var zc zap.Config
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.DisableStacktrace = true
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	case "json":
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}

// OrNop returns logger, or a no-op logger when it is nil.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// Field names shared by components so log lines can be filtered by job.
const (
	FieldJobID        = "job_id"
	FieldRemoteHandle = "remote_handle"
	FieldStatus       = "status"
	FieldURL          = "url"
)

// Job returns the standard fields identifying a conversion job.
func Job(job *types.ConversionJob) []zap.Field {
	if job == nil {
		return nil
	}
	fields := []zap.Field{zap.String(FieldJobID, job.ID), zap.String(FieldStatus, string(job.Status))}
	if job.RemoteHandle != "" {
		fields = append(fields, zap.String(FieldRemoteHandle, job.RemoteHandle))
	}
	return fields
}
