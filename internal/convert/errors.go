// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. A job that fails records one of these as the prefix of its
// status message; FailureKind recovers it.
var (
	ErrConfiguration     = errors.New("configuration error")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrTransport         = errors.New("transport error")
	ErrRemoteRejection   = errors.New("remote rejection")
	ErrArtifactIntegrity = errors.New("artifact integrity error")
)

var failureKinds = []error{
	ErrConfiguration,
	ErrUnsupportedFormat,
	ErrTransport,
	ErrRemoteRejection,
	ErrArtifactIntegrity,
}

// Caller errors returned without touching the job.
var (
	ErrAlreadySubmitted = errors.New("job already submitted")
	ErrNotSubmitted     = errors.New("job has no remote handle")
	ErrNotFailed        = errors.New("only failed jobs can be resubmitted")
)

// StagingError reports a local I/O fault while preparing scratch files. It
// is the one failure Submit and Poll return instead of recording on the
// job, because the host must provide writable scratch space.
type StagingError struct {
	Op   string
	Path string
	Err  error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

func failureMessage(kind error, detail string) string {
	return kind.Error() + ": " + detail
}

// FailureKind returns the failure kind recorded in a job status message, or
// nil when the message carries none.
func FailureKind(statusMessage string) error {
	for _, kind := range failureKinds {
		if strings.HasPrefix(statusMessage, kind.Error()+": ") {
			return kind
		}
	}
	return nil
}
