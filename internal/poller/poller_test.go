// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/docconv/pkg/types"
)

var fast = types.PollConfig{Interval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func submitted() *types.ConversionJob {
	job := types.NewJob("job-1", types.SourceFile{ID: "s", Filename: "a.docx"}, "pdf", time.Now())
	job.RemoteHandle = "h-1"
	job.Status = types.StatusInProgress
	return job
}

// sequence returns a PollFunc that applies the given states in order.
func sequence(calls *int, states ...types.Status) PollFunc {
	return func(_ context.Context, job *types.ConversionJob) error {
		job.Status = states[*calls]
		*calls++
		return nil
	}
}

func TestWait_UntilTerminal(t *testing.T) {
	tests := []struct {
		name   string
		states []types.Status
	}{
		{name: "completes", states: []types.Status{types.StatusPending, types.StatusInProgress, types.StatusComplete}},
		{name: "fails", states: []types.Status{types.StatusInProgress, types.StatusFailed}},
		{name: "first poll", states: []types.Status{types.StatusComplete}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := submitted()
			var calls int
			require.NoError(t, Wait(context.Background(), job, sequence(&calls, tt.states...), fast, nil))
			assert.Equal(t, len(tt.states), calls)
			assert.Equal(t, tt.states[len(tt.states)-1], job.Status)
		})
	}
}

func TestWait_AlreadyTerminal(t *testing.T) {
	job := submitted()
	job.Status = types.StatusComplete
	var calls int
	require.NoError(t, Wait(context.Background(), job, sequence(&calls), fast, nil))
	assert.Zero(t, calls)
}

func TestWait_MaxAttempts(t *testing.T) {
	job := submitted()
	var calls int
	cfg := fast
	cfg.MaxAttempts = 3

	err := Wait(context.Background(), job, sequence(&calls,
		types.StatusInProgress, types.StatusInProgress, types.StatusInProgress, types.StatusComplete), cfg, nil)
	assert.ErrorIs(t, err, ErrMaxAttempts)
	assert.Equal(t, 3, calls)
}

func TestWait_PollError(t *testing.T) {
	boom := errors.New("boom")
	err := Wait(context.Background(), submitted(), func(context.Context, *types.ConversionJob) error {
		return boom
	}, fast, nil)
	assert.ErrorIs(t, err, boom)
}

func TestWait_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	cfg := types.PollConfig{Interval: time.Hour}
	var calls int
	err := Wait(ctx, submitted(), sequence(&calls, types.StatusInProgress, types.StatusComplete), cfg, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestWait_BackoffIsCapped(t *testing.T) {
	job := submitted()
	var stamps []time.Time
	cfg := types.PollConfig{Interval: 5 * time.Millisecond, MaxInterval: 10 * time.Millisecond}

	err := Wait(context.Background(), job, func(_ context.Context, j *types.ConversionJob) error {
		stamps = append(stamps, time.Now())
		if len(stamps) == 5 {
			j.Status = types.StatusComplete
		}
		return nil
	}, cfg, nil)
	require.NoError(t, err)
	require.Len(t, stamps, 5)

	total := stamps[4].Sub(stamps[0])
	// 5 + 10 + 10 + 10 ms of waiting.
	assert.GreaterOrEqual(t, total, 35*time.Millisecond)
	assert.Less(t, total, time.Second)
}
