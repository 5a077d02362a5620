package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type blockingJob struct {
	started chan struct{}
	release chan struct{}
	runs    atomic.Int32
	err     error
}

func (j *blockingJob) Name() string { return "blocking" }

func (j *blockingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.started != nil {
		j.started <- struct{}{}
		<-j.release
	}
	return j.err
}

func TestAddJobRejectsBadSpecAndDuplicates(t *testing.T) {
	s := NewCronScheduler()
	require.Error(t, s.AddJob(&blockingJob{}, "not a cron"))
	require.NoError(t, s.AddJob(&blockingJob{}, "@every 1h"))
	require.Error(t, s.AddJob(&blockingJob{}, "0 3 * * *"))
}

func TestRunNow(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{err: errors.New("source down")}
	require.NoError(t, s.AddJob(job, "0 3 * * *"))

	require.EqualError(t, s.RunNow("blocking"), "source down")
	require.Equal(t, int32(1), job.runs.Load())
	require.Error(t, s.RunNow("missing"))
}

func TestRunNowSkipsOverlappingRun(t *testing.T) {
	s := NewCronScheduler()
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, s.AddJob(job, "0 3 * * *"))

	done := make(chan error, 1)
	go func() { done <- s.RunNow("blocking") }()
	<-job.started

	require.ErrorIs(t, s.RunNow("blocking"), ErrJobRunning)
	close(job.release)
	require.NoError(t, <-done)
	require.Equal(t, int32(1), job.runs.Load())
}
