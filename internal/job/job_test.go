package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videoseg/internal/apierr"
	"videoseg/internal/logger"
	"videoseg/internal/models"
)

type nullLogger struct{}

func (nullLogger) Debugf(string, ...interface{}) {}
func (nullLogger) Infof(string, ...interface{})  {}
func (nullLogger) Warnf(string, ...interface{})  {}
func (nullLogger) Errorf(string, ...interface{}) {}
func (n nullLogger) With(...interface{}) logger.Logger { return n }

func waitForStatus(t *testing.T, mgr *Manager, jobID string, want models.JobStatus, timeout time.Duration) models.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		j, ok := mgr.Get(jobID)
		require.True(t, ok)
		if j.Status == want {
			return j
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %s within %s", jobID, want, timeout)
	return models.Job{}
}

func TestSubmitRunsTaskToCompletion(t *testing.T) {
	mgr := NewManager(1, nullLogger{})
	defer mgr.Shutdown()

	jobID := mgr.Submit("propagate_masks", func(ctx context.Context, progress func(pct float64)) (*models.JobResult, error) {
		progress(50)
		return &models.JobResult{SessionID: "s1", TotalFrames: 10, FramesCovered: 10}, nil
	}, nil)

	j := waitForStatus(t, mgr, jobID, models.JobCompleted, time.Second)
	assert.Equal(t, float64(100), j.Progress)
	require.NotNil(t, j.Result)
	assert.Equal(t, "s1", j.Result.SessionID)
}

func TestSubmitRecordsFailure(t *testing.T) {
	mgr := NewManager(1, nullLogger{})
	defer mgr.Shutdown()

	jobID := mgr.Submit("propagate_masks", func(ctx context.Context, progress func(pct float64)) (*models.JobResult, error) {
		return nil, apierr.New(apierr.SegmenterFailed, "boom")
	}, nil)

	j := waitForStatus(t, mgr, jobID, models.JobFailed, time.Second)
	assert.Contains(t, j.Error, "boom")
}

func TestCancelRunningJobStopsIt(t *testing.T) {
	mgr := NewManager(1, nullLogger{})
	defer mgr.Shutdown()

	started := make(chan struct{})
	jobID := mgr.Submit("propagate_masks", func(ctx context.Context, progress func(pct float64)) (*models.JobResult, error) {
		close(started)
		<-ctx.Done()
		return nil, apierr.New(apierr.Cancelled, "cancelled")
	}, nil)

	<-started
	_, err := mgr.Cancel(jobID)
	require.NoError(t, err)

	j := waitForStatus(t, mgr, jobID, models.JobFailed, time.Second)
	assert.Equal(t, "cancelled", j.Error)
}

func TestCancelPendingJobNeverRuns(t *testing.T) {
	mgr := NewManager(0, nullLogger{}) // no workers: job stays pending until cancelled
	defer mgr.Shutdown()

	ran := false
	jobID := mgr.Submit("propagate_masks", func(ctx context.Context, progress func(pct float64)) (*models.JobResult, error) {
		ran = true
		return &models.JobResult{}, nil
	}, nil)

	j, err := mgr.Cancel(jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, j.Status)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, ran, "a job cancelled while pending must never run, even with workers added later")
}

func TestUpdateProgressClampsRange(t *testing.T) {
	mgr := NewManager(1, nullLogger{})
	defer mgr.Shutdown()

	blocker := make(chan struct{})
	jobID := mgr.Submit("propagate_masks", func(ctx context.Context, progress func(pct float64)) (*models.JobResult, error) {
		progress(-10)
		progress(500)
		<-blocker
		return &models.JobResult{}, nil
	}, nil)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		j, _ := mgr.Get(jobID)
		if j.Status == models.JobRunning && j.Progress == 100 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	j, _ := mgr.Get(jobID)
	assert.Equal(t, float64(100), j.Progress)
	close(blocker)
}

func TestSweepTerminalRemovesOldJobsOnly(t *testing.T) {
	mgr := NewManager(1, nullLogger{})
	defer mgr.Shutdown()

	jobID := mgr.Submit("propagate_masks", func(ctx context.Context, progress func(pct float64)) (*models.JobResult, error) {
		return &models.JobResult{}, nil
	}, nil)
	waitForStatus(t, mgr, jobID, models.JobCompleted, time.Second)

	removed := mgr.SweepTerminal(time.Hour)
	assert.Equal(t, 0, removed, "a recently completed job must survive a long retention window")

	removed = mgr.SweepTerminal(0)
	assert.Equal(t, 1, removed)

	_, ok := mgr.Get(jobID)
	assert.False(t, ok)
}
