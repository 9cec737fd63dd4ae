// Package job implements the Propagation Job Scheduler (spec.md §4.3): a
// bounded worker pool that runs propagation as a background job, with
// progress, lifecycle, keep-alive, and result sanitization. Grounded on
// original_source/sam-service/core/job_manager.py's InMemoryJobManager
// (ThreadPoolExecutor + Lock + jobs dict), translated to Go's native idiom:
// fixed worker goroutines draining a job channel, a sync.Mutex-guarded job
// table.
package job

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"videoseg/internal/apierr"
	"videoseg/internal/logger"
	"videoseg/internal/models"
)

// Task is a unit of background work. ctx is cancelled cooperatively when
// the job is cancelled; progress lets the task report 0-100 completion.
type Task func(ctx context.Context, progress func(pct float64)) (*models.JobResult, error)

type queuedJob struct {
	jobID string
	task  Task
}

// Manager is a bounded worker pool tracking job status, progress, result,
// and error (spec.md §4.3's "JobManager is a bounded worker pool").
type Manager struct {
	mu   sync.Mutex
	jobs map[string]*models.Job

	cancel map[string]context.CancelFunc

	queue   chan queuedJob
	wg      sync.WaitGroup
	log     logger.Logger
	closing chan struct{}
	once    sync.Once
}

// NewManager starts maxWorkers worker goroutines draining a bounded job
// queue, mirroring original_source/sam-service/core/job_manager.py's
// ThreadPoolExecutor(max_workers=...).
func NewManager(maxWorkers int, log logger.Logger) *Manager {
	m := &Manager{
		jobs:    make(map[string]*models.Job),
		cancel:  make(map[string]context.CancelFunc),
		queue:   make(chan queuedJob, 1024),
		log:     log,
		closing: make(chan struct{}),
	}
	for i := 0; i < maxWorkers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}
	return m
}

func (m *Manager) worker(id int) {
	defer m.wg.Done()
	for {
		select {
		case <-m.closing:
			return
		case qj, ok := <-m.queue:
			if !ok {
				return
			}
			m.run(qj)
		}
	}
}

func (m *Manager) run(qj queuedJob) {
	m.mu.Lock()
	j, ok := m.jobs[qj.jobID]
	if !ok || j.Status == models.JobCompleted || j.Status == models.JobFailed {
		// Already terminal: cancelled while still pending, or reaped.
		m.mu.Unlock()
		return
	}
	j.Status = models.JobRunning
	j.StartedAt = time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel[qj.jobID] = cancel
	m.mu.Unlock()

	log := m.log.With("job_id", qj.jobID, "job_type", j.JobType)
	log.Infof("started")

	result, err := qj.task(ctx, func(pct float64) { m.UpdateProgress(qj.jobID, pct) })

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancel, qj.jobID)
	j, ok = m.jobs[qj.jobID]
	if !ok {
		return
	}
	j.CompletedAt = time.Now()
	if err != nil {
		j.Status = models.JobFailed
		if apierr.KindOf(err) == apierr.Cancelled {
			j.Error = "cancelled"
		} else {
			j.Error = err.Error()
		}
		log.Warnf("failed: %v", err)
		return
	}
	j.Status = models.JobCompleted
	j.Progress = 100
	j.Result = result
	log.Infof("completed")
}

// Submit enqueues task under jobType with params recorded for later
// inspection, and returns immediately with a job id (spec.md §4.3).
func (m *Manager) Submit(jobType string, task Task, params map[string]any) string {
	jobID := uuid.NewString()

	m.mu.Lock()
	m.jobs[jobID] = &models.Job{
		JobID:     jobID,
		JobType:   jobType,
		Status:    models.JobPending,
		CreatedAt: time.Now(),
		Params:    params,
	}
	m.mu.Unlock()

	select {
	case m.queue <- queuedJob{jobID: jobID, task: task}:
	default:
		// Queue is saturated; run a background send so Submit never
		// blocks the caller (spec.md: "Submit still returns a job id
		// immediately; the job stays pending until a worker frees up").
		go func() { m.queue <- queuedJob{jobID: jobID, task: task} }()
	}

	return jobID
}

// Get returns a copy of the job's current status/progress/result/error, or
// false if unknown.
func (m *Manager) Get(jobID string) (models.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return models.Job{}, false
	}
	return *j, true
}

// UpdateProgress sets a running job's progress percentage. Called from
// inside a running task (spec.md §4.3).
func (m *Manager) UpdateProgress(jobID string, pct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j.Status != models.JobRunning {
		return
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	j.Progress = pct
}

// Cancel marks a running or pending job's intent flag. The propagation loop
// checks this cooperatively each frame (spec.md §5). A pending (not yet
// started) job has no context to cancel yet, so it is marked failed at once
// and run() skips it when a worker dequeues it.
func (m *Manager) Cancel(jobID string) (models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return models.Job{}, apierr.New(apierr.NotFound, "job %s not found", jobID)
	}
	if j.Status == models.JobCompleted || j.Status == models.JobFailed {
		return *j, nil
	}
	if cancel, ok := m.cancel[jobID]; ok {
		cancel()
	} else if j.Status == models.JobPending {
		// Not yet running: record the intent by marking it failed
		// immediately, since there is no in-flight context to cancel.
		j.Status = models.JobFailed
		j.Error = "cancelled"
		j.CompletedAt = time.Now()
	}
	return *j, nil
}

// SweepTerminal removes terminal (completed/failed) jobs whose CompletedAt
// is older than retention, returning the count removed (spec.md §4.3's
// "Job reaping").
func (m *Manager) SweepTerminal(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, j := range m.jobs {
		if (j.Status == models.JobCompleted || j.Status == models.JobFailed) && j.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// Shutdown stops accepting new work and waits for in-flight tasks to finish
// or fail (spec.md §5's "pool's Shutdown waits for them").
func (m *Manager) Shutdown() {
	m.once.Do(func() { close(m.closing) })
	m.wg.Wait()
}
