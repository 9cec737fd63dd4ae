package models

import "time"

// JobStatus is one of the four states a Job passes through; terminal states
// (Completed, Failed) never transition again (spec.md §3).
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a background propagation task's externally visible record.
// Result is deliberately small: per-frame mask data never lives here, only
// summary metadata (spec.md §4.3's sanitization contract).
type Job struct {
	JobID       string
	JobType     string
	Status      JobStatus
	Progress    float64
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Result      *JobResult
	Error       string

	// Params records the submission arguments, carried over from the
	// source's Job.params bag (original_source/sam-service/core/job_manager.py)
	// — kept for debugging; the Poll-job response does not include it.
	Params map[string]any
}

// JobResult is the sanitized summary of a completed propagation: no raw
// mask bytes, only what frames/objects were covered.
type JobResult struct {
	SessionID    string
	TotalFrames  int
	FramesCovered int
	ObjectIDs    []int
}
