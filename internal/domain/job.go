// Package domain holds the core types shared by every QueueCTL component:
// jobs, workers, and the recognized configuration keys. Nothing in this
// package touches storage or I/O.
package domain

import "time"

// JobState is one of the five states a Job can occupy (spec §3).
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
	JobDead       JobState = "dead"
)

// Job is a single unit of work: a shell command plus scheduling metadata.
type Job struct {
	ID         string
	Command    string
	State      JobState
	Priority   int
	Attempts   int
	MaxRetries int

	// TimeoutSeconds overrides Config.job_timeout for this job when set.
	TimeoutSeconds *int

	// Tags is a free-form label set a producer may attach. It is stored and
	// returned with the job; it carries no scheduling weight, and no list or
	// query filters on it.
	Tags []string

	RunAt       time.Time
	EnqueuedAt  time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
	PickedBy    *string
	LastError   string
	Stdout      string
	Stderr      string
	StdoutTrunc bool
	StderrTrunc bool
	ExitCode    *int
}

// IsOwned reports whether the job is currently claimed by a worker.
func (j *Job) IsOwned() bool {
	return j.PickedBy != nil
}

// IsTerminal reports whether the job has reached a state the engine never
// mutates again on its own (completed or dead). `pending`/`processing` can
// still transition; `failed` is transient (retried jobs go back to
// `pending`).
func (j *Job) IsTerminal() bool {
	return j.State == JobCompleted || j.State == JobDead
}

// JobSpec is the fixed, typed record an `enqueue` request is parsed into
// (spec §4.3, §6 "Job submission JSON"). Unknown JSON fields are ignored by
// the caller before a JobSpec is constructed — this type never sees them.
type JobSpec struct {
	ID             string
	Command        string
	Priority       int
	MaxRetries     *int
	RunAt          *time.Time
	Tags           []string
	TimeoutSeconds *int
}
