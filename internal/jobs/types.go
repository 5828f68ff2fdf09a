package jobs

import (
	"context"
	"errors"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeImportSlip imports one weighbridge slip from object storage.
	JobTypeImportSlip JobType = "import_slip"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// DefaultMaxRetries applies to jobs published without MaxRetries.
const DefaultMaxRetries = 3

// ImportSlipJob imports a slip stored at GCSURI for an owner.
type ImportSlipJob struct {
	JobID   string `json:"job_id"`
	OwnerID string `json:"owner_id"`
	GCSURI  string `json:"gcs_uri"`

	// Set by the handler once the pipeline has created them.
	ImportID         string `json:"import_id,omitempty"`
	ParsingRunID     string `json:"parsing_run_id,omitempty"`
	TransactionCount int    `json:"transaction_count"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ImportSlipJob) GetID() string        { return j.JobID }
func (j *ImportSlipJob) GetType() JobType     { return JobTypeImportSlip }
func (j *ImportSlipJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	// PublishImportSlip enqueues a slip import. It fills in JobID, Status,
	// CreatedAt and MaxRetries when they are unset.
	PublishImportSlip(ctx context.Context, job *ImportSlipJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer runs a handler over queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error is retried unless it is
// wrapped with Permanent.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for the status endpoints.
type JobStore interface {
	SaveJob(ctx context.Context, job *ImportSlipJob) error
	GetJob(ctx context.Context, jobID string) (*ImportSlipJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ImportSlipJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// ErrJobNotFound is returned by JobStore for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	OwnerID string
	Status  JobStatus
	Limit   int
	Offset  int
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
