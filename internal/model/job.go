package model

import "time"

// JobStatus represents the queue state of a background job.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	// JobDead marks a job whose attempts are exhausted. Dead jobs are
	// retained for inspection; completed jobs are deleted.
	JobDead JobStatus = "dead"
)

// Queue names. Each queue runs with its own bounded worker concurrency.
const (
	QueueIngest = "ingest"
	QueueEnrich = "enrich"
	QueueSync   = "sync"
	QueueNotify = "notify"
)

// Job kinds.
const (
	JobKindIngest = "run_ingestion"
	JobKindEnrich = "run_enrichment"
	JobKindSync   = "run_sync"
	JobKindNotify = "send_notification"
)

// Job is a unit of queued work. Payload is a small JSON document naming the
// record the job operates on (never raw candidate data).
type Job struct {
	ID          string    `json:"id"`
	Queue       string    `json:"queue"`
	Kind        string    `json:"kind"`
	Payload     []byte    `json:"payload,omitempty"`
	Status      JobStatus `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	NextRunAt   time.Time `json:"next_run_at"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
