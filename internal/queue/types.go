package queue

import "time"

// JobType identifies a background job (spec §4.9).
type JobType string

const (
	// JobTypeSyncPrices refreshes the daily-close cache (C5) for every
	// symbol an account's investment models reference.
	JobTypeSyncPrices JobType = "sync_prices"
	// JobTypeSyncActivities crawls the last 35 days of broker activities
	// (C4) for every configured account.
	JobTypeSyncActivities JobType = "sync_activities"
	// JobTypeCheckTokenHealth probes every login's refresh token (C1) so a
	// dead token is caught by a scheduled job rather than the next request.
	JobTypeCheckTokenHealth JobType = "check_token_health"
	// JobTypeEvaluateModels re-runs the investment model evaluator (C7)
	// across every account, emitting RebalanceNeeded for any that drift.
	JobTypeEvaluateModels JobType = "evaluate_models"
	// JobTypeBackupSnapshot uploads a token-store/config snapshot (C11).
	JobTypeBackupSnapshot JobType = "backup_snapshot"
)

// Priority orders ready jobs within the queue; higher values dequeue first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// Job is one unit of queued work.
type Job struct {
	ID          string
	Type        JobType
	Priority    Priority
	Payload     map[string]interface{}
	CreatedAt   time.Time
	AvailableAt time.Time
	Retries     int
	MaxRetries  int
}

// Queue is the minimal contract a job store must satisfy.
type Queue interface {
	Enqueue(job *Job) error
	Dequeue() (*Job, error)
	Size() int
}
