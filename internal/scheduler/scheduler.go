// Package scheduler runs the five recurring jobs spec §4.9 names (price
// sync, activity sync, token health, model evaluation, backup) on cron
// schedules and hands each firing to the work queue (internal/queue)
// rather than running the job inline, so a slow broker call never blocks
// the next tick.
package scheduler

import (
	"time"

	"github.com/aristath/questrade-sentinel/internal/queue"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// entry pairs a cron schedule with the job it enqueues when due.
type entry struct {
	spec     string
	jobType  queue.JobType
	priority queue.Priority
	interval time.Duration
}

var defaultEntries = []entry{
	// Prices move during market hours; check every 15 minutes.
	{spec: "*/15 * * * *", jobType: queue.JobTypeSyncPrices, priority: queue.PriorityMedium, interval: 15 * time.Minute},
	// New activities (trades, deposits) settle slower than quotes.
	{spec: "0 */6 * * *", jobType: queue.JobTypeSyncActivities, priority: queue.PriorityMedium, interval: 6 * time.Hour},
	// A dead refresh token should be caught well before a user request hits it.
	{spec: "*/30 * * * *", jobType: queue.JobTypeCheckTokenHealth, priority: queue.PriorityHigh, interval: 30 * time.Minute},
	// Model evaluation is cheap once prices/activities are fresh; once a day
	// is enough outside of the event-driven re-evaluation in listeners.go.
	{spec: "0 7 * * *", jobType: queue.JobTypeEvaluateModels, priority: queue.PriorityLow, interval: 24 * time.Hour},
	// Nightly snapshot of the token store and accounts config (C11).
	{spec: "0 2 * * *", jobType: queue.JobTypeBackupSnapshot, priority: queue.PriorityLow, interval: 24 * time.Hour},
}

// Scheduler drives the cron engine; it never runs a job body itself.
type Scheduler struct {
	cron    *cron.Cron
	manager *queue.Manager
	log     zerolog.Logger
	entries []entry
}

// New builds a Scheduler using the default job calendar. Pass entries to
// override it (used by tests to shrink intervals).
func New(manager *queue.Manager, log zerolog.Logger, entries ...entry) *Scheduler {
	if len(entries) == 0 {
		entries = defaultEntries
	}
	return &Scheduler{
		cron:    cron.New(),
		manager: manager,
		log:     log.With().Str("component", "scheduler").Logger(),
		entries: entries,
	}
}

// Start registers every entry with the cron engine and begins running it
// in its own goroutine. Call Stop to shut it down cleanly.
func (s *Scheduler) Start() error {
	for _, e := range s.entries {
		e := e
		if _, err := s.cron.AddFunc(e.spec, func() {
			enqueued := s.manager.EnqueueIfShouldRun(e.jobType, e.priority, e.interval, map[string]interface{}{})
			if enqueued {
				s.log.Info().Str("job_type", string(e.jobType)).Msg("enqueued scheduled job")
			} else {
				s.log.Debug().Str("job_type", string(e.jobType)).Msg("skipped scheduled job, interval not yet elapsed")
			}
		}); err != nil {
			return err
		}
	}
	s.cron.Start()
	return nil
}

// Stop waits for any in-flight cron invocation to finish, then stops
// scheduling new ones.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
