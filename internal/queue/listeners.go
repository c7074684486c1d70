package queue

import (
	"fmt"

	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/rs/zerolog"
)

// RegisterListeners wires the event bus (internal/events) to the work
// queue: every background signal a scheduled job emits becomes a follow-up
// job, so e.g. a successful price sync immediately re-triggers a model
// evaluation instead of waiting for the next cron tick.
func RegisterListeners(bus *events.Bus, manager *Manager, registry *Registry, log zerolog.Logger) {
	log = log.With().Str("component", "event_listeners").Logger()

	enqueue := func(eventType events.EventType, jobType JobType, priority Priority, event *events.Event) {
		job := &Job{
			ID:          fmt.Sprintf("%s-%d", jobType, event.Timestamp.UnixNano()),
			Type:        jobType,
			Priority:    priority,
			Payload:     event.Data,
			CreatedAt:   event.Timestamp,
			AvailableAt: event.Timestamp,
			MaxRetries:  3,
		}
		if err := manager.Enqueue(job); err != nil {
			log.Error().
				Err(err).
				Str("event_type", string(eventType)).
				Str("job_type", string(jobType)).
				Str("job_id", job.ID).
				Msg("failed to enqueue job from event")
			return
		}
		log.Info().
			Str("event_type", string(eventType)).
			Str("job_type", string(jobType)).
			Str("job_id", job.ID).
			Msg("enqueued job from event")
	}

	// A fresh close means a rebalance evaluation can use it immediately,
	// rather than waiting for the next evaluate_models cron tick.
	_ = bus.Subscribe(events.PricesSynced, func(event *events.Event) {
		enqueue(events.PricesSynced, JobTypeEvaluateModels, PriorityMedium, event)
	})

	// New activities (deposits, trades) are the other input the evaluator
	// and funding engine need refreshed before their next run.
	_ = bus.Subscribe(events.ActivitiesSynced, func(event *events.Event) {
		enqueue(events.ActivitiesSynced, JobTypeEvaluateModels, PriorityMedium, event)
	})

	// A degraded login should be re-checked sooner than the normal cron
	// interval so it recovers (or pages the user) quickly.
	_ = bus.Subscribe(events.TokenHealthDegraded, func(event *events.Event) {
		enqueue(events.TokenHealthDegraded, JobTypeCheckTokenHealth, PriorityCritical, event)
	})

	// A drift past the model's band is the trigger spec §4.9 names for a
	// backup snapshot ahead of any manual rebalance the user makes next.
	_ = bus.Subscribe(events.RebalanceNeeded, func(event *events.Event) {
		enqueue(events.RebalanceNeeded, JobTypeBackupSnapshot, PriorityLow, event)
	})
}
