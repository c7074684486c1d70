package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/questrade-sentinel/internal/activity"
	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/aristath/questrade-sentinel/internal/queue"
)

// activitySyncWindow only needs to be wide enough to catch a settlement
// that landed late; the aggregator re-crawls the full history on demand
// (internal/aggregator's Aggregator.Summaries), this job exists to surface broker errors
// and new funding flows early rather than to build a cache.
const activitySyncWindow = 35 * 24 * time.Hour

// SyncActivitiesHandler crawls recent activity for every configured
// account to detect newly arrived funding flows and broker-side failures
// before a user hits the aggregation endpoint, then emits
// events.ActivitiesSynced.
func SyncActivitiesHandler(cfg domain.ConfigStore, tokens domain.TokenStore, crawler *activity.Crawler, bus *events.Bus) queue.Handler {
	return func(job *queue.Job) error {
		ctx := context.Background()

		accounts, err := cfg.Accounts()
		if err != nil {
			return fmt.Errorf("sync_activities: list accounts: %w", err)
		}

		now := time.Now().UTC()
		start := now.Add(-activitySyncWindow)

		var failures []string
		total := 0
		for _, acc := range accounts {
			login, err := tokens.GetLogin(acc.LoginID)
			if err != nil || login == nil {
				failures = append(failures, acc.Number)
				continue
			}
			activities, err := crawler.Crawl(ctx, *login, acc.Number, start, now)
			if err != nil {
				failures = append(failures, acc.Number)
				continue
			}
			total += len(activities)
		}

		bus.Emit(events.ActivitiesSynced, "scheduler", map[string]interface{}{
			"accounts":  len(accounts),
			"activities": total,
			"failures":  failures,
		})

		if len(failures) > 0 {
			return fmt.Errorf("sync_activities: failed for %d account(s): %v", len(failures), failures)
		}
		return nil
	}
}
