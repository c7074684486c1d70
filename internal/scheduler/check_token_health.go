package scheduler

import (
	"context"
	"fmt"

	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/aristath/questrade-sentinel/internal/queue"
)

// CheckTokenHealthHandler refreshes every stored login's access token. A
// refresh failure means the stored refresh token has gone stale or been
// revoked; that's surfaced as events.TokenHealthDegraded rather than left
// to fail silently until the next user-facing request needs it (spec §4.1).
func CheckTokenHealthHandler(tokens domain.TokenStore, bus *events.Bus) queue.Handler {
	return func(job *queue.Job) error {
		ctx := context.Background()

		logins, err := tokens.ListLogins()
		if err != nil {
			return fmt.Errorf("check_token_health: list logins: %w", err)
		}

		var degraded []string
		for _, login := range logins {
			if _, err := tokens.RefreshAccessToken(ctx, login); err != nil {
				degraded = append(degraded, login.ID)
				bus.Emit(events.TokenHealthDegraded, "scheduler", map[string]interface{}{
					"login_id": login.ID,
					"error":    err.Error(),
				})
			}
		}

		if len(degraded) > 0 {
			return fmt.Errorf("check_token_health: %d login(s) failed to refresh: %v", len(degraded), degraded)
		}
		return nil
	}
}
