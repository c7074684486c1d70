package events

import "time"

// EventType identifies one of the background signals the work queue
// reacts to (spec §4.9).
type EventType string

const (
	// PricesSynced fires after a price-cache refresh job completes.
	PricesSynced EventType = "prices_synced"
	// ActivitiesSynced fires after an activity-crawl job completes.
	ActivitiesSynced EventType = "activities_synced"
	// TokenRefreshed fires whenever a login's access token is rotated.
	TokenRefreshed EventType = "token_refreshed"
	// TokenHealthDegraded fires when a scheduled token health check finds a
	// login whose refresh token no longer works.
	TokenHealthDegraded EventType = "token_health_degraded"
	// RebalanceNeeded fires when an account's investment model evaluation
	// flips from hold to rebalance.
	RebalanceNeeded EventType = "rebalance_needed"
)

// AllEventTypes lists every EventType the bus carries. internal/server's
// live status stream subscribes to each individually since Bus has no
// subscribe-to-everything primitive.
var AllEventTypes = []EventType{
	PricesSynced,
	ActivitiesSynced,
	TokenRefreshed,
	TokenHealthDegraded,
	RebalanceNeeded,
}

// Event is one occurrence of an EventType, with enough context for a
// subscriber to act without re-fetching state.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Module    string
	Data      map[string]interface{}
}
