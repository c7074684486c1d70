package scheduler

import (
	"github.com/aristath/questrade-sentinel/internal/activity"
	"github.com/aristath/questrade-sentinel/internal/backup"
	"github.com/aristath/questrade-sentinel/internal/domain"
	"github.com/aristath/questrade-sentinel/internal/evaluator"
	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/aristath/questrade-sentinel/internal/pricecache"
	"github.com/aristath/questrade-sentinel/internal/queue"
)

// Dependencies bundles everything the job handlers need; cmd/server builds
// one of these and passes it to RegisterHandlers during startup.
type Dependencies struct {
	ConfigStore domain.ConfigStore
	TokenStore  domain.TokenStore
	Broker      domain.BrokerClient
	Cache       *pricecache.Cache
	Crawler     *activity.Crawler
	Models      *evaluator.Registry
	Bus         *events.Bus
	// Backup is nil when no object store is configured; see backup.New.
	Backup *backup.Service
}

// RegisterHandlers wires every C10 job type to its handler function. Call
// this once before starting the queue.WorkerPool.
func RegisterHandlers(registry *queue.Registry, deps Dependencies) {
	registry.Register(queue.JobTypeSyncPrices, SyncPricesHandler(deps.ConfigStore, deps.Cache, deps.Bus))
	registry.Register(queue.JobTypeSyncActivities, SyncActivitiesHandler(deps.ConfigStore, deps.TokenStore, deps.Crawler, deps.Bus))
	registry.Register(queue.JobTypeCheckTokenHealth, CheckTokenHealthHandler(deps.TokenStore, deps.Bus))
	registry.Register(queue.JobTypeEvaluateModels, EvaluateModelsHandler(deps.ConfigStore, deps.Broker, deps.TokenStore, deps.Cache, deps.Models, deps.Bus))
	registry.Register(queue.JobTypeBackupSnapshot, BackupSnapshotHandler(deps.Backup))
}
