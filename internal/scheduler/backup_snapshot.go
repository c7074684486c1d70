package scheduler

import (
	"context"

	"github.com/aristath/questrade-sentinel/internal/backup"
	"github.com/aristath/questrade-sentinel/internal/queue"
)

// BackupSnapshotHandler uploads the token store and accounts config to
// the configured object store (spec §C11). svc is nil when no object
// store credentials were provided; the handler then reports success
// without doing anything, matching "disabled unless configured, never
// fatal".
func BackupSnapshotHandler(svc *backup.Service) queue.Handler {
	return func(job *queue.Job) error {
		if svc == nil {
			return nil
		}
		return svc.Snapshot(context.Background())
	}
}
