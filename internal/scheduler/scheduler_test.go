package scheduler

import (
	"testing"
	"time"

	"github.com/aristath/questrade-sentinel/internal/queue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestScheduler_StartRegistersEveryEntryAndStopIsClean(t *testing.T) {
	q := queue.NewMemoryQueue()
	history := queue.NewHistory(nil) // nil db: ShouldRun always true
	manager := queue.NewManager(q, history)

	s := New(manager, zerolog.Nop(), defaultEntries...)

	require.NoError(t, s.Start())
	s.Stop() // must not block or panic even though no tick has fired yet
}

func TestScheduler_RejectsMalformedSchedule(t *testing.T) {
	q := queue.NewMemoryQueue()
	history := queue.NewHistory(nil)
	manager := queue.NewManager(q, history)

	s := New(manager, zerolog.Nop(), entry{
		spec:     "not a cron spec",
		jobType:  queue.JobTypeSyncPrices,
		priority: queue.PriorityMedium,
		interval: time.Minute,
	})

	require.Error(t, s.Start())
}

func TestScheduler_EnqueueIfShouldRunEnqueuesWithoutHistory(t *testing.T) {
	q := queue.NewMemoryQueue()
	history := queue.NewHistory(nil)
	manager := queue.NewManager(q, history)

	require.True(t, manager.EnqueueIfShouldRun(queue.JobTypeCheckTokenHealth, queue.PriorityHigh, time.Hour, nil))
	require.Equal(t, 1, manager.Size())

	job, err := manager.Dequeue()
	require.NoError(t, err)
	require.NoError(t, manager.RecordExecution(job.Type, "success"))
}
