package queue

import (
	"testing"
	"time"

	"github.com/aristath/questrade-sentinel/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterListeners_PricesSyncedEnqueuesEvaluateModels(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	q := NewMemoryQueue()
	history := NewHistory(nil)
	manager := NewManager(q, history)
	registry := NewRegistry()

	RegisterListeners(bus, manager, registry, zerolog.Nop())

	bus.Emit(events.PricesSynced, "scheduler", map[string]interface{}{"symbol": "QQQ"})

	time.Sleep(50 * time.Millisecond)

	require.Equal(t, 1, manager.Size())
	job, err := manager.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, JobTypeEvaluateModels, job.Type)
	assert.Equal(t, PriorityMedium, job.Priority)
}

func TestRegisterListeners_TokenHealthDegradedIsCritical(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	q := NewMemoryQueue()
	history := NewHistory(nil)
	manager := NewManager(q, history)
	registry := NewRegistry()

	RegisterListeners(bus, manager, registry, zerolog.Nop())

	bus.Emit(events.TokenHealthDegraded, "scheduler", map[string]interface{}{"login_id": "primary"})

	time.Sleep(50 * time.Millisecond)

	job, err := manager.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, JobTypeCheckTokenHealth, job.Type)
	assert.Equal(t, PriorityCritical, job.Priority)
}

func TestRegisterListeners_MultipleEventsEnqueueIndependently(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	q := NewMemoryQueue()
	history := NewHistory(nil)
	manager := NewManager(q, history)
	registry := NewRegistry()

	RegisterListeners(bus, manager, registry, zerolog.Nop())

	bus.Emit(events.PricesSynced, "scheduler", map[string]interface{}{})
	bus.Emit(events.ActivitiesSynced, "scheduler", map[string]interface{}{})
	bus.Emit(events.RebalanceNeeded, "evaluator", map[string]interface{}{})

	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 3, manager.Size())
}
