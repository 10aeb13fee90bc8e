package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
	"github.com/alejandrodnm/polycycle/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	cycleErr error
	eventErr error
	saved    int
}

func (s *failingStore) SaveCycle(_ context.Context, _ domain.CycleResult) error {
	if s.cycleErr != nil {
		return s.cycleErr
	}
	s.saved++
	return nil
}

func (s *failingStore) SaveEvent(_ context.Context, _ domain.AuditEvent) error {
	return s.eventErr
}

func (s *failingStore) GetCycles(_ context.Context, _, _ time.Time) ([]domain.CycleSummary, error) {
	return nil, nil
}

func (s *failingStore) Close() error { return nil }

func makeResult(id string, state domain.TerminalState) domain.CycleResult {
	now := time.Now()
	return domain.CycleResult{
		Request:   domain.CycleRequest{ID: id, Mode: domain.TriggerInterval, RequestedAt: now},
		StartedAt: now,
		EndedAt:   now.Add(time.Second),
		State:     state,
	}
}

func TestRecorder_RingEvictsOldest(t *testing.T) {
	rec := orchestrator.NewRecorder(3, nil)

	for i := 0; i < 5; i++ {
		rec.RecordCycle(makeResult(fmt.Sprintf("cycle-%d", i), domain.CycleCompleted))
	}

	history := rec.History(0)
	require.Len(t, history, 3, "la retención acota el ring")
	// Más recientes primero; los dos más viejos fueron desalojados.
	assert.Equal(t, "cycle-4", history[0].ID)
	assert.Equal(t, "cycle-3", history[1].ID)
	assert.Equal(t, "cycle-2", history[2].ID)
}

func TestRecorder_StoreFailureNeverPropagates(t *testing.T) {
	store := &failingStore{
		cycleErr: errors.New("disk full"),
		eventErr: errors.New("disk full"),
	}
	rec := orchestrator.NewRecorder(10, store)

	// No debe panicar ni devolver error: el audit es best-effort.
	rec.RecordCycle(makeResult("cycle-1", domain.CycleFailed))
	rec.RecordEvent("trigger_accepted", "cycle-1", "interval")

	// El registro en memoria sigue intacto.
	assert.Len(t, rec.History(0), 1)
	assert.Len(t, rec.Events(0), 1)
}

func TestRecorder_LastResult(t *testing.T) {
	rec := orchestrator.NewRecorder(10, nil)

	_, ok := rec.LastResult()
	assert.False(t, ok)

	rec.RecordCycle(makeResult("cycle-1", domain.CycleCompleted))
	rec.RecordCycle(makeResult("cycle-2", domain.CycleRejected))

	last, ok := rec.LastResult()
	require.True(t, ok)
	assert.Equal(t, "cycle-2", last.Request.ID)
	assert.Equal(t, domain.CycleRejected, last.State)
}

func TestRecorder_PublishResolvesLastSummary(t *testing.T) {
	rec := orchestrator.NewRecorder(10, nil)
	rec.RecordCycle(makeResult("cycle-1", domain.CycleCompleted))

	rec.Publish(domain.Status{Phase: domain.PhaseIdle})

	status := rec.Status()
	require.NotNil(t, status.LastResult)
	assert.Equal(t, "cycle-1", status.LastResult.ID)
}

func TestRecorder_StatusIsACopy(t *testing.T) {
	rec := orchestrator.NewRecorder(10, nil)
	at := time.Now().Add(time.Hour)
	rec.Publish(domain.Status{Phase: domain.PhaseScheduled, NextFireAt: &at})

	first := rec.Status()
	second := rec.Status()
	assert.Equal(t, first, second)
}

func TestRecorder_EventsMostRecentFirst(t *testing.T) {
	rec := orchestrator.NewRecorder(10, nil)
	rec.RecordEvent("trigger_accepted", "c1", "manual")
	rec.RecordEvent("cycle_finished", "c1", "completed")
	rec.RecordEvent("stop", "", "phase=idle")

	events := rec.Events(2)
	require.Len(t, events, 2)
	assert.Equal(t, "stop", events[0].Kind)
	assert.Equal(t, "cycle_finished", events[1].Kind)
}
