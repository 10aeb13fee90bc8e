package notify_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polycycle/internal/adapters/notify"
	"github.com/alejandrodnm/polycycle/internal/domain"
)

func makeCycleResult() domain.CycleResult {
	started := time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC)
	return domain.CycleResult{
		Request: domain.CycleRequest{
			ID:          "11111111-2222-3333-4444-555555555555",
			Mode:        domain.TriggerInterval,
			RequestedAt: started,
			Reason:      "scheduled tick",
		},
		Snapshot: domain.SignalSnapshot{
			FetchedAt: started.Add(-10 * time.Minute),
			Payload:   map[string]float64{"0xabc/best_ask_yes": 0.74},
		},
		Proposed: []domain.ProposedAction{
			{TargetID: "0xabc1234567890", Direction: domain.DirectionBuy, Size: 25, Confidence: 0.9},
			{TargetID: "0xdef", Direction: domain.DirectionSell, Size: 10, Confidence: 0.7},
		},
		Verdicts: []domain.LimitVerdict{
			domain.Allow(),
			domain.Deny(domain.RuleMaxDailyLoss),
		},
		Executed: []domain.ExecutedAction{
			{
				Action: domain.ProposedAction{TargetID: "0xabc1234567890", Direction: domain.DirectionBuy, Size: 25},
				Outcome: domain.ExecutionOutcome{
					Status:    domain.ExecutionFilled,
					OrderID:   "order-1",
					FillPrice: 0.74,
				},
			},
		},
		StartedAt: started,
		EndedAt:   started.Add(90 * time.Second),
		State:     domain.CycleCompleted,
	}
}

func TestConsole_NotifyCompact(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, n.Notify(context.Background(), makeCycleResult()))

	out := buf.String()
	assert.Contains(t, out, "interval/completed")
	assert.Contains(t, out, "props:2")
	assert.Contains(t, out, "exec:1")
	assert.Contains(t, out, "filled:1")
	assert.NotContains(t, out, "err:")
}

func TestConsole_NotifyCompactWithError(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, false)

	result := makeCycleResult()
	result.State = domain.CycleRejected
	result.Proposed = nil
	result.Verdicts = nil
	result.Executed = nil
	result.Err = "signal feed unavailable"

	require.NoError(t, n.Notify(context.Background(), result))

	out := buf.String()
	assert.Contains(t, out, "rejected")
	assert.Contains(t, out, "signal feed unavailable")
}

func TestConsole_NotifyTable(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, n.Notify(context.Background(), makeCycleResult()))

	out := buf.String()
	assert.Contains(t, out, "scheduled tick")
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "SELL")
	assert.Contains(t, out, "allow")
	assert.Contains(t, out, "max_daily_loss")
	assert.Contains(t, out, "FILLED")
	assert.Contains(t, out, "skipped")
}

func TestConsole_PrintHistory(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	n.PrintHistory([]domain.CycleSummary{
		{
			ID:        "cycle-1-very-long-id",
			Mode:      domain.TriggerManual,
			State:     domain.CycleCompleted,
			StartedAt: time.Now().Add(-time.Hour),
			EndedAt:   time.Now(),
			Proposed:  3,
			Executed:  2,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "manual")
	assert.Contains(t, out, "completed")
}

func TestConsole_PrintHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewConsoleWriter(&buf, true)

	n.PrintHistory(nil)
	assert.Contains(t, buf.String(), "No cycles recorded yet")
}
