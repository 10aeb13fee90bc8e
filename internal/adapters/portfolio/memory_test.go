package portfolio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

func fill(target string, dir domain.ActionDirection, size, price float64) (domain.ProposedAction, domain.ExecutionOutcome) {
	action := domain.ProposedAction{TargetID: target, Direction: dir, Size: size, Confidence: 0.8}
	outcome := domain.ExecutionOutcome{Status: domain.ExecutionFilled, OrderID: "o-1", FillPrice: price}
	return action, outcome
}

func TestMemory_BuyOpensPosition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1000)

	action, outcome := fill("0xabc", domain.DirectionBuy, 100, 0.50)
	require.NoError(t, m.RecordFill(ctx, action, outcome))

	state, err := m.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, state.OpenPositions)
	// 200 shares a 0.50 valen lo mismo que el cash gastado.
	assert.InDelta(t, 1000, state.Equity, 1e-9)
	assert.Zero(t, state.RealizedLossToday)
}

func TestMemory_SellRealizesLoss(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1000)

	buy, buyOut := fill("0xabc", domain.DirectionBuy, 100, 0.50)
	require.NoError(t, m.RecordFill(ctx, buy, buyOut))

	// Vende las 200 shares a 0.40: pérdida realizada de 20.
	sell, sellOut := fill("0xabc", domain.DirectionSell, 80, 0.40)
	require.NoError(t, m.RecordFill(ctx, sell, sellOut))

	state, err := m.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, state.OpenPositions)
	assert.InDelta(t, 20, state.RealizedLossToday, 1e-9)
	assert.InDelta(t, 980, state.Equity, 1e-9)
}

func TestMemory_ProfitDoesNotCountAsLoss(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1000)

	buy, buyOut := fill("0xabc", domain.DirectionBuy, 100, 0.50)
	require.NoError(t, m.RecordFill(ctx, buy, buyOut))

	sell, sellOut := fill("0xabc", domain.DirectionSell, 140, 0.70)
	require.NoError(t, m.RecordFill(ctx, sell, sellOut))

	state, err := m.Read(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.RealizedLossToday)
	assert.InDelta(t, 1040, state.Equity, 1e-9)
}

func TestMemory_PeakEquityTracksDrawdown(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1000)

	buy, buyOut := fill("0xabc", domain.DirectionBuy, 100, 0.50)
	require.NoError(t, m.RecordFill(ctx, buy, buyOut))
	sell, sellOut := fill("0xabc", domain.DirectionSell, 80, 0.40)
	require.NoError(t, m.RecordFill(ctx, sell, sellOut))

	state, err := m.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1000, state.PeakEquity, 1e-9)
	assert.InDelta(t, 0.02, state.Drawdown(), 1e-9)
}

func TestMemory_LossResetsAtUTCMidnight(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1000)

	now := time.Date(2025, 11, 2, 23, 0, 0, 0, time.UTC)
	m.clock = func() time.Time { return now }

	buy, buyOut := fill("0xabc", domain.DirectionBuy, 100, 0.50)
	require.NoError(t, m.RecordFill(ctx, buy, buyOut))
	sell, sellOut := fill("0xabc", domain.DirectionSell, 80, 0.40)
	require.NoError(t, m.RecordFill(ctx, sell, sellOut))

	state, err := m.Read(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 20, state.RealizedLossToday, 1e-9)

	now = now.Add(2 * time.Hour) // día siguiente UTC
	state, err = m.Read(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.RealizedLossToday)
}

func TestMemory_UnknownSellIgnored(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1000)

	sell, sellOut := fill("0xnope", domain.DirectionSell, 80, 0.40)
	require.NoError(t, m.RecordFill(ctx, sell, sellOut))

	state, err := m.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, state.OpenPositions)
	assert.InDelta(t, 1000, state.Equity, 1e-9)
}
