package orchestrator_test

import (
	"testing"

	"github.com/alejandrodnm/polycycle/internal/domain"
	"github.com/alejandrodnm/polycycle/internal/orchestrator"
	"github.com/stretchr/testify/assert"
)

func testLimits() domain.Limits {
	return domain.Limits{
		MaxOpenPositions: 5,
		MaxDailyLoss:     100,
		MaxDrawdown:      0.20,
	}
}

func TestEvaluateLimits(t *testing.T) {
	action := makeAction("0xabc", 50)

	tests := []struct {
		name      string
		portfolio domain.PortfolioState
		want      domain.LimitVerdict
	}{
		{
			name:      "todo dentro de límites",
			portfolio: domain.PortfolioState{OpenPositions: 2, RealizedLossToday: 10, Equity: 950, PeakEquity: 1000},
			want:      domain.Allow(),
		},
		{
			name:      "máximo de posiciones alcanzado",
			portfolio: domain.PortfolioState{OpenPositions: 5},
			want:      domain.Deny(domain.RuleMaxPositions),
		},
		{
			name:      "pérdida diaria en el umbral",
			portfolio: domain.PortfolioState{OpenPositions: 1, RealizedLossToday: 100},
			want:      domain.Deny(domain.RuleMaxDailyLoss),
		},
		{
			name:      "drawdown desde el pico",
			portfolio: domain.PortfolioState{OpenPositions: 1, Equity: 700, PeakEquity: 1000},
			want:      domain.Deny(domain.RuleMaxDrawdown),
		},
		{
			name: "orden fijo: posiciones gana a pérdida diaria y drawdown",
			portfolio: domain.PortfolioState{
				OpenPositions:     9,
				RealizedLossToday: 500,
				Equity:            100,
				PeakEquity:        1000,
			},
			want: domain.Deny(domain.RuleMaxPositions),
		},
		{
			name: "orden fijo: pérdida diaria gana a drawdown",
			portfolio: domain.PortfolioState{
				OpenPositions:     1,
				RealizedLossToday: 500,
				Equity:            100,
				PeakEquity:        1000,
			},
			want: domain.Deny(domain.RuleMaxDailyLoss),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := orchestrator.EvaluateLimits(action, tt.portfolio, testLimits())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateLimits_DisabledRulesNeverDeny(t *testing.T) {
	// Umbrales a cero desactivan cada regla.
	portfolio := domain.PortfolioState{
		OpenPositions:     100,
		RealizedLossToday: 10000,
		Equity:            1,
		PeakEquity:        1000,
	}
	got := orchestrator.EvaluateLimits(makeAction("0xabc", 10), portfolio, domain.Limits{})
	assert.True(t, got.Allowed)
	assert.Equal(t, domain.RuleNone, got.Violated)
}

func TestPortfolioState_Drawdown(t *testing.T) {
	assert.InDelta(t, 0.3, domain.PortfolioState{Equity: 700, PeakEquity: 1000}.Drawdown(), 1e-9)
	assert.Zero(t, domain.PortfolioState{Equity: 1000, PeakEquity: 1000}.Drawdown())
	assert.Zero(t, domain.PortfolioState{Equity: 1200, PeakEquity: 1000}.Drawdown())
	assert.Zero(t, domain.PortfolioState{}.Drawdown())
}
