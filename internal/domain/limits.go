package domain

// LimitRule identifica qué regla de riesgo vetó una acción.
type LimitRule string

const (
	RuleNone         LimitRule = "none"
	RuleMaxPositions LimitRule = "max_positions"
	RuleMaxDailyLoss LimitRule = "max_daily_loss"
	RuleMaxDrawdown  LimitRule = "max_drawdown"
)

// LimitVerdict es el resultado de evaluar una acción contra los límites.
// Se calcula fresco por acción y solo sobrevive en el registro de auditoría.
type LimitVerdict struct {
	Allowed  bool
	Violated LimitRule
}

// Allow devuelve el veredicto positivo canónico.
func Allow() LimitVerdict {
	return LimitVerdict{Allowed: true, Violated: RuleNone}
}

// Deny devuelve un veredicto negativo con la regla violada.
func Deny(rule LimitRule) LimitVerdict {
	return LimitVerdict{Allowed: false, Violated: rule}
}

// Limits son los umbrales de riesgo configurados. Todos positivos.
type Limits struct {
	MaxOpenPositions int     // máximo de posiciones abiertas simultáneas
	MaxDailyLoss     float64 // pérdida realizada máxima por día UTC (USDC)
	MaxDrawdown      float64 // caída máxima desde el pico de equity (fracción, ej. 0.10)
}

// PortfolioState is the portfolio snapshot read before each guard evaluation.
// Written by execution gateway confirmations, read-only here.
type PortfolioState struct {
	OpenPositions     int
	RealizedLossToday float64 // positive number: losses realized today (USDC)
	Equity            float64
	PeakEquity        float64
}

// Drawdown returns the fractional drop from the equity peak (0 when at peak).
func (p PortfolioState) Drawdown() float64 {
	if p.PeakEquity <= 0 || p.Equity >= p.PeakEquity {
		return 0
	}
	return (p.PeakEquity - p.Equity) / p.PeakEquity
}
