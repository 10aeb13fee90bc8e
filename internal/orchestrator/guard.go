package orchestrator

import "github.com/alejandrodnm/polycycle/internal/domain"

// EvaluateLimits evalúa una acción propuesta contra los límites de riesgo.
// El orden de evaluación es fijo y corta en la primera violación: primero los
// checks más baratos y restrictivos (conteo de posiciones), después pérdida
// diaria realizada, después drawdown desde el pico.
//
// Es una función pura sobre el snapshot de portfolio: el caller decide si
// aplica el veredicto (los ciclos manuales lo usan solo para telemetría).
func EvaluateLimits(action domain.ProposedAction, portfolio domain.PortfolioState, limits domain.Limits) domain.LimitVerdict {
	if limits.MaxOpenPositions > 0 && portfolio.OpenPositions >= limits.MaxOpenPositions {
		return domain.Deny(domain.RuleMaxPositions)
	}
	if limits.MaxDailyLoss > 0 && portfolio.RealizedLossToday >= limits.MaxDailyLoss {
		return domain.Deny(domain.RuleMaxDailyLoss)
	}
	if limits.MaxDrawdown > 0 && portfolio.Drawdown() >= limits.MaxDrawdown {
		return domain.Deny(domain.RuleMaxDrawdown)
	}
	return domain.Allow()
}
