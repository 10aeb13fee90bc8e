package ports

import (
	"context"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// DecisionWorkforce es el colaborador opaco que produce acciones propuestas.
// Puede tardar de segundos a minutos; el caller controla el timeout vía ctx.
type DecisionWorkforce interface {
	// Decide devuelve las acciones rankeadas por prioridad dado un snapshot
	// de señales y el estado actual del portfolio. El orden es significativo.
	Decide(ctx context.Context, snapshot domain.SignalSnapshot, portfolio domain.PortfolioState) ([]domain.ProposedAction, error)
}
