package paper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// Quoter da precios indicativos para simular fills. El signal feed lo
// implementa con su snapshot cacheado.
type Quoter interface {
	Cached() (domain.SignalSnapshot, bool)
}

// FillRecorder recibe las confirmaciones simuladas, igual que en el
// gateway real.
type FillRecorder interface {
	RecordFill(ctx context.Context, action domain.ProposedAction, outcome domain.ExecutionOutcome) error
}

// Gateway es un ports.ExecutionGateway de paper trading: nunca toca el
// exchange, simula cada orden como filled al precio del último snapshot.
type Gateway struct {
	quoter Quoter
	fills  FillRecorder
}

// NewGateway crea un gateway de paper trading. fills puede ser nil.
func NewGateway(quoter Quoter, fills FillRecorder) *Gateway {
	return &Gateway{quoter: quoter, fills: fills}
}

// Submit simula el fill inmediato de la acción.
func (g *Gateway) Submit(ctx context.Context, action domain.ProposedAction) (domain.ExecutionOutcome, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExecutionOutcome{}, fmt.Errorf("paper.Submit: %w", err)
	}

	outcome := domain.ExecutionOutcome{
		Status:    domain.ExecutionFilled,
		OrderID:   "paper-" + uuid.New().String(),
		FillPrice: g.quote(action),
	}

	slog.Info("paper order filled",
		"target", action.TargetID,
		"side", action.Direction,
		"size", action.Size,
		"price", outcome.FillPrice)

	if g.fills != nil {
		if err := g.fills.RecordFill(ctx, action, outcome); err != nil {
			slog.Error("recording paper fill failed", "order_id", outcome.OrderID, "error", err)
		}
	}
	return outcome, nil
}

// quote toma el precio del lado correspondiente del último snapshot.
// Sin señal disponible asume 0.5, el punto medio de un mercado binario.
func (g *Gateway) quote(action domain.ProposedAction) float64 {
	snap, ok := g.quoter.Cached()
	if !ok {
		return 0.5
	}
	key := action.TargetID + "/best_ask_yes"
	if action.Direction == domain.DirectionSell {
		key = action.TargetID + "/best_bid_yes"
	}
	if price, ok := snap.Payload[key]; ok && price > 0 {
		return price
	}
	return 0.5
}
