package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// TokenResolver mapea el target de una acción (condition_id) al token
// CLOB sobre el que se envía la orden. El Feed lo implementa.
type TokenResolver interface {
	YesTokenID(conditionID string) (string, bool)
}

// FillRecorder recibe confirmaciones de fills para actualizar el
// estado del portfolio. El portfolio store lo implementa.
type FillRecorder interface {
	RecordFill(ctx context.Context, action domain.ProposedAction, outcome domain.ExecutionOutcome) error
}

// Gateway implementa ports.ExecutionGateway contra el CLOB real.
// Las órdenes se envían FOK sin retries: reintentar un POST /order
// puede duplicar la orden.
type Gateway struct {
	client   *Client
	resolver TokenResolver
	fills    FillRecorder
}

// NewGateway crea un Gateway. fills puede ser nil si nadie consume
// las confirmaciones.
func NewGateway(client *Client, resolver TokenResolver, fills FillRecorder) *Gateway {
	return &Gateway{client: client, resolver: resolver, fills: fills}
}

// Submit envía una acción al CLOB y devuelve su outcome terminal.
// Los fallos de la API se reportan como outcome ERROR, no como error;
// el error de retorno se reserva para cancelación del contexto.
func (g *Gateway) Submit(ctx context.Context, action domain.ProposedAction) (domain.ExecutionOutcome, error) {
	tokenID, ok := g.resolver.YesTokenID(action.TargetID)
	if !ok {
		return domain.ExecutionOutcome{
			Status: domain.ExecutionError,
			Detail: fmt.Sprintf("unknown target %s", action.TargetID),
		}, nil
	}

	req := clobOrderRequest{
		ClientOrderID: uuid.New().String(),
		TokenID:       tokenID,
		Side:          string(action.Direction),
		SizeUSDC:      action.Size,
		OrderType:     "FOK",
	}

	var resp clobOrderResponse
	url := g.client.clobBase + "/order"
	if err := g.client.post(ctx, g.client.ordersLimiter, 0, url, req, &resp); err != nil {
		if ctx.Err() != nil {
			return domain.ExecutionOutcome{}, fmt.Errorf("polymarket.Submit: %w", ctx.Err())
		}
		slog.Error("order submission failed", "target", action.TargetID, "error", err)
		return domain.ExecutionOutcome{
			Status: domain.ExecutionError,
			Detail: err.Error(),
		}, nil
	}

	outcome := mapOrderResponse(resp)
	slog.Info("order submitted",
		"target", action.TargetID,
		"side", action.Direction,
		"size", action.Size,
		"status", outcome.Status,
		"order_id", outcome.OrderID)

	if outcome.Status == domain.ExecutionFilled && g.fills != nil {
		if err := g.fills.RecordFill(ctx, action, outcome); err != nil {
			slog.Error("recording fill failed", "order_id", outcome.OrderID, "error", err)
		}
	}
	return outcome, nil
}

// mapOrderResponse traduce la respuesta del CLOB al outcome del dominio.
func mapOrderResponse(resp clobOrderResponse) domain.ExecutionOutcome {
	if !resp.Success || resp.ErrorMsg != "" {
		return domain.ExecutionOutcome{
			Status:  domain.ExecutionRejected,
			OrderID: resp.OrderID,
			Detail:  resp.ErrorMsg,
		}
	}
	switch resp.Status {
	case "matched":
		price, _ := strconv.ParseFloat(resp.Price, 64)
		return domain.ExecutionOutcome{
			Status:    domain.ExecutionFilled,
			OrderID:   resp.OrderID,
			FillPrice: price,
		}
	default:
		// FOK que no matchea completo vuelve como unmatched.
		return domain.ExecutionOutcome{
			Status:  domain.ExecutionRejected,
			OrderID: resp.OrderID,
			Detail:  "order not matched: " + resp.Status,
		}
	}
}
