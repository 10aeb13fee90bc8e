package workforce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// Client implementa ports.DecisionWorkforce contra el servicio HTTP de
// decisión. El servicio recibe el snapshot de señales y el estado del
// portfolio y devuelve acciones rankeadas; este adapter filtra los HOLD
// y las propuestas por debajo de la confianza mínima antes de
// entregarlas al runner.
type Client struct {
	http          *http.Client
	baseURL       string
	minConfidence float64
}

// decideRequest es el body del POST /decide.
type decideRequest struct {
	FetchedAt time.Time          `json:"fetched_at"`
	Signals   map[string]float64 `json:"signals"`
	Portfolio portfolioPayload   `json:"portfolio"`
}

type portfolioPayload struct {
	OpenPositions     int     `json:"open_positions"`
	RealizedLossToday float64 `json:"realized_loss_today"`
	Equity            float64 `json:"equity"`
	PeakEquity        float64 `json:"peak_equity"`
}

// decideResponse es la respuesta del servicio de decisión.
type decideResponse struct {
	Actions []actionPayload `json:"actions"`
}

type actionPayload struct {
	TargetID   string  `json:"target_id"`
	Direction  string  `json:"direction"`
	Size       float64 `json:"size"`
	Confidence float64 `json:"confidence"`
}

// NewClient crea un Client contra baseURL. minConfidence descarta las
// propuestas con confianza inferior; 0 desactiva el filtro.
func NewClient(baseURL string, minConfidence float64) *Client {
	return &Client{
		// Sin timeout propio: el deadline lo impone el ctx del runner.
		http:          &http.Client{},
		baseURL:       baseURL,
		minConfidence: minConfidence,
	}
}

// Decide pide acciones al servicio de decisión. Un deadline excedido se
// traduce a domain.ErrWorkforceTimeout.
func (c *Client) Decide(ctx context.Context, snapshot domain.SignalSnapshot, portfolio domain.PortfolioState) ([]domain.ProposedAction, error) {
	body, err := json.Marshal(decideRequest{
		FetchedAt: snapshot.FetchedAt,
		Signals:   snapshot.Payload,
		Portfolio: portfolioPayload{
			OpenPositions:     portfolio.OpenPositions,
			RealizedLossToday: portfolio.RealizedLossToday,
			Equity:            portfolio.Equity,
			PeakEquity:        portfolio.PeakEquity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("workforce.Decide: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/decide", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("workforce.Decide: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("workforce.Decide: %w", domain.ErrWorkforceTimeout)
		}
		return nil, fmt.Errorf("workforce.Decide: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("workforce.Decide: status %d: %s", resp.StatusCode, detail)
	}

	var decoded decideResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("workforce.Decide: decode response: %w", err)
	}

	return c.filter(decoded.Actions), nil
}

// filter descarta HOLDs y propuestas bajo la confianza mínima,
// preservando el orden de ranking del servicio.
func (c *Client) filter(raw []actionPayload) []domain.ProposedAction {
	actions := make([]domain.ProposedAction, 0, len(raw))
	for _, a := range raw {
		dir := domain.ActionDirection(a.Direction)
		if dir == domain.DirectionHold {
			slog.Debug("dropping hold proposal", "target", a.TargetID)
			continue
		}
		if c.minConfidence > 0 && a.Confidence < c.minConfidence {
			slog.Debug("dropping low-confidence proposal",
				"target", a.TargetID,
				"confidence", a.Confidence,
				"min_confidence", c.minConfidence)
			continue
		}
		actions = append(actions, domain.ProposedAction{
			TargetID:   a.TargetID,
			Direction:  dir,
			Size:       a.Size,
			Confidence: a.Confidence,
		})
	}
	return actions
}
