package orchestrator_test

import (
	"context"
	"sync"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// --- mocks compartidos por los tests del paquete ---

type stubFeed struct {
	mu           sync.Mutex
	cached       domain.SignalSnapshot
	hasCached    bool
	fresh        domain.SignalSnapshot
	refreshErr   error
	refreshCalls int
}

func (f *stubFeed) Cached() (domain.SignalSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached, f.hasCached
}

func (f *stubFeed) Refresh(_ context.Context) (domain.SignalSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return domain.SignalSnapshot{}, f.refreshErr
	}
	f.cached = f.fresh
	f.hasCached = true
	return f.fresh, nil
}

func (f *stubFeed) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

type stubWorkforce struct {
	mu      sync.Mutex
	actions []domain.ProposedAction
	err     error
	block   chan struct{} // si no es nil, Decide espera hasta que se cierre
	calls   int
}

func (w *stubWorkforce) Decide(ctx context.Context, _ domain.SignalSnapshot, _ domain.PortfolioState) ([]domain.ProposedAction, error) {
	w.mu.Lock()
	w.calls++
	block := w.block
	actions, err := w.actions, w.err
	w.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return actions, nil
}

type stubGateway struct {
	mu        sync.Mutex
	submitted []domain.ProposedAction
	outcome   domain.ExecutionOutcome
	errFor    map[string]error // target → error de submission
}

func (g *stubGateway) Submit(_ context.Context, action domain.ProposedAction) (domain.ExecutionOutcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitted = append(g.submitted, action)
	if err, ok := g.errFor[action.TargetID]; ok {
		return domain.ExecutionOutcome{}, err
	}
	out := g.outcome
	if out.Status == "" {
		out.Status = domain.ExecutionFilled
	}
	return out, nil
}

func (g *stubGateway) targets() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, len(g.submitted))
	for i, a := range g.submitted {
		ids[i] = a.TargetID
	}
	return ids
}

// stubPortfolio devuelve una secuencia de estados, uno por Read; el último
// se repite. Sirve para simular posiciones que cambian a mitad de ciclo.
type stubPortfolio struct {
	mu     sync.Mutex
	states []domain.PortfolioState
	err    error
	reads  int
}

func (p *stubPortfolio) Read(_ context.Context) (domain.PortfolioState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return domain.PortfolioState{}, p.err
	}
	idx := p.reads
	p.reads++
	if idx >= len(p.states) {
		idx = len(p.states) - 1
	}
	if idx < 0 {
		return domain.PortfolioState{}, nil
	}
	return p.states[idx], nil
}

// --- helpers ---

func makeAction(target string, size float64) domain.ProposedAction {
	return domain.ProposedAction{
		TargetID:   target,
		Direction:  domain.DirectionBuy,
		Size:       size,
		Confidence: 0.8,
	}
}

func freshSnapshot(age time.Duration) domain.SignalSnapshot {
	return domain.SignalSnapshot{
		FetchedAt: time.Now().Add(-age),
		Payload:   map[string]float64{"0xabc/best_ask_yes": 0.42},
	}
}
