package portfolio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// position es una posición abierta sobre un target.
type position struct {
	shares    float64
	avgPrice  float64
	lastPrice float64
}

// Memory es un ports.PortfolioStore en memoria. Trackea posiciones
// abiertas, cash y pérdida realizada del día (UTC) a partir de las
// confirmaciones de fills del execution gateway.
type Memory struct {
	mu         sync.Mutex
	cash       float64
	peakEquity float64
	positions  map[string]*position
	lossToday  float64
	lossDay    time.Time
	clock      func() time.Time
}

// NewMemory crea un portfolio con el cash inicial dado.
func NewMemory(initialCash float64) *Memory {
	return &Memory{
		cash:       initialCash,
		peakEquity: initialCash,
		positions:  make(map[string]*position),
		clock:      time.Now,
	}
}

// Read devuelve el snapshot actual del portfolio.
func (m *Memory) Read(_ context.Context) (domain.PortfolioState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollDayLocked()
	equity := m.equityLocked()
	if equity > m.peakEquity {
		m.peakEquity = equity
	}
	return domain.PortfolioState{
		OpenPositions:     len(m.positions),
		RealizedLossToday: m.lossToday,
		Equity:            equity,
		PeakEquity:        m.peakEquity,
	}, nil
}

// RecordFill aplica un fill confirmado al estado del portfolio.
// Solo los outcomes FILLED llegan aquí; el gateway filtra el resto.
func (m *Memory) RecordFill(_ context.Context, action domain.ProposedAction, outcome domain.ExecutionOutcome) error {
	if outcome.FillPrice <= 0 {
		slog.Warn("fill without price ignored", "order_id", outcome.OrderID)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollDayLocked()

	switch action.Direction {
	case domain.DirectionBuy:
		m.applyBuyLocked(action.TargetID, action.Size, outcome.FillPrice)
	case domain.DirectionSell:
		m.applySellLocked(action.TargetID, action.Size, outcome.FillPrice)
	}

	if equity := m.equityLocked(); equity > m.peakEquity {
		m.peakEquity = equity
	}
	return nil
}

// applyBuyLocked abre o amplía una posición. size es notional en USDC.
func (m *Memory) applyBuyLocked(target string, size, price float64) {
	shares := size / price
	m.cash -= size

	pos, ok := m.positions[target]
	if !ok {
		m.positions[target] = &position{shares: shares, avgPrice: price, lastPrice: price}
		return
	}
	total := pos.shares + shares
	pos.avgPrice = (pos.avgPrice*pos.shares + price*shares) / total
	pos.shares = total
	pos.lastPrice = price
}

// applySellLocked reduce o cierra una posición y realiza el P&L.
func (m *Memory) applySellLocked(target string, size, price float64) {
	pos, ok := m.positions[target]
	if !ok {
		slog.Warn("sell fill on unknown position ignored", "target", target)
		return
	}

	shares := size / price
	if shares > pos.shares {
		shares = pos.shares
	}
	proceeds := shares * price
	m.cash += proceeds

	if pnl := shares * (price - pos.avgPrice); pnl < 0 {
		m.lossToday += -pnl
	}

	pos.shares -= shares
	pos.lastPrice = price
	if pos.shares <= 1e-9 {
		delete(m.positions, target)
	}
}

// equityLocked marca las posiciones al último precio de fill.
func (m *Memory) equityLocked() float64 {
	equity := m.cash
	for _, pos := range m.positions {
		equity += pos.shares * pos.lastPrice
	}
	return equity
}

// rollDayLocked resetea la pérdida realizada al cambiar el día UTC.
func (m *Memory) rollDayLocked() {
	today := m.clock().UTC().Truncate(24 * time.Hour)
	if !today.Equal(m.lossDay) {
		m.lossDay = today
		m.lossToday = 0
	}
}
