package domain

import "time"

// TriggerMode es la política que gobierna qué gates aplican a un ciclo.
type TriggerMode string

const (
	// TriggerManual fuerza un fetch fresco e ignora los límites de trading.
	TriggerManual TriggerMode = "manual"
	// TriggerInterval es el tick programado; aplica cache gate y limit guard.
	TriggerInterval TriggerMode = "interval"
	// TriggerAPI es una llamada programática externa; mismos gates que interval.
	TriggerAPI TriggerMode = "api"
)

// Valid devuelve true si el modo es uno de los tres conocidos.
func (m TriggerMode) Valid() bool {
	switch m {
	case TriggerManual, TriggerInterval, TriggerAPI:
		return true
	}
	return false
}

// BypassesGates devuelve true si el modo salta el cache gate y el gating
// de límites (solo manual). Los límites del exchange aguas abajo siguen aplicando.
func (m TriggerMode) BypassesGates() bool {
	return m == TriggerManual
}

// CycleRequest es la petición inmutable que arranca un ciclo de decisión.
// Una vez aceptada por el controller no se modifica.
type CycleRequest struct {
	ID            string // UUID asignado en la admisión
	Mode          TriggerMode
	RequestedAt   time.Time
	Reason        string
	IntervalHours float64 // solo modo interval; > 0
}

// SignalSnapshot es el snapshot de señales externas cacheado.
// Propiedad del cache gate; read-only para el cycle runner.
type SignalSnapshot struct {
	FetchedAt time.Time
	Payload   map[string]float64 // signal-key → signal-value, opaco para el runner
}

// Staleness devuelve la edad del snapshot respecto a now.
func (s SignalSnapshot) Staleness(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// Empty devuelve true si el snapshot nunca fue poblado.
func (s SignalSnapshot) Empty() bool {
	return s.FetchedAt.IsZero()
}

// ActionDirection is the side of a proposed trade.
type ActionDirection string

const (
	DirectionBuy  ActionDirection = "BUY"
	DirectionSell ActionDirection = "SELL"
	DirectionHold ActionDirection = "HOLD"
)

// ProposedAction is one ranked trade proposal from the decision workforce.
// Consumed once, never mutated; order within a cycle is the workforce's
// priority ranking.
type ProposedAction struct {
	TargetID   string // market / token identifier on the exchange
	Direction  ActionDirection
	Size       float64 // USDC, > 0
	Confidence float64 // [0, 1]
}

// ExecutionStatus is the terminal status of one gateway submission.
type ExecutionStatus string

const (
	ExecutionFilled   ExecutionStatus = "FILLED"
	ExecutionRejected ExecutionStatus = "REJECTED"
	ExecutionError    ExecutionStatus = "ERROR"
)

// ExecutionOutcome is what the execution gateway reports for one action.
type ExecutionOutcome struct {
	Status    ExecutionStatus
	OrderID   string  // local UUID assigned by the gateway
	FillPrice float64 // only meaningful when Status == FILLED
	Detail    string  // rejection reason or error text
}

// ExecutedAction empareja una acción propuesta con su resultado en el gateway.
type ExecutedAction struct {
	Action  ProposedAction
	Outcome ExecutionOutcome
}

// TerminalState clasifica cómo terminó un ciclo.
type TerminalState string

const (
	// CycleCompleted: el loop de acciones terminó, con o sin rechazos por acción.
	CycleCompleted TerminalState = "completed"
	// CycleRejected: el feed no estaba disponible y no se intentó ninguna acción.
	CycleRejected TerminalState = "rejected"
	// CycleFailed: timeout del workforce o error no manejado.
	CycleFailed TerminalState = "failed"
)

// CycleResult es el registro completo de un ciclo: petición, snapshot usado,
// acciones propuestas y ejecutadas, y estado terminal. Se crea al arrancar el
// ciclo y se finaliza al terminar; después es inmutable.
type CycleResult struct {
	Request   CycleRequest
	Snapshot  SignalSnapshot
	Proposed  []ProposedAction
	Verdicts  []LimitVerdict // alineado con Proposed; solo para el registro de auditoría
	Executed  []ExecutedAction
	StartedAt time.Time
	EndedAt   time.Time
	State     TerminalState
	Err       string // causa del Rejected/Failed, vacío en Completed
}

// Summary reduce el resultado a lo que publica status().
func (r CycleResult) Summary() CycleSummary {
	return CycleSummary{
		ID:        r.Request.ID,
		Mode:      r.Request.Mode,
		State:     r.State,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Proposed:  len(r.Proposed),
		Executed:  len(r.Executed),
		Err:       r.Err,
	}
}

// CycleSummary is the compact view of a finished cycle exposed via status.
type CycleSummary struct {
	ID        string
	Mode      TriggerMode
	State     TerminalState
	StartedAt time.Time
	EndedAt   time.Time
	Proposed  int
	Executed  int
	Err       string
}
