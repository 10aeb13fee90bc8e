package domain

import "time"

// ControllerPhase is the exclusive, single-writer state of the trigger
// controller. Exactly one instance exists process-wide; all transitions are
// serialized by the controller's own lock.
type ControllerPhase string

const (
	// PhaseIdle: initial state, the only one that admits any new request.
	PhaseIdle ControllerPhase = "idle"
	// PhaseScheduled: an interval tick is pending at NextFireAt.
	PhaseScheduled ControllerPhase = "scheduled"
	// PhaseRunning: one cycle owns the execution slot.
	PhaseRunning ControllerPhase = "running"
	// PhaseCoolingDown: minimum gap between non-interval cycles.
	PhaseCoolingDown ControllerPhase = "cooling_down"
)

// Status es el snapshot read-mostly publicado para polling externo.
// Es una copia inmutable: seguro de leer concurrentemente con escrituras.
type Status struct {
	Phase        ControllerPhase
	NextFireAt   *time.Time    // solo en scheduled
	CoolingUntil *time.Time    // solo en cooling_down
	Current      *CycleRequest // solo en running
	LastResult   *CycleSummary // nil hasta que termina el primer ciclo
}

// AuditEvent es una entrada append-only del registro de trigger events.
type AuditEvent struct {
	At      time.Time
	Kind    string // "trigger_accepted", "trigger_rejected", "cycle_finished", "stop", ...
	CycleID string // vacío para eventos sin ciclo asociado
	Message string
}
