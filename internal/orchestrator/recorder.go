package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
	"github.com/alejandrodnm/polycycle/internal/ports"
)

const (
	defaultRetention = 200
	// Persistencia best-effort: el audit nunca bloquea el ciclo más que esto.
	persistTimeout = 5 * time.Second
)

// Recorder es el registro append-only de trigger events y resultados de ciclo,
// más el snapshot de status publicado para polling externo.
//
// record() nunca falla al caller: los errores del store se loguean y se tragan,
// el audit es best-effort por diseño del contrato. El status publicado es una
// copia inmutable que se intercambia entera, seguro de leer concurrentemente.
type Recorder struct {
	mu      sync.RWMutex
	history []domain.CycleResult // ring acotado, los más viejos se desalojan
	events  []domain.AuditEvent  // mismo esquema de retención
	status  domain.Status

	retention int
	store     ports.AuditStore // opcional; nil = solo memoria
	clock     func() time.Time
}

// NewRecorder crea un Recorder con la retención dada (<= 0 usa el default).
// store puede ser nil para operar solo en memoria.
func NewRecorder(retention int, store ports.AuditStore) *Recorder {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Recorder{
		retention: retention,
		store:     store,
		status:    domain.Status{Phase: domain.PhaseIdle},
		clock:     time.Now,
	}
}

// RecordCycle añade el resultado finalizado al historial y lo persiste
// best-effort. Los resultados llegan en orden de finalización.
func (r *Recorder) RecordCycle(result domain.CycleResult) {
	r.mu.Lock()
	r.history = append(r.history, result)
	if len(r.history) > r.retention {
		r.history = r.history[len(r.history)-r.retention:]
	}
	r.mu.Unlock()

	r.persist(func(ctx context.Context) error {
		return r.store.SaveCycle(ctx, result)
	}, "cycle", result.Request.ID)
}

// RecordEvent añade una entrada al registro de trigger events.
func (r *Recorder) RecordEvent(kind, cycleID, message string) {
	event := domain.AuditEvent{
		At:      r.clock(),
		Kind:    kind,
		CycleID: cycleID,
		Message: message,
	}

	r.mu.Lock()
	r.events = append(r.events, event)
	if len(r.events) > r.retention {
		r.events = r.events[len(r.events)-r.retention:]
	}
	r.mu.Unlock()

	r.persist(func(ctx context.Context) error {
		return r.store.SaveEvent(ctx, event)
	}, "event", cycleID)
}

// Publish intercambia el snapshot de status publicado. Lo llama el controller
// tras cada transición, con el last_result_summary ya resuelto aquí.
func (r *Recorder) Publish(status domain.Status) {
	r.mu.Lock()
	if status.LastResult == nil && len(r.history) > 0 {
		summary := r.history[len(r.history)-1].Summary()
		status.LastResult = &summary
	}
	r.status = status
	r.mu.Unlock()
}

// Status devuelve el snapshot publicado. Idempotente: llamadas repetidas sin
// transiciones intermedias devuelven resultados idénticos.
func (r *Recorder) Status() domain.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// LastResult devuelve el resultado completo del último ciclo, o false si
// todavía no terminó ninguno.
func (r *Recorder) LastResult() (domain.CycleResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.history) == 0 {
		return domain.CycleResult{}, false
	}
	return r.history[len(r.history)-1], true
}

// History devuelve los resúmenes de los últimos n ciclos, más recientes primero.
func (r *Recorder) History(n int) []domain.CycleSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > len(r.history) {
		n = len(r.history)
	}
	summaries := make([]domain.CycleSummary, 0, n)
	for i := len(r.history) - 1; i >= len(r.history)-n; i-- {
		summaries = append(summaries, r.history[i].Summary())
	}
	return summaries
}

// Events devuelve los últimos n trigger events, más recientes primero.
func (r *Recorder) Events(n int) []domain.AuditEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > len(r.events) {
		n = len(r.events)
	}
	events := make([]domain.AuditEvent, 0, n)
	for i := len(r.events) - 1; i >= len(r.events)-n; i-- {
		events = append(events, r.events[i])
	}
	return events
}

// persist ejecuta una escritura best-effort contra el store.
func (r *Recorder) persist(fn func(context.Context) error, what, id string) {
	if r.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		slog.Warn("audit store write failed", "what", what, "id", id, "err", err)
	}
}
