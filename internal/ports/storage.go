package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// AuditStore persiste el registro de auditoría del orquestador.
// Best-effort: los errores se loguean en el recorder, nunca se propagan al ciclo.
type AuditStore interface {
	// SaveCycle persiste el resultado finalizado de un ciclo.
	SaveCycle(ctx context.Context, result domain.CycleResult) error

	// SaveEvent persiste una entrada del registro de trigger events.
	SaveEvent(ctx context.Context, event domain.AuditEvent) error

	// GetCycles devuelve los resúmenes de ciclos en el rango dado,
	// más recientes primero.
	GetCycles(ctx context.Context, from, to time.Time) ([]domain.CycleSummary, error)

	// Close cierra la conexión limpiamente.
	Close() error
}
