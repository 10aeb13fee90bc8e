package ports

import (
	"context"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// Notifier presenta el resultado de cada ciclo al usuario.
type Notifier interface {
	// Notify muestra el resultado de un ciclo terminado.
	// En la implementación de consola, imprime una tabla formateada.
	Notify(ctx context.Context, result domain.CycleResult) error
}
