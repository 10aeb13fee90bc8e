package ports

import (
	"context"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// SignalFeed es la fuente de snapshots de señales externas.
type SignalFeed interface {
	// Cached devuelve el último snapshot conocido sin tocar la red.
	// ok == false cuando nunca se ha hecho fetch.
	Cached() (snapshot domain.SignalSnapshot, ok bool)

	// Refresh pide un snapshot fresco a la fuente y lo guarda como cacheado.
	Refresh(ctx context.Context) (domain.SignalSnapshot, error)
}
