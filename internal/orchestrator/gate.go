package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
	"github.com/alejandrodnm/polycycle/internal/ports"
)

// Gate decide si el snapshot cacheado de señales es suficientemente fresco
// para saltarse el re-fetch. Sin efectos secundarios más allá de la escritura
// de cache que hace el propio feed en Refresh.
type Gate struct {
	feed  ports.SignalFeed
	clock func() time.Time
}

// NewGate crea un Gate sobre el feed dado.
func NewGate(feed ports.SignalFeed) *Gate {
	return &Gate{feed: feed, clock: time.Now}
}

// IsFresh devuelve true si la edad del snapshot no supera el umbral.
// Un snapshot vacío nunca es fresco.
func IsFresh(snapshot domain.SignalSnapshot, threshold time.Duration, now time.Time) bool {
	if snapshot.Empty() {
		return false
	}
	return snapshot.Staleness(now) <= threshold
}

// FetchOrReuse devuelve el snapshot cacheado si es fresco; si no, pide uno
// fresco síncronamente. Si el refresh falla no hay fallback silencioso a datos
// stale: el caller trata el error como fallo del ciclo (datos de edad
// desconocida no sirven para decidir).
func (g *Gate) FetchOrReuse(ctx context.Context, threshold time.Duration) (domain.SignalSnapshot, error) {
	if cached, ok := g.feed.Cached(); ok && IsFresh(cached, threshold, g.clock()) {
		slog.Debug("signal cache hit",
			"fetched_at", cached.FetchedAt,
			"staleness", cached.Staleness(g.clock()).Round(time.Second),
		)
		return cached, nil
	}

	snapshot, err := g.feed.Refresh(ctx)
	if err != nil {
		return domain.SignalSnapshot{}, fmt.Errorf("orchestrator.FetchOrReuse: %w: %s", domain.ErrFeedUnavailable, err)
	}
	return snapshot, nil
}

// ForceRefresh pide siempre un snapshot fresco, ignorando el umbral de
// staleness. Es el camino de los triggers manuales.
func (g *Gate) ForceRefresh(ctx context.Context) (domain.SignalSnapshot, error) {
	snapshot, err := g.feed.Refresh(ctx)
	if err != nil {
		return domain.SignalSnapshot{}, fmt.Errorf("orchestrator.ForceRefresh: %w: %s", domain.ErrFeedUnavailable, err)
	}
	return snapshot, nil
}
