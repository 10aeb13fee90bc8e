package ports

import (
	"context"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// PortfolioStore tracks open positions and P&L for limit checks.
// Read by the limit guard before every action evaluation; written by
// execution gateway confirmations.
type PortfolioStore interface {
	// Read returns the current portfolio snapshot.
	Read(ctx context.Context) (domain.PortfolioState, error)
}
