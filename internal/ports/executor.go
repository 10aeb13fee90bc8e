package ports

import (
	"context"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// ExecutionGateway places orders on the exchange.
type ExecutionGateway interface {
	// Submit places one order and reports its outcome. A rejected or errored
	// submission is a normal outcome carried in ExecutionOutcome, not a Go
	// error; the error return is reserved for context cancellation.
	Submit(ctx context.Context, action domain.ProposedAction) (domain.ExecutionOutcome, error)
}
