package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
	"github.com/alejandrodnm/polycycle/internal/ports"
)

// RunConfig es la configuración efectiva de una ejecución de ciclo.
// El controller toma un snapshot de su config mutable justo antes de delegar,
// así un Configure concurrente no cambia un ciclo ya en vuelo.
type RunConfig struct {
	Staleness        time.Duration // umbral del cache gate
	WorkforceTimeout time.Duration
	Limits           domain.Limits
}

// Runner ejecuta un ciclo de decisión completo:
// fetch-or-reuse snapshot → workforce → limit guard por acción → gateway.
// No conoce el estado del controller; recibe la petición ya admitida.
type Runner struct {
	gate      *Gate
	workforce ports.DecisionWorkforce
	gateway   ports.ExecutionGateway
	portfolio ports.PortfolioStore
	clock     func() time.Time
}

// NewRunner crea un Runner con todas las dependencias inyectadas.
func NewRunner(
	gate *Gate,
	workforce ports.DecisionWorkforce,
	gateway ports.ExecutionGateway,
	portfolio ports.PortfolioStore,
) *Runner {
	return &Runner{
		gate:      gate,
		workforce: workforce,
		gateway:   gateway,
		portfolio: portfolio,
		clock:     time.Now,
	}
}

// Run executes one full decision cycle and always returns a finalized
// CycleResult; every failure path lands in a terminal state instead of an
// error return. The ctx carries the overall cycle timeout — once it expires
// the cycle is abandoned and marked failed, but actions already submitted
// stay submitted (cancellation is an explicit, separate operation).
func (r *Runner) Run(ctx context.Context, req domain.CycleRequest, cfg RunConfig) domain.CycleResult {
	result := domain.CycleResult{
		Request:   req,
		StartedAt: r.clock(),
	}

	slog.Info("cycle started",
		"cycle_id", req.ID,
		"mode", req.Mode,
		"reason", req.Reason,
	)

	// 1. Snapshot de señales. Manual siempre fuerza un fetch fresco.
	var snapshot domain.SignalSnapshot
	var err error
	if req.Mode.BypassesGates() {
		snapshot, err = r.gate.ForceRefresh(ctx)
	} else {
		snapshot, err = r.gate.FetchOrReuse(ctx, cfg.Staleness)
	}
	if err != nil {
		// Cero acciones intentadas: Rejected, no Failed.
		return r.finalize(result, domain.CycleRejected, err)
	}
	result.Snapshot = snapshot

	// 2. Workforce con su propio timeout dentro del ctx del ciclo.
	portfolio, err := r.portfolio.Read(ctx)
	if err != nil {
		return r.finalize(result, domain.CycleFailed, err)
	}

	wctx := ctx
	if cfg.WorkforceTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, cfg.WorkforceTimeout)
		defer cancel()
	}
	proposed, err := r.workforce.Decide(wctx, snapshot, portfolio)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.ErrWorkforceTimeout
		}
		return r.finalize(result, domain.CycleFailed, err)
	}
	result.Proposed = proposed

	// 3. Ejecución en el orden del workforce: el ranking codifica prioridad,
	// las acciones tempranas no deben morir de hambre por límites consumidos
	// por acciones posteriores.
	for _, action := range proposed {
		if ctx.Err() != nil {
			return r.finalize(result, domain.CycleFailed, ctx.Err())
		}

		verdict, abort := r.admitAction(ctx, req, action, cfg.Limits, &result)
		if abort != nil {
			return r.finalize(result, domain.CycleFailed, abort)
		}
		if !verdict.Allowed {
			continue
		}

		outcome, err := r.gateway.Submit(ctx, action)
		if err != nil {
			if ctx.Err() != nil {
				return r.finalize(result, domain.CycleFailed, ctx.Err())
			}
			// Error por acción: se registra y no aborta el resto del ciclo.
			outcome = domain.ExecutionOutcome{
				Status: domain.ExecutionError,
				Detail: err.Error(),
			}
		}
		result.Executed = append(result.Executed, domain.ExecutedAction{Action: action, Outcome: outcome})

		slog.Info("action submitted",
			"cycle_id", req.ID,
			"target", action.TargetID,
			"direction", action.Direction,
			"size", action.Size,
			"status", outcome.Status,
		)
	}

	return r.finalize(result, domain.CycleCompleted, nil)
}

// admitAction relee el portfolio y evalúa el limit guard para una acción.
// Los ciclos manuales evalúan solo para telemetría y nunca gatean.
// Devuelve abort != nil cuando una lectura de portfolio falla a mitad de ciclo.
func (r *Runner) admitAction(
	ctx context.Context,
	req domain.CycleRequest,
	action domain.ProposedAction,
	limits domain.Limits,
	result *domain.CycleResult,
) (domain.LimitVerdict, error) {
	// Re-lectura por acción: las acciones anteriores del mismo ciclo pueden
	// haber cambiado el conteo de posiciones relevante para esta evaluación.
	portfolio, err := r.portfolio.Read(ctx)
	if err != nil {
		return domain.LimitVerdict{}, err
	}

	advisory := EvaluateLimits(action, portfolio, limits)
	if req.Mode.BypassesGates() {
		if !advisory.Allowed {
			slog.Debug("limit would deny action, manual bypass",
				"cycle_id", req.ID,
				"target", action.TargetID,
				"rule", advisory.Violated,
			)
		}
		verdict := domain.Allow()
		result.Verdicts = append(result.Verdicts, verdict)
		return verdict, nil
	}

	result.Verdicts = append(result.Verdicts, advisory)
	if !advisory.Allowed {
		slog.Info("action denied by limit guard",
			"cycle_id", req.ID,
			"target", action.TargetID,
			"rule", advisory.Violated,
		)
	}
	return advisory, nil
}

// finalize cierra el resultado con el estado terminal y lo loguea.
func (r *Runner) finalize(result domain.CycleResult, state domain.TerminalState, err error) domain.CycleResult {
	result.State = state
	result.EndedAt = r.clock()
	if err != nil {
		result.Err = err.Error()
	}

	duration := result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond)
	switch state {
	case domain.CycleCompleted:
		slog.Info("cycle completed",
			"cycle_id", result.Request.ID,
			"proposed", len(result.Proposed),
			"executed", len(result.Executed),
			"duration", duration,
		)
	default:
		slog.Warn("cycle did not complete",
			"cycle_id", result.Request.ID,
			"state", state,
			"err", result.Err,
			"duration", duration,
		)
	}
	return result
}
