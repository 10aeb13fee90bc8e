package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polycycle/internal/domain"
	"github.com/alejandrodnm/polycycle/internal/ports"
)

// Config es la configuración mutable del controller. Se ajusta en caliente
// vía Configure; cada ciclo toma un snapshot al ser admitido, así un cambio
// concurrente nunca afecta a un ciclo ya en vuelo.
type Config struct {
	Interval         time.Duration // cadencia por defecto del modo interval
	Staleness        time.Duration // umbral del cache gate
	MinGap           time.Duration // cooling down tras ciclos no-interval
	CycleTimeout     time.Duration // timeout global de un ciclo (0 = sin límite)
	WorkforceTimeout time.Duration
	Limits           domain.Limits
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		Interval:         4 * time.Hour,
		Staleness:        30 * time.Minute,
		MinGap:           5 * time.Minute,
		CycleTimeout:     10 * time.Minute,
		WorkforceTimeout: 5 * time.Minute,
		Limits: domain.Limits{
			MaxOpenPositions: 10,
			MaxDailyLoss:     50,
			MaxDrawdown:      0.10,
		},
	}
}

// Controller serializa la ejecución de ciclos de decisión. Es la única pieza
// que muta el estado Idle/Scheduled/Running/CoolingDown, y todas las
// transiciones pasan por su mutex: dos ciclos simultáneos contra el exchange
// son un doble-trade, no un problema de rendimiento.
//
// El lock solo se mantiene para reclamar o soltar el slot de ejecución; el
// ciclo en sí (fetch, workforce, submissions) corre fuera del lock.
type Controller struct {
	mu           sync.Mutex
	cfg          Config
	phase        domain.ControllerPhase
	nextFireAt   time.Time            // solo en scheduled
	coolingUntil time.Time            // solo en cooling_down
	current      *domain.CycleRequest // solo en running
	resumeFireAt time.Time            // fire pendiente mientras un manual toma prestado el slot
	stopNext     bool                 // Stop durante running: suprime el siguiente scheduling
	gen          uint64               // invalida callbacks de timers obsoletos
	timer        *time.Timer

	runner   *Runner
	recorder *Recorder
	notifier ports.Notifier
	clock    func() time.Time
	ctx      context.Context
	wg       sync.WaitGroup
}

// NewController crea el controller en fase Idle.
// notifier puede ser nil.
func NewController(cfg Config, runner *Runner, recorder *Recorder, notifier ports.Notifier) *Controller {
	c := &Controller{
		cfg:      cfg,
		phase:    domain.PhaseIdle,
		runner:   runner,
		recorder: recorder,
		notifier: notifier,
		clock:    time.Now,
		ctx:      context.Background(),
	}
	c.publish()
	return c
}

// Run mantiene el controller vivo hasta que ctx se cancele. Los ciclos que
// arranquen después heredan ctx; al cancelarse, el timer pendiente se anula y
// se espera a que el ciclo en vuelo termine (nunca se mata a mitad de
// submission de órdenes).
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	<-ctx.Done()

	c.mu.Lock()
	c.cancelTimerLocked()
	if c.phase == domain.PhaseRunning {
		c.stopNext = true
	} else {
		c.toIdleLocked()
		c.publishLocked()
	}
	c.mu.Unlock()

	c.wg.Wait()
	slog.Info("controller stopped")
	return nil
}

// Trigger es la decisión síncrona de admisión: reclama el slot de ejecución o
// rechaza. El ciclo en sí corre asíncrono. Las peticiones rechazadas se
// descartan, no se encolan — un segundo click manual simplemente se pierde.
//
// intervalHours solo aplica al modo interval; 0 usa la cadencia configurada.
func (c *Controller) Trigger(mode domain.TriggerMode, reason string, intervalHours float64) (domain.CycleRequest, error) {
	if !mode.Valid() {
		return domain.CycleRequest{}, fmt.Errorf("controller.Trigger: %w: unknown mode %q", domain.ErrInvalidConfig, mode)
	}
	if mode == domain.TriggerInterval && intervalHours < 0 {
		return domain.CycleRequest{}, fmt.Errorf("controller.Trigger: %w: interval_hours must be positive", domain.ErrInvalidConfig)
	}

	c.mu.Lock()
	switch {
	case c.phase == domain.PhaseIdle:
		// única fase que admite cualquier petición
	case c.phase == domain.PhaseScheduled && mode == domain.TriggerManual:
		// Préstamo del slot: el manual corre ahora y el reloj del interval
		// no se resetea; al terminar se restaura el fire pendiente.
		c.resumeFireAt = c.nextFireAt
		c.cancelTimerLocked()
	default:
		phase := c.phase
		c.mu.Unlock()
		slog.Info("trigger rejected", "mode", mode, "phase", phase)
		c.recorder.RecordEvent("trigger_rejected", "", fmt.Sprintf("mode=%s phase=%s", mode, phase))
		return domain.CycleRequest{}, domain.ErrCycleInProgress
	}

	req := domain.CycleRequest{
		ID:          uuid.NewString(),
		Mode:        mode,
		RequestedAt: c.clock(),
		Reason:      reason,
	}
	if mode == domain.TriggerInterval {
		req.IntervalHours = intervalHours
		if req.IntervalHours == 0 {
			req.IntervalHours = c.cfg.Interval.Hours()
		}
	}

	c.claimLocked(req)
	runCfg, timeout, ctx := c.runParamsLocked()
	c.publishLocked()
	c.mu.Unlock()

	slog.Info("trigger accepted", "cycle_id", req.ID, "mode", mode, "reason", reason)
	c.recorder.RecordEvent("trigger_accepted", req.ID, string(mode))

	c.wg.Add(1)
	go c.runCycle(ctx, req, runCfg, timeout)
	return req, nil
}

// Stop suprime la próxima decisión de scheduling. Un ciclo en vuelo termina
// entero (nada de cancelar a mitad de submission); Scheduled y CoolingDown
// pasan a Idle inmediatamente.
func (c *Controller) Stop() {
	c.mu.Lock()
	phase := c.phase
	switch c.phase {
	case domain.PhaseRunning:
		c.stopNext = true
	case domain.PhaseScheduled, domain.PhaseCoolingDown:
		c.cancelTimerLocked()
		c.toIdleLocked()
		c.publishLocked()
	}
	c.mu.Unlock()

	slog.Info("stop requested", "phase", phase)
	c.recorder.RecordEvent("stop", "", fmt.Sprintf("phase=%s", phase))
}

// Configure muta la configuración del controller. No toca un schedule ya
// pendiente: la nueva cadencia aplica en la próxima decisión de scheduling.
func (c *Controller) Configure(intervalHours float64, staleness, minGap time.Duration) error {
	if intervalHours <= 0 {
		return fmt.Errorf("controller.Configure: %w: interval_hours must be positive", domain.ErrInvalidConfig)
	}
	if staleness < 0 || minGap < 0 {
		return fmt.Errorf("controller.Configure: %w: negative duration", domain.ErrInvalidConfig)
	}

	c.mu.Lock()
	c.cfg.Interval = time.Duration(float64(time.Hour) * intervalHours)
	c.cfg.Staleness = staleness
	c.cfg.MinGap = minGap
	c.mu.Unlock()

	slog.Info("controller reconfigured",
		"interval_hours", intervalHours,
		"staleness", staleness,
		"min_gap", minGap,
	)
	c.recorder.RecordEvent("configured", "", fmt.Sprintf("interval_hours=%.2f", intervalHours))
	return nil
}

// Status devuelve el snapshot publicado por el recorder.
func (c *Controller) Status() domain.Status {
	return c.recorder.Status()
}

// --- transiciones internas (todas con c.mu tomado) ---

// claimLocked reclama el slot de ejecución para la petición dada.
func (c *Controller) claimLocked(req domain.CycleRequest) {
	c.phase = domain.PhaseRunning
	c.current = &req
	c.stopNext = false
}

// runParamsLocked toma el snapshot de configuración para un ciclo admitido.
func (c *Controller) runParamsLocked() (RunConfig, time.Duration, context.Context) {
	runCfg := RunConfig{
		Staleness:        c.cfg.Staleness,
		WorkforceTimeout: c.cfg.WorkforceTimeout,
		Limits:           c.cfg.Limits,
	}
	return runCfg, c.cfg.CycleTimeout, c.ctx
}

// runCycle ejecuta el ciclo fuera del lock y aplica la transición de salida.
// Todo camino de salida de Running aterriza en CoolingDown, Scheduled o Idle.
func (c *Controller) runCycle(base context.Context, req domain.CycleRequest, runCfg RunConfig, timeout time.Duration) {
	defer c.wg.Done()

	ctx := base
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(base, timeout)
		defer cancel()
	}

	result := c.runner.Run(ctx, req, runCfg)

	// Orden de finalización == orden de arranque: solo hay un Running a la vez.
	c.recorder.RecordCycle(result)
	c.recorder.RecordEvent("cycle_finished", req.ID, string(result.State))

	if c.notifier != nil {
		if err := c.notifier.Notify(context.WithoutCancel(base), result); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}

	c.mu.Lock()
	c.current = nil
	now := c.clock()
	switch {
	case c.stopNext:
		c.stopNext = false
		c.resumeFireAt = time.Time{}
		c.toIdleLocked()
	case req.Mode == domain.TriggerInterval:
		// El fallo de un ciclo no cambia la transición: un fault persistente
		// aguas abajo no puede dejar el controller clavado en Running.
		interval := time.Duration(float64(time.Hour) * req.IntervalHours)
		if interval <= 0 {
			interval = c.cfg.Interval
		}
		c.toScheduledLocked(result.EndedAt.Add(interval))
	case !c.resumeFireAt.IsZero():
		// El manual devolvió el slot: el fire pendiente no cambia.
		at := c.resumeFireAt
		c.resumeFireAt = time.Time{}
		if !at.After(now) {
			// Tick vencido durante el manual: se descarta, no hay backlog.
			slog.Warn("missed interval tick dropped", "scheduled_for", at)
			c.recorder.RecordEvent("tick_dropped", "", at.Format(time.RFC3339))
			at = result.EndedAt.Add(c.cfg.Interval)
		}
		c.toScheduledLocked(at)
	default:
		c.toCoolingLocked(now.Add(c.cfg.MinGap))
	}
	c.publishLocked()
	c.mu.Unlock()
}

// onScheduleFire sintetiza la petición interval cuando vence el schedule,
// exactamente como si llegara una petición externa.
func (c *Controller) onScheduleFire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.phase != domain.PhaseScheduled {
		// Timer obsoleto: un Stop o un manual ya invalidó este fire.
		c.mu.Unlock()
		return
	}

	req := domain.CycleRequest{
		ID:            uuid.NewString(),
		Mode:          domain.TriggerInterval,
		RequestedAt:   c.clock(),
		Reason:        "interval elapsed",
		IntervalHours: c.cfg.Interval.Hours(),
	}
	c.claimLocked(req)
	runCfg, timeout, ctx := c.runParamsLocked()
	c.publishLocked()
	c.mu.Unlock()

	slog.Info("interval tick", "cycle_id", req.ID)
	c.recorder.RecordEvent("trigger_accepted", req.ID, "interval tick")

	c.wg.Add(1)
	go c.runCycle(ctx, req, runCfg, timeout)
}

// onCoolingExpire cierra la ventana de cooling down.
func (c *Controller) onCoolingExpire(gen uint64) {
	c.mu.Lock()
	if gen == c.gen && c.phase == domain.PhaseCoolingDown {
		c.toIdleLocked()
		c.publishLocked()
	}
	c.mu.Unlock()
}

func (c *Controller) toIdleLocked() {
	c.phase = domain.PhaseIdle
	c.nextFireAt = time.Time{}
	c.coolingUntil = time.Time{}
}

func (c *Controller) toScheduledLocked(at time.Time) {
	c.phase = domain.PhaseScheduled
	c.nextFireAt = at
	c.coolingUntil = time.Time{}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(at.Sub(c.clock()), func() { c.onScheduleFire(gen) })
}

func (c *Controller) toCoolingLocked(until time.Time) {
	c.phase = domain.PhaseCoolingDown
	c.coolingUntil = until
	c.nextFireAt = time.Time{}
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(until.Sub(c.clock()), func() { c.onCoolingExpire(gen) })
}

// cancelTimerLocked invalida cualquier callback pendiente de timer.
func (c *Controller) cancelTimerLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// publishLocked publica el snapshot de status tras una transición.
func (c *Controller) publishLocked() {
	status := domain.Status{Phase: c.phase}
	switch c.phase {
	case domain.PhaseScheduled:
		at := c.nextFireAt
		status.NextFireAt = &at
	case domain.PhaseCoolingDown:
		until := c.coolingUntil
		status.CoolingUntil = &until
	case domain.PhaseRunning:
		req := *c.current
		status.Current = &req
		if !c.resumeFireAt.IsZero() {
			// Manual con slot prestado: el fire del interval sigue pendiente.
			at := c.resumeFireAt
			status.NextFireAt = &at
		}
	}
	c.recorder.Publish(status)
}

// publish toma el lock solo para la publicación inicial del constructor.
func (c *Controller) publish() {
	c.mu.Lock()
	c.publishLocked()
	c.mu.Unlock()
}
