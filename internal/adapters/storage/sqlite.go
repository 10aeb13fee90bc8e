package storage

// sqlite.go — registro de auditoría del orquestador.
//
// Estrategia:
//   - `cycles`: una fila por ciclo terminado, con el resumen completo.
//   - `actions`: una fila por acción propuesta, con su veredicto y outcome.
//     Permite reconstruir qué se filtró y por qué regla.
//   - `events`: registro append-only de trigger events (aceptados, rechazados,
//     ticks descartados, stops).
//   - Prune automático al arrancar: todo lo anterior a 30 días.

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por ciclo terminado
CREATE TABLE IF NOT EXISTS cycles (
    id           TEXT PRIMARY KEY,
    mode         TEXT     NOT NULL,
    state        TEXT     NOT NULL,
    reason       TEXT,
    requested_at DATETIME NOT NULL,
    started_at   DATETIME NOT NULL,
    ended_at     DATETIME NOT NULL,
    snapshot_at  DATETIME,
    proposed     INTEGER  NOT NULL DEFAULT 0,
    executed     INTEGER  NOT NULL DEFAULT 0,
    err          TEXT
);

-- Una fila por acción propuesta dentro de un ciclo
CREATE TABLE IF NOT EXISTS actions (
    cycle_id      TEXT    NOT NULL REFERENCES cycles(id),
    seq           INTEGER NOT NULL,
    target_id     TEXT    NOT NULL,
    direction     TEXT    NOT NULL,
    size          REAL    NOT NULL DEFAULT 0,
    confidence    REAL    NOT NULL DEFAULT 0,
    allowed       INTEGER NOT NULL DEFAULT 0,
    violated_rule TEXT    NOT NULL DEFAULT 'none',
    status        TEXT,
    order_id      TEXT,
    fill_price    REAL    NOT NULL DEFAULT 0,
    detail        TEXT,
    PRIMARY KEY (cycle_id, seq)
);

-- Registro append-only de trigger events
CREATE TABLE IF NOT EXISTS events (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    at       DATETIME NOT NULL,
    kind     TEXT     NOT NULL,
    cycle_id TEXT,
    message  TEXT
);

CREATE INDEX IF NOT EXISTS idx_cycles_ended ON cycles(ended_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_at    ON events(at DESC);
`

const retention = 30 * 24 * time.Hour

// SQLiteAudit implementa ports.AuditStore usando SQLite (pure Go, sin CGo).
type SQLiteAudit struct {
	db *sql.DB
}

// NewSQLiteAudit abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia datos antiguos.
func NewSQLiteAudit(path string) (*SQLiteAudit, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteAudit: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteAudit: apply schema: %w", err)
	}

	s := &SQLiteAudit{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveCycle persiste el resumen del ciclo y sus acciones en una transacción.
func (s *SQLiteAudit) SaveCycle(ctx context.Context, result domain.CycleResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: begin tx: %w", err)
	}
	defer tx.Rollback()

	var snapshotAt *time.Time
	if !result.Snapshot.FetchedAt.IsZero() {
		t := result.Snapshot.FetchedAt.UTC()
		snapshotAt = &t
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cycles
			(id, mode, state, reason, requested_at, started_at, ended_at,
			 snapshot_at, proposed, executed, err)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.Request.ID,
		string(result.Request.Mode),
		string(result.State),
		result.Request.Reason,
		result.Request.RequestedAt.UTC(),
		result.StartedAt.UTC(),
		result.EndedAt.UTC(),
		snapshotAt,
		len(result.Proposed),
		len(result.Executed),
		result.Err,
	); err != nil {
		return fmt.Errorf("storage.SaveCycle: insert cycle %s: %w", result.Request.ID, err)
	}

	if len(result.Proposed) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO actions
				(cycle_id, seq, target_id, direction, size, confidence,
				 allowed, violated_rule, status, order_id, fill_price, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("storage.SaveCycle: prepare actions: %w", err)
		}
		defer stmt.Close()

		outcomes := outcomesByTarget(result.Executed)
		for i, action := range result.Proposed {
			allowed := 0
			rule := domain.RuleNone
			if i < len(result.Verdicts) {
				if result.Verdicts[i].Allowed {
					allowed = 1
				}
				rule = result.Verdicts[i].Violated
			}

			var status, orderID, detail string
			var fillPrice float64
			if out, ok := outcomes[action.TargetID]; ok {
				status = string(out.Status)
				orderID = out.OrderID
				fillPrice = out.FillPrice
				detail = out.Detail
			}

			if _, err := stmt.ExecContext(ctx,
				result.Request.ID, i,
				action.TargetID, string(action.Direction), action.Size, action.Confidence,
				allowed, string(rule),
				status, orderID, fillPrice, detail,
			); err != nil {
				return fmt.Errorf("storage.SaveCycle: insert action %s: %w", action.TargetID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveCycle: commit: %w", err)
	}
	return nil
}

// SaveEvent persiste una entrada del registro de trigger events.
func (s *SQLiteAudit) SaveEvent(ctx context.Context, event domain.AuditEvent) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO events (at, kind, cycle_id, message) VALUES (?, ?, ?, ?)`,
		event.At.UTC(), event.Kind, event.CycleID, event.Message,
	); err != nil {
		return fmt.Errorf("storage.SaveEvent: insert: %w", err)
	}
	return nil
}

// GetCycles devuelve los resúmenes de ciclos cuyo ended_at está en el rango
// dado, más recientes primero.
func (s *SQLiteAudit) GetCycles(ctx context.Context, from, to time.Time) ([]domain.CycleSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, state, started_at, ended_at, proposed, executed, err
		FROM cycles
		WHERE ended_at BETWEEN ? AND ?
		ORDER BY ended_at DESC
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage.GetCycles: query: %w", err)
	}
	defer rows.Close()

	var summaries []domain.CycleSummary
	for rows.Next() {
		var sum domain.CycleSummary
		var mode, state string
		if err := rows.Scan(
			&sum.ID, &mode, &state,
			&sum.StartedAt, &sum.EndedAt,
			&sum.Proposed, &sum.Executed, &sum.Err,
		); err != nil {
			return nil, fmt.Errorf("storage.GetCycles: scan row: %w", err)
		}
		sum.Mode = domain.TriggerMode(mode)
		sum.State = domain.TerminalState(state)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.GetCycles: rows: %w", err)
	}
	return summaries, nil
}

// Close cierra la conexión.
func (s *SQLiteAudit) Close() error {
	return s.db.Close()
}

// pruneOld elimina ciclos, acciones y eventos anteriores a la retención.
func (s *SQLiteAudit) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retention)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM actions WHERE cycle_id IN (SELECT id FROM cycles WHERE ended_at < ?)`, cutoff,
	); err != nil {
		slog.Warn("pruning old actions failed", "error", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cycles WHERE ended_at < ?`, cutoff); err != nil {
		slog.Warn("pruning old cycles failed", "error", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE at < ?`, cutoff); err != nil {
		slog.Warn("pruning old events failed", "error", err)
	}
}

// outcomesByTarget indexa los outcomes ejecutados por target.
func outcomesByTarget(executed []domain.ExecutedAction) map[string]domain.ExecutionOutcome {
	m := make(map[string]domain.ExecutionOutcome, len(executed))
	for _, e := range executed {
		m[e.Action.TargetID] = e.Outcome
	}
	return m
}
