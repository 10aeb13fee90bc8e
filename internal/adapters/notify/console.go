package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// Console implementa ports.Notifier escribiendo el resultado de cada
// ciclo a stdout. En modo compacto imprime una línea por ciclo; en modo
// tabla imprime el detalle de cada acción.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime el resultado del ciclo en el modo configurado.
func (c *Console) Notify(_ context.Context, result domain.CycleResult) error {
	if c.table {
		c.printFull(result)
	} else {
		c.printCompact(result)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(result domain.CycleResult) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] cycle %s %s/%s dur:%s props:%d exec:%d",
		result.EndedAt.Format("15:04:05"),
		shortID(result.Request.ID),
		result.Request.Mode,
		result.State,
		result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond),
		len(result.Proposed),
		len(result.Executed))

	if filled := countFilled(result.Executed); len(result.Executed) > 0 {
		fmt.Fprintf(&sb, " filled:%d", filled)
	}
	if result.Err != "" {
		fmt.Fprintf(&sb, " err:%q", result.Err)
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime cabecera, tabla de acciones y cierre.
func (c *Console) printFull(result domain.CycleResult) {
	fmt.Fprintf(c.out, "\n[%s] cycle %s — mode:%s state:%s\n",
		result.EndedAt.Format("15:04:05"),
		shortID(result.Request.ID),
		result.Request.Mode,
		result.State)
	if result.Request.Reason != "" {
		fmt.Fprintf(c.out, "  reason: %s\n", result.Request.Reason)
	}
	if !result.Snapshot.FetchedAt.IsZero() {
		fmt.Fprintf(c.out, "  snapshot: %s (%d signals, age %s at start)\n",
			result.Snapshot.FetchedAt.Format("15:04:05"),
			len(result.Snapshot.Payload),
			result.Snapshot.Staleness(result.StartedAt).Round(time.Second))
	}
	if result.Err != "" {
		fmt.Fprintf(c.out, "  error: %s\n", result.Err)
	}

	if len(result.Proposed) > 0 {
		c.printActions(result)
	}

	fmt.Fprintf(c.out, "  duration: %s\n\n",
		result.EndedAt.Sub(result.StartedAt).Round(time.Millisecond))
}

// printActions imprime la tabla de acciones con veredicto y outcome.
func (c *Console) printActions(result domain.CycleResult) {
	outcomes := make(map[string]domain.ExecutionOutcome, len(result.Executed))
	for _, e := range result.Executed {
		outcomes[e.Action.TargetID] = e.Outcome
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Target", "Side", "Size", "Conf", "Verdict", "Status", "Fill$")

	for i, action := range result.Proposed {
		verdict := "-"
		if i < len(result.Verdicts) {
			if result.Verdicts[i].Allowed {
				verdict = "allow"
			} else {
				verdict = string(result.Verdicts[i].Violated)
			}
		}

		status, fillLabel := "skipped", "-"
		if out, ok := outcomes[action.TargetID]; ok {
			status = string(out.Status)
			if out.Status == domain.ExecutionFilled {
				fillLabel = fmt.Sprintf("$%.4f", out.FillPrice)
			}
		}

		table.Append(
			fmt.Sprintf("%d", i+1),
			shortID(action.TargetID),
			string(action.Direction),
			fmt.Sprintf("$%.2f", action.Size),
			fmt.Sprintf("%.2f", action.Confidence),
			verdict,
			status,
			fillLabel,
		)
	}

	table.Render()
}

// PrintHistory imprime la tabla de ciclos recientes, más recientes primero.
func (c *Console) PrintHistory(summaries []domain.CycleSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(c.out, "  No cycles recorded yet.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Ended", "ID", "Mode", "State", "Props", "Exec", "Error")

	for _, s := range summaries {
		errLabel := s.Err
		if len(errLabel) > 40 {
			errLabel = errLabel[:37] + "..."
		}
		table.Append(
			s.EndedAt.Format("01-02 15:04:05"),
			shortID(s.ID),
			string(s.Mode),
			string(s.State),
			fmt.Sprintf("%d", s.Proposed),
			fmt.Sprintf("%d", s.Executed),
			errLabel,
		)
	}

	table.Render()
}

// shortID acorta UUIDs y condition IDs largos para la consola.
func shortID(id string) string {
	if len(id) > 14 {
		return id[:12] + ".."
	}
	return id
}

func countFilled(executed []domain.ExecutedAction) int {
	n := 0
	for _, e := range executed {
		if e.Outcome.Status == domain.ExecutionFilled {
			n++
		}
	}
	return n
}
