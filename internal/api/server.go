package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

// Orchestrator es la superficie del trigger controller que expone la API.
type Orchestrator interface {
	Trigger(mode domain.TriggerMode, reason string, intervalHours float64) (domain.CycleRequest, error)
	Stop()
	Configure(intervalHours float64, staleness, minGap time.Duration) error
	Status() domain.Status
}

// HistoryProvider expone el registro de auditoría en memoria.
type HistoryProvider interface {
	History(n int) []domain.CycleSummary
	Events(n int) []domain.AuditEvent
}

// Server es la API HTTP de administración del orquestador.
type Server struct {
	httpServer *http.Server
	controller Orchestrator
	history    HistoryProvider
	startedAt  time.Time
}

// NewServer crea el server de administración escuchando en addr.
func NewServer(addr string, controller Orchestrator, history HistoryProvider) *Server {
	s := &Server{
		controller: controller,
		history:    history,
		startedAt:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/trigger", s.handleTrigger)
	mux.HandleFunc("/api/configure", s.handleConfigure)
	mux.HandleFunc("/api/stop", s.handleStop)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/events", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start empieza a servir en background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("admin api listening", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin api server stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown para el server limpiamente.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding api response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

// GET /api/status — fase actual, próximos fires y último ciclo.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}

	status := s.controller.Status()
	resp := map[string]any{
		"phase":    string(status.Phase),
		"uptime_s": time.Since(s.startedAt).Seconds(),
	}
	if status.NextFireAt != nil {
		resp["next_fire_at"] = status.NextFireAt
	}
	if status.CoolingUntil != nil {
		resp["cooling_until"] = status.CoolingUntil
	}
	if status.Current != nil {
		resp["current"] = map[string]any{
			"id":           status.Current.ID,
			"mode":         string(status.Current.Mode),
			"requested_at": status.Current.RequestedAt,
			"reason":       status.Current.Reason,
		}
	}
	if status.LastResult != nil {
		resp["last_result"] = summaryJSON(*status.LastResult)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// POST /api/trigger — dispara un ciclo; 409 si hay uno en curso.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}

	var body struct {
		Mode          string  `json:"mode"`
		Reason        string  `json:"reason"`
		IntervalHours float64 `json:"interval_hours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if body.Mode == "" {
		body.Mode = string(domain.TriggerAPI)
	}

	req, err := s.controller.Trigger(domain.TriggerMode(body.Mode), body.Reason, body.IntervalHours)
	switch {
	case errors.Is(err, domain.ErrCycleInProgress):
		s.writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, domain.ErrInvalidConfig):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"id":           req.ID,
		"mode":         string(req.Mode),
		"requested_at": req.RequestedAt,
	})
}

// POST /api/configure — cambia intervalo, staleness y min gap en caliente.
func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}

	var body struct {
		IntervalHours float64 `json:"interval_hours"`
		Staleness     string  `json:"staleness"`
		MinGap        string  `json:"min_gap"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	staleness, err := parseDurationField(body.Staleness)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "staleness: "+err.Error())
		return
	}
	minGap, err := parseDurationField(body.MinGap)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "min_gap: "+err.Error())
		return
	}

	if err := s.controller.Configure(body.IntervalHours, staleness, minGap); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// POST /api/stop — para el ciclo programado o suprime el reschedule.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}
	s.controller.Stop()
	s.writeJSON(w, http.StatusOK, map[string]string{"result": "ok"})
}

// GET /api/history?limit=20 — ciclos recientes, más recientes primero.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}

	summaries := s.history.History(queryLimit(r, 20))
	entries := make([]map[string]any, len(summaries))
	for i, sum := range summaries {
		entries[i] = summaryJSON(sum)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cycles": entries})
}

// GET /api/events?limit=50 — registro de trigger events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}

	events := s.history.Events(queryLimit(r, 50))
	entries := make([]map[string]any, len(events))
	for i, e := range events {
		entries[i] = map[string]any{
			"at":       e.At,
			"kind":     e.Kind,
			"cycle_id": e.CycleID,
			"message":  e.Message,
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": entries})
}

func summaryJSON(sum domain.CycleSummary) map[string]any {
	return map[string]any{
		"id":         sum.ID,
		"mode":       string(sum.Mode),
		"state":      string(sum.State),
		"started_at": sum.StartedAt,
		"ended_at":   sum.EndedAt,
		"proposed":   sum.Proposed,
		"executed":   sum.Executed,
		"error":      sum.Err,
	}
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func parseDurationField(v string) (time.Duration, error) {
	if v == "" {
		return 0, nil
	}
	return time.ParseDuration(v)
}
