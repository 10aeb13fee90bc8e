package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polycycle/internal/domain"
)

type stubController struct {
	status     domain.Status
	triggerErr error
	triggered  []domain.TriggerMode
	configured bool
	stopped    bool
}

func (s *stubController) Trigger(mode domain.TriggerMode, reason string, intervalHours float64) (domain.CycleRequest, error) {
	if s.triggerErr != nil {
		return domain.CycleRequest{}, s.triggerErr
	}
	s.triggered = append(s.triggered, mode)
	return domain.CycleRequest{
		ID:          "req-1",
		Mode:        mode,
		RequestedAt: time.Now(),
		Reason:      reason,
	}, nil
}

func (s *stubController) Stop() { s.stopped = true }

func (s *stubController) Configure(float64, time.Duration, time.Duration) error {
	s.configured = true
	return nil
}

func (s *stubController) Status() domain.Status { return s.status }

type stubHistory struct {
	summaries []domain.CycleSummary
	events    []domain.AuditEvent
}

func (s *stubHistory) History(int) []domain.CycleSummary { return s.summaries }
func (s *stubHistory) Events(int) []domain.AuditEvent    { return s.events }

func newTestServer(ctrl *stubController, hist *stubHistory) *Server {
	if hist == nil {
		hist = &stubHistory{}
	}
	return NewServer("127.0.0.1:0", ctrl, hist)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_StatusIdle(t *testing.T) {
	ctrl := &stubController{status: domain.Status{Phase: domain.PhaseIdle}}
	rec := doRequest(t, newTestServer(ctrl, nil), http.MethodGet, "/api/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "idle", resp["phase"])
	assert.NotContains(t, resp, "next_fire_at")
	assert.NotContains(t, resp, "last_result")
}

func TestServer_StatusScheduledWithLastResult(t *testing.T) {
	fire := time.Now().Add(time.Hour)
	ctrl := &stubController{status: domain.Status{
		Phase:      domain.PhaseScheduled,
		NextFireAt: &fire,
		LastResult: &domain.CycleSummary{
			ID:    "cycle-1",
			Mode:  domain.TriggerInterval,
			State: domain.CycleCompleted,
		},
	}}
	rec := doRequest(t, newTestServer(ctrl, nil), http.MethodGet, "/api/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "scheduled", resp["phase"])
	assert.Contains(t, resp, "next_fire_at")

	last := resp["last_result"].(map[string]any)
	assert.Equal(t, "cycle-1", last["id"])
	assert.Equal(t, "completed", last["state"])
}

func TestServer_TriggerAccepted(t *testing.T) {
	ctrl := &stubController{}
	rec := doRequest(t, newTestServer(ctrl, nil), http.MethodPost, "/api/trigger",
		`{"mode": "manual", "reason": "operator request"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-1", resp["id"])
	assert.Equal(t, "manual", resp["mode"])
	require.Len(t, ctrl.triggered, 1)
	assert.Equal(t, domain.TriggerManual, ctrl.triggered[0])
}

func TestServer_TriggerDefaultsToAPIMode(t *testing.T) {
	ctrl := &stubController{}
	rec := doRequest(t, newTestServer(ctrl, nil), http.MethodPost, "/api/trigger", `{}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, ctrl.triggered, 1)
	assert.Equal(t, domain.TriggerAPI, ctrl.triggered[0])
}

func TestServer_TriggerConflict(t *testing.T) {
	ctrl := &stubController{triggerErr: domain.ErrCycleInProgress}
	rec := doRequest(t, newTestServer(ctrl, nil), http.MethodPost, "/api/trigger", `{"mode": "api"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in progress")
}

func TestServer_TriggerInvalidConfig(t *testing.T) {
	ctrl := &stubController{triggerErr: domain.ErrInvalidConfig}
	rec := doRequest(t, newTestServer(ctrl, nil), http.MethodPost, "/api/trigger", `{"mode": "bogus"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Configure(t *testing.T) {
	ctrl := &stubController{}
	rec := doRequest(t, newTestServer(ctrl, nil), http.MethodPost, "/api/configure",
		`{"interval_hours": 2, "staleness": "45m", "min_gap": "10m"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ctrl.configured)
}

func TestServer_ConfigureBadDuration(t *testing.T) {
	ctrl := &stubController{}
	rec := doRequest(t, newTestServer(ctrl, nil), http.MethodPost, "/api/configure",
		`{"interval_hours": 2, "staleness": "bogus"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, ctrl.configured)
}

func TestServer_Stop(t *testing.T) {
	ctrl := &stubController{}
	rec := doRequest(t, newTestServer(ctrl, nil), http.MethodPost, "/api/stop", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ctrl.stopped)
}

func TestServer_History(t *testing.T) {
	hist := &stubHistory{summaries: []domain.CycleSummary{
		{ID: "cycle-2", Mode: domain.TriggerManual, State: domain.CycleCompleted, Proposed: 3, Executed: 2},
		{ID: "cycle-1", Mode: domain.TriggerInterval, State: domain.CycleRejected, Err: "signal feed unavailable"},
	}}
	rec := doRequest(t, newTestServer(&stubController{}, hist), http.MethodGet, "/api/history?limit=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Cycles []map[string]any `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Cycles, 2)
	assert.Equal(t, "cycle-2", resp.Cycles[0]["id"])
	assert.Equal(t, "signal feed unavailable", resp.Cycles[1]["error"])
}

func TestServer_Events(t *testing.T) {
	hist := &stubHistory{events: []domain.AuditEvent{
		{At: time.Now(), Kind: "trigger_rejected", Message: "cycle already in progress"},
	}}
	rec := doRequest(t, newTestServer(&stubController{}, hist), http.MethodGet, "/api/events", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Events []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "trigger_rejected", resp.Events[0]["kind"])
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := newTestServer(&stubController{}, nil)

	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(t, s, http.MethodGet, "/api/trigger", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(t, s, http.MethodPost, "/api/status", "").Code)
}
