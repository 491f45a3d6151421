package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	hmi "extruder_hmi"
	"extruder_hmi/internal/service"
)

func telemetryRouter(mon *mockMonitoring, hist *mockHistory, an *mockAnalytics) *testRouterEnv {
	s := &service.Service{
		Authorization: &mockAuth{parseID: 7},
		Monitoring:    mon,
		History:       hist,
		Analytics:     an,
	}
	return &testRouterEnv{router: newTestRouter(s)}
}

type testRouterEnv struct {
	router http.Handler
}

func (e *testRouterEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	addHeaders(req, authHeader("valid"))
	e.router.ServeHTTP(w, req)
	return w
}

func TestGetState(t *testing.T) {
	mon := &mockMonitoring{
		state: &hmi.State{Data: hmi.Snapshot{
			hmi.CategoryTemps:   {"t1": 205.0},
			hmi.CategoryProcess: {hmi.KeyStatus: hmi.StatusRunning},
		}},
		ok: true,
	}
	env := telemetryRouter(mon, &mockHistory{}, &mockAnalytics{})

	w := env.get(t, "/api/v1/telemetry/state")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var st hmi.State
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Data.Float(hmi.CategoryTemps, "t1", 0) != 205.0 {
		t.Fatalf("unexpected state body: %s", w.Body.String())
	}
}

func TestGetState_BeforeFirstSnapshot(t *testing.T) {
	env := telemetryRouter(&mockMonitoring{ok: false}, &mockHistory{}, &mockAnalytics{})

	w := env.get(t, "/api/v1/telemetry/state")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d, want 503", w.Code)
	}
}

func TestGetHistory(t *testing.T) {
	hist := &mockHistory{entries: []hmi.HistoryEntry{
		{Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC), Status: hmi.StatusRunning},
	}}
	env := telemetryRouter(&mockMonitoring{}, hist, &mockAnalytics{})

	w := env.get(t, "/api/v1/telemetry/history")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Entries []hmi.HistoryEntry `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Entries) != 1 || resp.Entries[0].Status != hmi.StatusRunning {
		t.Fatalf("unexpected entries: %+v", resp.Entries)
	}
}

func TestGetHistory_SinceFilter(t *testing.T) {
	hist := &mockHistory{}
	env := telemetryRouter(&mockMonitoring{}, hist, &mockAnalytics{})

	w := env.get(t, "/api/v1/telemetry/history?since=2026-03-01T09:00:00Z")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	want := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if !hist.lastSince.Equal(want) {
		t.Fatalf("since not forwarded: got %v, want %v", hist.lastSince, want)
	}

	w = env.get(t, "/api/v1/telemetry/history?since=yesterday")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad since: status=%d, want 400", w.Code)
	}
}

func TestGetSegments(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	an := &mockAnalytics{segments: []hmi.Segment{
		{SignalKey: "fan", Start: base, End: base.Add(10 * time.Second), Active: false},
		{SignalKey: "fan", Start: base.Add(10 * time.Second), End: base.Add(40 * time.Second), Active: true},
	}}
	env := telemetryRouter(&mockMonitoring{}, &mockHistory{}, an)

	w := env.get(t, "/api/v1/telemetry/segments/fan")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	if an.lastSignal != "fan" {
		t.Fatalf("signal not forwarded: %q", an.lastSignal)
	}
	var resp struct {
		Signal   string        `json:"signal"`
		Segments []hmi.Segment `json:"segments"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Signal != "fan" || len(resp.Segments) != 2 {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
}

func TestGetPhases(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	an := &mockAnalytics{phases: []hmi.PhaseInterval{
		{Phase: hmi.PhaseWarmUp, Start: base, End: base.Add(30 * time.Second)},
		{Phase: hmi.PhaseProduction, Start: base.Add(30 * time.Second), End: base.Add(90 * time.Second)},
	}}
	env := telemetryRouter(&mockMonitoring{}, &mockHistory{}, an)

	w := env.get(t, "/api/v1/telemetry/phases")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Phases []hmi.PhaseInterval `json:"phases"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Phases) != 2 || resp.Phases[0].Phase != hmi.PhaseWarmUp {
		t.Fatalf("unexpected phases: %+v", resp.Phases)
	}
}
