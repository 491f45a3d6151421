package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	hmi "extruder_hmi"
	"extruder_hmi/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockAcquisition struct {
	setModeErr   error
	status       service.AcquisitionStatus
	lastMode     service.AcquisitionMode
	setModeCalls int
	stopCalls    int
}

func (m *mockAcquisition) SetMode(mode service.AcquisitionMode) error {
	m.setModeCalls++
	m.lastMode = mode
	return m.setModeErr
}
func (m *mockAcquisition) Status() service.AcquisitionStatus { return m.status }

func (m *mockAcquisition) Stop() { m.stopCalls++ }

type mockMonitoring struct {
	mu      sync.Mutex
	state   *hmi.State
	ok      bool
	version uint64
}

func (m *mockMonitoring) CurrentState() (*hmi.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.ok
}

func (m *mockMonitoring) StateVersion() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *mockMonitoring) set(state *hmi.State, version uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.ok = state != nil
	m.version = version
}

type mockHistory struct {
	entries   []hmi.HistoryEntry
	lastSince time.Time
}

func (m *mockHistory) Seed(entries []hmi.HistoryEntry) {}

func (m *mockHistory) Run(ctx context.Context, _ time.Duration) { <-ctx.Done() }

func (m *mockHistory) Entries() []hmi.HistoryEntry { return m.entries }

func (m *mockHistory) EntriesSince(t time.Time) []hmi.HistoryEntry {
	m.lastSince = t
	return m.entries
}

type mockAnalytics struct {
	segments   []hmi.Segment
	phases     []hmi.PhaseInterval
	lastSignal string
}

func (m *mockAnalytics) Segments(signalKey string) []hmi.Segment {
	m.lastSignal = signalKey
	return m.segments
}
func (m *mockAnalytics) Phases() []hmi.PhaseInterval { return m.phases }

type mockAlarms struct {
	alarms   []hmi.Alarm
	gate     bool
	lastView string
}

func (m *mockAlarms) Active() []hmi.Alarm { return m.alarms }
func (m *mockAlarms) CriticalGate(currentView string) bool {
	m.lastView = currentView
	return m.gate
}

type mockCommands struct {
	sendErr     error
	lastCommand string
	lastValue   any
	sendCalls   int
}

func (m *mockCommands) Send(ctx context.Context, command string, value any) error {
	m.sendCalls++
	m.lastCommand = command
	m.lastValue = value
	return m.sendErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func addHeaders(req *http.Request, hdr http.Header) {
	for k, vv := range hdr {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
}
