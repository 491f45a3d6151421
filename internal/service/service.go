package service

import (
	"context"
	"time"

	hmi "extruder_hmi"
	"extruder_hmi/internal/backend"
	"extruder_hmi/internal/logger"
	"extruder_hmi/internal/repository"
	"extruder_hmi/internal/store"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Acquisition owns the single active acquisition strategy (poll or push).
type Acquisition interface {
	SetMode(mode AcquisitionMode) error
	Status() AcquisitionStatus
	Stop()
}

// Monitoring exposes the reconciled state read-only.
type Monitoring interface {
	CurrentState() (*hmi.State, bool)
	StateVersion() uint64
}

// History is the fixed-cadence recorder over the snapshot store.
// Run is started once per session from main() and stopped only via context
// cancellation at shutdown; mode switches never touch it.
type History interface {
	Seed(entries []hmi.HistoryEntry)
	Run(ctx context.Context, tick time.Duration)
	Entries() []hmi.HistoryEntry
	EntriesSince(t time.Time) []hmi.HistoryEntry
}

// Analytics derives segments and phase intervals from recorded history.
type Analytics interface {
	Segments(signalKey string) []hmi.Segment
	Phases() []hmi.PhaseInterval
}

// Alarms evaluates the active-alarm set and the blocking-overlay gate.
type Alarms interface {
	Active() []hmi.Alarm
	CriticalGate(currentView string) bool
}

// Commands proxies control commands to the process backend. Their effect is
// only ever observed through a subsequent snapshot.
type Commands interface {
	Send(ctx context.Context, command string, value any) error
}

//
// Root Service aggregates all sub-services.
//

type Service struct {
	Acquisition
	Monitoring
	History
	Analytics
	Alarms
	Commands
	Authorization
}

// Options carries the tunables main() reads from config.
type Options struct {
	PollInterval   time.Duration
	Retention      time.Duration
	PhaseTolerance float64
	JWTSigningKey  string
	JWTTokenTTL    time.Duration
}

// NewService wires the store, backend transport and repositories into
// concrete services.
func NewService(
	st *store.Store,
	client backend.Client,
	streams StreamFactory,
	repos *repository.Repository,
	log *logger.Logger,
	opts Options,
) *Service {
	recorder := NewRecorderService(st, repos.History, log, opts.Retention)
	return &Service{
		Acquisition:   NewAcquisitionService(st, client, streams, log, opts.PollInterval),
		Monitoring:    NewMonitoringService(st),
		History:       recorder,
		Analytics:     NewAnalyticsService(recorder, PhaseOptions{SetpointTolerance: opts.PhaseTolerance}),
		Alarms:        NewAlarmService(st),
		Commands:      NewCommandService(client),
		Authorization: NewAuthService(repos.Auth, opts.JWTSigningKey, opts.JWTTokenTTL),
	}
}

// MonitoringService reads the snapshot store for the presentation layer.
type MonitoringService struct {
	store *store.Store
}

func NewMonitoringService(st *store.Store) *MonitoringService {
	return &MonitoringService{store: st}
}

// CurrentState returns the latest reconciled state. ok is false until the
// first snapshot lands.
func (s *MonitoringService) CurrentState() (*hmi.State, bool) {
	return s.store.Current()
}

// StateVersion lets observers cheaply detect change between reads.
func (s *MonitoringService) StateVersion() uint64 {
	return s.store.Version()
}

// CommandService forwards {command, value} calls to the backend.
type CommandService struct {
	client backend.Client
}

func NewCommandService(client backend.Client) *CommandService {
	return &CommandService{client: client}
}

func (s *CommandService) Send(ctx context.Context, command string, value any) error {
	return s.client.Command(ctx, command, value)
}
