package extruder_hmi

import "time"

// HistoryEntry is one timestamped sample of the fields the dashboard charts.
// Entries are immutable after creation and ordered by Timestamp.
// Targets are pointers: an absent setpoint is not the same as a zero one,
// and phase classification carries the last known setpoint forward.
type HistoryEntry struct {
	Timestamp    time.Time          `json:"timestamp"`
	Temps        map[string]float64 `json:"temps"`
	Relays       map[string]bool    `json:"relays"`
	Motors       map[string]float64 `json:"motors"`
	ManualDutyZ1 float64            `json:"manual_duty_z1"`
	ManualDutyZ2 float64            `json:"manual_duty_z2"`
	TargetZ1     *float64           `json:"target_z1,omitempty"`
	TargetZ2     *float64           `json:"target_z2,omitempty"`
	Status       string             `json:"status"`
	Mode         string             `json:"mode"`
}

// Segment is a contiguous interval of constant boolean signal state.
// Segments for one signal are non-overlapping and cover the full sampled
// range.
type Segment struct {
	SignalKey string    `json:"signal_key"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Active    bool      `json:"active"`
}

// Phase is a process-lifecycle classification.
type Phase string

const (
	PhaseWarmUp          Phase = "warm_up"
	PhaseProductionReady Phase = "production_ready"
	PhaseProduction      Phase = "production"
	PhaseCooldown        Phase = "cooldown"
)

// PhaseInterval is a maximal run of one phase. Intervals partition the
// observed time range: exactly one phase at any instant, no gaps.
type PhaseInterval struct {
	Phase Phase     `json:"phase"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
