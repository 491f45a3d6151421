package extruder_hmi

import "encoding/json"

// Category names published by the process backend. The backend keeps a few
// scalars (status, mode, targets, duties) at the top level of its state dict;
// the fetch decoder folds those into the synthetic "process" category so the
// whole snapshot is one uniform category -> key -> value tree.
const (
	CategoryTemps   = "temps"
	CategoryMotors  = "motors"
	CategoryRelays  = "relays"
	CategoryPWM     = "pwm"
	CategoryProcess = "process"
)

// Keys inside the "process" category.
const (
	KeyStatus       = "status"
	KeyMode         = "mode"
	KeyTargetZ1     = "target_z1"
	KeyTargetZ2     = "target_z2"
	KeyManualDutyZ1 = "manual_duty_z1"
	KeyManualDutyZ2 = "manual_duty_z2"
	KeyHeaterDutyZ1 = "heater_duty_z1"
	KeyHeaterDutyZ2 = "heater_duty_z2"
	KeyPeltierDuty  = "peltier_duty"
)

// System statuses as reported by the backend.
const (
	StatusReady    = "READY"
	StatusStarting = "STARTING"
	StatusRunning  = "RUNNING"
	StatusStopping = "STOPPING"
	StatusAlarm    = "ALARM"
	StatusOff      = "OFF"
)

// Category is one level of the snapshot tree: key -> scalar value.
// Leaf values are float64, bool, or string (what encoding/json produces).
type Category map[string]any

// Snapshot is the nested current-state tree: category -> key -> value.
type Snapshot map[string]Category

// Float reads a numeric leaf, returning def when the category or key is
// absent or the value is not numeric. Missing data is "no data yet", never
// an error.
func (s Snapshot) Float(category, key string, def float64) float64 {
	v, ok := s.lookup(category, key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// Bool reads a boolean leaf with a default for absent values.
func (s Snapshot) Bool(category, key string, def bool) bool {
	v, ok := s.lookup(category, key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

// String reads a string leaf with a default for absent values.
func (s Snapshot) String(category, key string, def string) string {
	v, ok := s.lookup(category, key)
	if !ok {
		return def
	}
	str, ok := v.(string)
	if !ok {
		return def
	}
	return str
}

func (s Snapshot) lookup(category, key string) (any, bool) {
	cat, ok := s[category]
	if !ok {
		return nil, false
	}
	v, ok := cat[key]
	return v, ok
}

// Delta is a single-field incremental update from the push channel,
// matching the backend's io_update event.
type Delta struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Val      any    `json:"val"`
}

// Alarm severities.
const (
	SeverityCritical = "CRITICAL"
	SeverityWarning  = "WARNING"
)

// Alarm mirrors the backend's alarm object. This core only reads alarms;
// creation, acknowledgement and clearing happen backend-side.
type Alarm struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Message      string  `json:"message"`
	Severity     string  `json:"severity"`
	Timestamp    float64 `json:"timestamp"` // unix seconds as published
	Acknowledged bool    `json:"acknowledged"`
	Cleared      bool    `json:"cleared"`
}

// State is the unit held by the snapshot store: the category tree, the
// active-alarm list and the pass-through config sub-tree from the backend.
type State struct {
	Data   Snapshot        `json:"data"`
	Alarms []Alarm         `json:"alarms"`
	Config json.RawMessage `json:"config,omitempty"`
}
