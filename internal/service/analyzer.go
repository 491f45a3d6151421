package service

import (
	hmi "extruder_hmi"
)

// Phase-classification tunables.
const (
	// DefaultSetpointTolerance is the band below the setpoint within which
	// the average temperature counts as "reached".
	DefaultSetpointTolerance = 5.0
	// rpmEpsilon: any motor spinning faster than this means production.
	rpmEpsilon = 0.1
)

// PhaseOptions tunes BuildPhases. Zero values fall back to defaults.
type PhaseOptions struct {
	SetpointTolerance float64
}

func (o PhaseOptions) tolerance() float64 {
	if o.SetpointTolerance > 0 {
		return o.SetpointTolerance
	}
	return DefaultSetpointTolerance
}

// AnalyticsService derives segments and phases from recorded history on
// demand. Both derivations are pure functions of the entry sequence.
type AnalyticsService struct {
	history History
	opts    PhaseOptions
}

func NewAnalyticsService(history History, opts PhaseOptions) *AnalyticsService {
	return &AnalyticsService{history: history, opts: opts}
}

func (s *AnalyticsService) Segments(signalKey string) []hmi.Segment {
	return BuildSegments(s.history.Entries(), signalKey)
}

func (s *AnalyticsService) Phases() []hmi.PhaseInterval {
	return BuildPhases(s.history.Entries(), s.opts)
}

// BuildSegments walks the sequence once and produces contiguous,
// non-overlapping on/off intervals for the given boolean signal, covering
// [first, last] with no gaps. A value change at an entry closes the current
// segment at that entry's timestamp; the final segment closes at the last
// timestamp (so a trailing change yields a zero-length tail segment). An
// entry without the signal reads as false; absent means inactive, not
// error.
func BuildSegments(entries []hmi.HistoryEntry, signalKey string) []hmi.Segment {
	if len(entries) == 0 {
		return nil
	}

	var segments []hmi.Segment
	cur := hmi.Segment{
		SignalKey: signalKey,
		Start:     entries[0].Timestamp,
		Active:    entries[0].Relays[signalKey],
	}

	for _, e := range entries[1:] {
		v := e.Relays[signalKey]
		if v == cur.Active {
			continue
		}
		cur.End = e.Timestamp
		segments = append(segments, cur)
		cur = hmi.Segment{SignalKey: signalKey, Start: e.Timestamp, Active: v}
	}

	cur.End = entries[len(entries)-1].Timestamp
	return append(segments, cur)
}

// BuildPhases classifies every sample into a lifecycle phase and merges
// runs of equal phase into intervals. Fewer than two entries is
// insufficient data and yields nil, not an error.
//
// Per-sample precedence, first match wins:
//  1. any motor RPM above epsilon        -> production
//  2. setpoint reached earlier in the run but average now below it -> cooldown
//  3. setpoint reached                   -> production_ready
//  4. otherwise                          -> warm_up
//
// "Reached" is sticky for the whole run; it is never reset, even if the
// temperature keeps falling after a cooldown. The setpoint at a sample is
// the average of whichever zone targets are defined there; samples without
// a target carry the last known setpoint forward.
func BuildPhases(entries []hmi.HistoryEntry, opts PhaseOptions) []hmi.PhaseInterval {
	if len(entries) < 2 {
		return nil
	}

	tolerance := opts.tolerance()
	labels := make([]hmi.Phase, len(entries))

	var (
		setpoint    float64
		hasSetpoint bool
		reached     bool
	)

	for i, e := range entries {
		if sp, ok := sampleSetpoint(e); ok {
			setpoint = sp
			hasSetpoint = true
		}

		avg, hasTemps := averageTemp(e.Temps)
		threshold := setpoint - tolerance
		if hasSetpoint && hasTemps && avg >= threshold {
			reached = true
		}

		switch {
		case anyMotorRunning(e.Motors):
			labels[i] = hmi.PhaseProduction
		case reached && hasSetpoint && hasTemps && avg < threshold:
			labels[i] = hmi.PhaseCooldown
		case reached:
			labels[i] = hmi.PhaseProductionReady
		default:
			labels[i] = hmi.PhaseWarmUp
		}
	}

	return mergeRuns(entries, labels)
}

// mergeRuns collapses per-sample labels into maximal intervals of equal
// phase partitioning [first, last].
func mergeRuns(entries []hmi.HistoryEntry, labels []hmi.Phase) []hmi.PhaseInterval {
	var intervals []hmi.PhaseInterval
	cur := hmi.PhaseInterval{Phase: labels[0], Start: entries[0].Timestamp}

	for i := 1; i < len(entries); i++ {
		if labels[i] == cur.Phase {
			continue
		}
		cur.End = entries[i].Timestamp
		intervals = append(intervals, cur)
		cur = hmi.PhaseInterval{Phase: labels[i], Start: entries[i].Timestamp}
	}

	cur.End = entries[len(entries)-1].Timestamp
	return append(intervals, cur)
}

// sampleSetpoint averages the zone targets defined at this sample.
func sampleSetpoint(e hmi.HistoryEntry) (float64, bool) {
	var sum float64
	var n int
	if e.TargetZ1 != nil {
		sum += *e.TargetZ1
		n++
	}
	if e.TargetZ2 != nil {
		sum += *e.TargetZ2
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func averageTemp(temps map[string]float64) (float64, bool) {
	if len(temps) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range temps {
		sum += v
	}
	return sum / float64(len(temps)), true
}

func anyMotorRunning(motors map[string]float64) bool {
	for _, rpm := range motors {
		if rpm > rpmEpsilon {
			return true
		}
	}
	return false
}
