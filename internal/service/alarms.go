package service

import (
	hmi "extruder_hmi"
	"extruder_hmi/internal/store"
)

// ViewAlarms is the view name of the alarms screen. The blocking overlay is
// suppressed there so acknowledging an alarm is never blocked by its own
// overlay.
const ViewAlarms = "alarms"

// AlarmService reads the active-alarm list off the snapshot store. It
// creates no alarms and cannot acknowledge or clear them; those are backend
// commands whose effect arrives with a later snapshot.
type AlarmService struct {
	store *store.Store
}

func NewAlarmService(st *store.Store) *AlarmService {
	return &AlarmService{store: st}
}

// Active returns the active alarms, defensively excluding any entry the
// backend already cleared but still shipped.
func (s *AlarmService) Active() []hmi.Alarm {
	st, ok := s.store.Current()
	if !ok {
		return nil
	}

	out := make([]hmi.Alarm, 0, len(st.Alarms))
	for _, a := range st.Alarms {
		if a.Cleared {
			continue
		}
		out = append(out, a)
	}
	return out
}

// CriticalGate reports whether the blocking overlay should show: an
// unacknowledged CRITICAL alarm exists and the caller is not already on the
// alarms view.
func (s *AlarmService) CriticalGate(currentView string) bool {
	if currentView == ViewAlarms {
		return false
	}
	for _, a := range s.Active() {
		if a.Severity == hmi.SeverityCritical && !a.Acknowledged {
			return true
		}
	}
	return false
}
