package service

import (
	"context"
	"sync"
	"time"

	hmi "extruder_hmi"
	"extruder_hmi/internal/logger"
	"extruder_hmi/internal/metrics"
	"extruder_hmi/internal/repository"
	"extruder_hmi/internal/store"
)

const (
	// DefaultRecorderTick is the sampling cadence.
	DefaultRecorderTick = 1 * time.Second
	// DefaultRetention is the rolling-history horizon.
	DefaultRetention = 7 * 24 * time.Hour
)

// RecorderService samples the snapshot store on a fixed cadence and keeps a
// time-bounded, append-only sequence. It is decoupled from the acquisition
// mode: history is uninterrupted by connectivity-mode changes.
//
// Each sample is also handed to the history repository (best effort) so a
// later session can seed from it.
type RecorderService struct {
	store     *store.Store
	repo      repository.HistoryRepo
	log       *logger.Logger
	retention time.Duration

	mu      sync.RWMutex
	entries []hmi.HistoryEntry
	started bool
}

func NewRecorderService(st *store.Store, repo repository.HistoryRepo, log *logger.Logger, retention time.Duration) *RecorderService {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RecorderService{
		store:     st,
		repo:      repo,
		log:       log,
		retention: retention,
	}
}

// Seed installs pre-existing entries before live sampling begins, so a page
// reload does not discard recent history. Ignored once Run has started.
func (r *RecorderService) Seed(entries []hmi.HistoryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		if r.log != nil {
			r.log.Warnw("history_seed_ignored", "reason", "recorder already running")
		}
		return
	}
	r.entries = append(r.entries[:0], entries...)
	metrics.SetHistoryLength(len(r.entries))
}

// Run ticks at the given interval until ctx is canceled. It must be started
// exactly once for the session; a second call is refused.
func (r *RecorderService) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = DefaultRecorderTick
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		if r.log != nil {
			r.log.Errorw("recorder_run_refused", "reason", "already started")
		}
		return
	}
	r.started = true
	r.mu.Unlock()

	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			r.sample(ctx, now)
		}
	}
}

// Entries returns a copy of the retained sequence, oldest first.
func (r *RecorderService) Entries() []hmi.HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]hmi.HistoryEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// EntriesSince returns the retained entries with Timestamp >= t.
func (r *RecorderService) EntriesSince(t time.Time) []hmi.HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Entries are time-ordered; find the first one inside the range.
	i := 0
	for i < len(r.entries) && r.entries[i].Timestamp.Before(t) {
		i++
	}
	out := make([]hmi.HistoryEntry, len(r.entries)-i)
	copy(out, r.entries[i:])
	return out
}

// sample reads the store, appends one entry and evicts past the retention
// horizon. A tick before the first snapshot is skipped entirely.
func (r *RecorderService) sample(ctx context.Context, now time.Time) {
	st, ok := r.store.Current()
	if !ok {
		return
	}

	entry := entryFromState(now, st)

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	evicted := r.evictLocked(now)
	length := len(r.entries)
	r.mu.Unlock()

	metrics.SetHistoryLength(length)
	metrics.AddEvicted(evicted)

	r.persist(ctx, entry, now)
}

// evictLocked drops entries older than now-retention from the front.
// Callers hold r.mu.
func (r *RecorderService) evictLocked(now time.Time) int {
	cutoff := now.Add(-r.retention)
	i := 0
	for i < len(r.entries) && r.entries[i].Timestamp.Before(cutoff) {
		i++
	}
	if i == 0 {
		return 0
	}
	r.entries = append(r.entries[:0], r.entries[i:]...)
	return i
}

// persist mirrors the sample into the repository. Failures are logged and
// swallowed: the recorder tick must never stop.
func (r *RecorderService) persist(ctx context.Context, entry hmi.HistoryEntry, now time.Time) {
	if r.repo == nil {
		return
	}
	if err := r.repo.Append(ctx, entry); err != nil {
		if r.log != nil {
			r.log.Warnw("history_persist_failed", "err", err)
		}
		return
	}
	if _, err := r.repo.Prune(ctx, now.Add(-r.retention)); err != nil && r.log != nil {
		r.log.Warnw("history_prune_failed", "err", err)
	}
}

// entryFromState captures the charted fields with typed extraction, done
// once here instead of scattered through the derivation code. The snapshot
// itself is read by reference and left untouched.
func entryFromState(now time.Time, st *hmi.State) hmi.HistoryEntry {
	e := hmi.HistoryEntry{
		Timestamp:    now.UTC(),
		Temps:        floatCategory(st.Data[hmi.CategoryTemps]),
		Relays:       boolCategory(st.Data[hmi.CategoryRelays]),
		Motors:       floatCategory(st.Data[hmi.CategoryMotors]),
		ManualDutyZ1: st.Data.Float(hmi.CategoryProcess, hmi.KeyManualDutyZ1, 0),
		ManualDutyZ2: st.Data.Float(hmi.CategoryProcess, hmi.KeyManualDutyZ2, 0),
		Status:       st.Data.String(hmi.CategoryProcess, hmi.KeyStatus, ""),
		Mode:         st.Data.String(hmi.CategoryProcess, hmi.KeyMode, ""),
	}
	if v, ok := lookupFloat(st.Data, hmi.CategoryProcess, hmi.KeyTargetZ1); ok {
		e.TargetZ1 = &v
	}
	if v, ok := lookupFloat(st.Data, hmi.CategoryProcess, hmi.KeyTargetZ2); ok {
		e.TargetZ2 = &v
	}
	return e
}

func floatCategory(cat hmi.Category) map[string]float64 {
	out := make(map[string]float64, len(cat))
	for k, v := range cat {
		if f, ok := asFloat(v); ok {
			out[k] = f
		}
	}
	return out
}

func boolCategory(cat hmi.Category) map[string]bool {
	out := make(map[string]bool, len(cat))
	for k, v := range cat {
		if b, ok := v.(bool); ok {
			out[k] = b
		}
	}
	return out
}

func lookupFloat(s hmi.Snapshot, category, key string) (float64, bool) {
	cat, ok := s[category]
	if !ok {
		return 0, false
	}
	v, ok := cat[key]
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
