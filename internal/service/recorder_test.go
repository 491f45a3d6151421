package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	hmi "extruder_hmi"
	"extruder_hmi/internal/store"
)

// historyRepoStub captures persistence calls.
type historyRepoStub struct {
	mu        sync.Mutex
	appended  []hmi.HistoryEntry
	appendErr error
	pruned    []time.Time
}

func (r *historyRepoStub) Append(ctx context.Context, e hmi.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.appended = append(r.appended, e)
	return nil
}

func (r *historyRepoStub) LoadSince(ctx context.Context, cutoff time.Time) ([]hmi.HistoryEntry, error) {
	return nil, nil
}

func (r *historyRepoStub) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned = append(r.pruned, cutoff)
	return 0, nil
}

func populatedStore() *store.Store {
	st := store.New()
	st.ApplyFull(hmi.State{Data: hmi.Snapshot{
		hmi.CategoryTemps:  {"t1": 195.5, "t2": 198.5},
		hmi.CategoryRelays: {"ssr_z1": true},
		hmi.CategoryMotors: {"main": 12.0},
		hmi.CategoryProcess: {
			hmi.KeyStatus:       hmi.StatusRunning,
			hmi.KeyMode:         "AUTO",
			hmi.KeyTargetZ1:     200.0,
			hmi.KeyManualDutyZ1: 30.0,
		},
	}})
	return st
}

func TestRecorder_SkipsTickWhileStoreEmpty(t *testing.T) {
	r := NewRecorderService(store.New(), nil, nil, time.Hour)
	r.sample(context.Background(), time.Now())

	if got := len(r.Entries()); got != 0 {
		t.Fatalf("unpopulated store must produce no placeholder entries, got %d", got)
	}
}

func TestRecorder_SampleCapturesTypedFields(t *testing.T) {
	r := NewRecorderService(populatedStore(), nil, nil, time.Hour)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r.sample(context.Background(), now)

	entries := r.Entries()
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if !e.Timestamp.Equal(now) {
		t.Errorf("timestamp: want %v, got %v", now, e.Timestamp)
	}
	if e.Temps["t1"] != 195.5 || e.Temps["t2"] != 198.5 {
		t.Errorf("temps: %+v", e.Temps)
	}
	if !e.Relays["ssr_z1"] {
		t.Errorf("relays: %+v", e.Relays)
	}
	if e.Motors["main"] != 12.0 {
		t.Errorf("motors: %+v", e.Motors)
	}
	if e.Status != hmi.StatusRunning || e.Mode != "AUTO" {
		t.Errorf("status/mode: %q/%q", e.Status, e.Mode)
	}
	if e.TargetZ1 == nil || *e.TargetZ1 != 200.0 {
		t.Errorf("target_z1: %v", e.TargetZ1)
	}
	if e.TargetZ2 != nil {
		t.Errorf("undefined target_z2 must stay absent, got %v", *e.TargetZ2)
	}
	if e.ManualDutyZ1 != 30.0 || e.ManualDutyZ2 != 0 {
		t.Errorf("duties: %v/%v", e.ManualDutyZ1, e.ManualDutyZ2)
	}
}

func TestRecorder_RetentionEvictsOnlyExpiredEntries(t *testing.T) {
	// 5 s window; samples at t=0..6 s. After the tick at t=6, only t=0 is
	// older than now-5s and must be gone; t=1..6 remain.
	st := populatedStore()
	r := NewRecorderService(st, nil, nil, 5*time.Second)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i <= 6; i++ {
		r.sample(context.Background(), base.Add(time.Duration(i)*time.Second))
	}

	entries := r.Entries()
	if len(entries) != 6 {
		t.Fatalf("want 6 entries after eviction, got %d", len(entries))
	}
	if !entries[0].Timestamp.Equal(base.Add(1 * time.Second)) {
		t.Errorf("oldest surviving entry: want t=1s, got %v", entries[0].Timestamp)
	}
	if !entries[5].Timestamp.Equal(base.Add(6 * time.Second)) {
		t.Errorf("newest entry: want t=6s, got %v", entries[5].Timestamp)
	}
	for i := 1; i < len(entries); i++ {
		if !entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Fatalf("entries out of order at %d", i)
		}
	}
}

func TestRecorder_SeedInstallsHistoryBeforeRun(t *testing.T) {
	r := NewRecorderService(populatedStore(), nil, nil, time.Hour)

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	seed := []hmi.HistoryEntry{
		{Timestamp: base, Status: hmi.StatusReady},
		{Timestamp: base.Add(time.Second), Status: hmi.StatusRunning},
	}
	r.Seed(seed)

	entries := r.Entries()
	if len(entries) != 2 {
		t.Fatalf("want 2 seeded entries, got %d", len(entries))
	}

	// Live samples append after the seed.
	r.sample(context.Background(), base.Add(2*time.Second))
	if got := len(r.Entries()); got != 3 {
		t.Fatalf("want seed+1 entries, got %d", got)
	}
}

func TestRecorder_SeedIgnoredOnceStarted(t *testing.T) {
	r := NewRecorderService(populatedStore(), nil, nil, time.Hour)

	// A cancelled context makes Run mark itself started and return.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Run(ctx, 10*time.Millisecond)

	r.Seed([]hmi.HistoryEntry{{Timestamp: time.Now()}})
	if got := len(r.Entries()); got != 0 {
		t.Fatalf("seed after start must be ignored, got %d entries", got)
	}
}

func TestRecorder_RunRefusesSecondStart(t *testing.T) {
	r := NewRecorderService(populatedStore(), nil, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx, 5*time.Millisecond)
	defer cancel()

	time.Sleep(20 * time.Millisecond)

	// Second Run must return immediately instead of double-ticking.
	done := make(chan struct{})
	go func() {
		r.Run(context.Background(), 5*time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Run did not refuse to start")
	}
}

func TestRecorder_EntriesSince(t *testing.T) {
	r := NewRecorderService(populatedStore(), nil, nil, time.Hour)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r.sample(context.Background(), base.Add(time.Duration(i)*time.Second))
	}

	got := r.EntriesSince(base.Add(3 * time.Second))
	if len(got) != 2 {
		t.Fatalf("want 2 entries since t=3s, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(base.Add(3 * time.Second)) {
		t.Errorf("since is inclusive: want t=3s first, got %v", got[0].Timestamp)
	}
}

func TestRecorder_PersistIsBestEffort(t *testing.T) {
	repo := &historyRepoStub{}
	r := NewRecorderService(populatedStore(), repo, nil, time.Hour)
	now := time.Now().UTC()
	r.sample(context.Background(), now)

	repo.mu.Lock()
	appended := len(repo.appended)
	pruned := len(repo.pruned)
	repo.mu.Unlock()
	if appended != 1 || pruned != 1 {
		t.Fatalf("want 1 append + 1 prune, got %d/%d", appended, pruned)
	}

	// A failing repository must not disturb the in-memory sequence.
	failing := &historyRepoStub{appendErr: errors.New("disk full")}
	r2 := NewRecorderService(populatedStore(), failing, nil, time.Hour)
	r2.sample(context.Background(), now)
	if got := len(r2.Entries()); got != 1 {
		t.Fatalf("in-memory sequence must survive persist failure, got %d", got)
	}
}

func TestRecorder_RunTicksAgainstLiveStore(t *testing.T) {
	r := NewRecorderService(populatedStore(), nil, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx, 5*time.Millisecond)

	waitFor(t, time.Second, func() bool { return len(r.Entries()) >= 2 })
}
