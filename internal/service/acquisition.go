package service

import (
	"context"
	"errors"
	"sync"
	"time"

	hmi "extruder_hmi"
	"extruder_hmi/internal/backend"
	"extruder_hmi/internal/logger"
	"extruder_hmi/internal/metrics"
	"extruder_hmi/internal/store"
)

// AcquisitionMode selects how snapshots reach the store.
type AcquisitionMode string

const (
	ModePoll AcquisitionMode = "poll"
	ModePush AcquisitionMode = "push"
)

const defaultPollInterval = 1 * time.Second

var errUnknownMode = errors.New("unknown acquisition mode: must be poll or push")

// AcquisitionStatus is the readable connectivity surface. Errors never
// escape the strategies; they land here as strings and the dashboard keeps
// operating on the last good snapshot.
type AcquisitionStatus struct {
	Mode      AcquisitionMode `json:"mode"`
	Connected bool            `json:"connected"`
	LastError string          `json:"last_error,omitempty"`
}

// DeltaSource is the consuming side of the push channel. backend.DeltaStream
// implements it; tests substitute their own.
type DeltaSource interface {
	Run(ctx context.Context)
	Deltas() <-chan hmi.Delta
}

// StreamFactory builds a fresh push channel per push activation, so a
// cancelled strategy can never feed a later one.
type StreamFactory func(notify backend.StatusFunc) DeltaSource

// AcquisitionService runs exactly one strategy goroutine at a time. A mode
// switch cancels the old strategy's context and waits for its goroutine to
// exit before the new one starts, so a stale fetch or delta can never land
// after the switch.
type AcquisitionService struct {
	store        *store.Store
	client       backend.Client
	streams      StreamFactory
	log          *logger.Logger
	pollInterval time.Duration

	mu     sync.Mutex
	mode   AcquisitionMode
	cancel context.CancelFunc
	done   chan struct{}

	statusMu sync.RWMutex
	status   AcquisitionStatus
}

func NewAcquisitionService(
	st *store.Store,
	client backend.Client,
	streams StreamFactory,
	log *logger.Logger,
	pollInterval time.Duration,
) *AcquisitionService {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &AcquisitionService{
		store:        st,
		client:       client,
		streams:      streams,
		log:          log,
		pollInterval: pollInterval,
	}
}

// SetMode activates the given strategy. Repeated calls with the current
// mode are a no-op. Strategy lifetime is owned here, not by the caller:
// the mode outlives whichever request or startup path selected it, until
// the next switch or Stop.
func (a *AcquisitionService) SetMode(mode AcquisitionMode) error {
	if mode != ModePoll && mode != ModePush {
		return errUnknownMode
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mode == mode {
		return nil
	}
	a.teardownLocked()

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.mode = mode
	a.cancel = cancel
	a.done = done
	a.setStatus(mode, false, "")

	switch mode {
	case ModePoll:
		go func() {
			defer close(done)
			a.runPoll(runCtx)
		}()
	case ModePush:
		go func() {
			defer close(done)
			a.runPush(runCtx)
		}()
	}

	if a.log != nil {
		a.log.Infow("acquisition_mode_set", "mode", mode)
	}
	return nil
}

// Status reports the current mode and connectivity.
func (a *AcquisitionService) Status() AcquisitionStatus {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	return a.status
}

// Stop tears down the active strategy. Used at session shutdown.
func (a *AcquisitionService) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.teardownLocked()
	a.mode = ""
}

// teardownLocked cancels the running strategy and waits for its goroutine
// to exit. Callers hold a.mu.
func (a *AcquisitionService) teardownLocked() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil
}

// runPoll fetches the full state on a fixed cadence. The delay is measured
// from fetch completion, so a slow backend does not cause a burst on
// recovery. Errors reschedule like successes: polling self-heals.
func (a *AcquisitionService) runPoll(ctx context.Context) {
	for {
		st, err := a.client.FetchStatus(ctx)
		metrics.ObserveFetch(err)
		switch {
		case ctx.Err() != nil:
			// Cancelled mid-flight; the result must not be applied.
			return
		case err != nil:
			a.noteError(err)
		default:
			a.store.ApplyFull(st)
			a.noteConnected()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.pollInterval):
		}
	}
}

// runPush establishes a baseline snapshot, then consumes the delta channel
// until cancellation. Reconnection on channel loss belongs to the
// transport; this loop just keeps reading.
func (a *AcquisitionService) runPush(ctx context.Context) {
	if !a.establishBaseline(ctx) {
		return
	}

	stream := a.streams(func(connected bool, err error) {
		if connected {
			a.noteConnected()
			return
		}
		if err != nil && ctx.Err() == nil {
			metrics.ObserveStreamDrop()
			a.noteError(err)
		}
	})

	go stream.Run(ctx)

	for d := range stream.Deltas() {
		applied := a.store.ApplyDelta(d)
		metrics.ObserveDelta(applied)
		if !applied && a.log != nil {
			// Pre-baseline delta; superseded by the next full snapshot.
			a.log.Debugw("delta_dropped_before_baseline", "category", d.Category, "key", d.Key)
		}
	}
}

// establishBaseline retries the full fetch until it succeeds or the
// strategy is cancelled. The state before the first push event must never
// be empty.
func (a *AcquisitionService) establishBaseline(ctx context.Context) bool {
	for {
		st, err := a.client.FetchStatus(ctx)
		metrics.ObserveFetch(err)
		if ctx.Err() != nil {
			return false
		}
		if err == nil {
			a.store.ApplyFull(st)
			a.noteConnected()
			return true
		}
		a.noteError(err)

		select {
		case <-ctx.Done():
			return false
		case <-time.After(a.pollInterval):
		}
	}
}

func (a *AcquisitionService) setStatus(mode AcquisitionMode, connected bool, lastErr string) {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.status = AcquisitionStatus{Mode: mode, Connected: connected, LastError: lastErr}
}

func (a *AcquisitionService) noteConnected() {
	a.statusMu.Lock()
	defer a.statusMu.Unlock()
	a.status.Connected = true
	a.status.LastError = ""
}

func (a *AcquisitionService) noteError(err error) {
	a.statusMu.Lock()
	a.status.Connected = false
	a.status.LastError = err.Error()
	a.statusMu.Unlock()

	if a.log != nil {
		a.log.Warnw("acquisition_error", "err", err)
	}
}
