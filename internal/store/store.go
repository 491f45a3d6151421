package store

import (
	"sync"

	hmi "extruder_hmi"
)

// Store holds the authoritative machine state. It is nil-valued until the
// first full snapshot arrives; deltas received before that are dropped, the
// baseline fetch is the source of truth for emptiness.
//
// Only the acquisition goroutine mutates the store. Readers receive the
// current *State by reference and must treat it as immutable; every
// mutation installs a fresh *State, so a reader never observes a torn
// update.
type Store struct {
	mu      sync.RWMutex
	current *hmi.State
	version uint64
}

func New() *Store {
	return &Store{}
}

// Current returns the latest fully-applied state. ok is false until the
// first ApplyFull.
func (s *Store) Current() (*hmi.State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current != nil
}

// Version increments on every successful mutation. Observers can use it to
// detect change without comparing trees.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ApplyFull replaces the state wholesale (poll cycle or push baseline).
func (s *Store) ApplyFull(st hmi.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &st
	s.version++
}

// ApplyDelta merges one (category, key, value) change copy-on-write: the
// top-level map and the target category are shallow-copied, every other
// category keeps its identity so observers relying on reference comparison
// only see the touched branch change. A delta against an uninitialized
// store is dropped and reported as unapplied.
func (s *Store) ApplyDelta(d hmi.Delta) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false
	}
	cur := s.current

	data := make(hmi.Snapshot, len(cur.Data)+1)
	for name, cat := range cur.Data {
		data[name] = cat
	}

	// emit_change on the producer side creates missing categories; mirror that.
	cat := make(hmi.Category, len(cur.Data[d.Category])+1)
	for k, v := range cur.Data[d.Category] {
		cat[k] = v
	}
	cat[d.Key] = d.Val
	data[d.Category] = cat

	s.current = &hmi.State{
		Data:   data,
		Alarms: cur.Alarms,
		Config: cur.Config,
	}
	s.version++
	return true
}
