package core

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Run is the outcome of loading and classifying one input.
type Run struct {
	ID          int
	Source      string
	Raw         *Table
	Accepted    *Table
	Rejected    *Table
	ProcessedAt time.Time
}

// RunSet is a registry of processed runs keyed by run id.
// Safe for concurrent use.
//
// Ids can be reserved before a run is processed, so that concurrent
// producers never pick the same id. A reservation is consumed by Add or
// dropped by Release.
type RunSet struct {
	mu       sync.RWMutex
	runs     map[int]*Run
	reserved map[int]bool
}

// NewRunSet creates an empty registry.
func NewRunSet() *RunSet {
	return &RunSet{runs: make(map[int]*Run), reserved: make(map[int]bool)}
}

// Add registers run, consuming any reservation of its id. Returns
// ErrRunExists if the id is already registered.
func (rs *RunSet) Add(run *Run) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, exists := rs.runs[run.ID]; exists {
		return fmt.Errorf("run %d: %w", run.ID, ErrRunExists)
	}
	delete(rs.reserved, run.ID)
	rs.runs[run.ID] = run
	return nil
}

// Reserve claims the next free id (see NextID) for a run about to be
// processed.
func (rs *RunSet) Reserve() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	id := rs.nextID()
	rs.reserved[id] = true
	return id
}

// ReserveID claims id. Returns ErrRunExists if it is registered or
// already reserved.
func (rs *RunSet) ReserveID(id int) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if _, exists := rs.runs[id]; exists || rs.reserved[id] {
		return fmt.Errorf("run %d: %w", id, ErrRunExists)
	}
	rs.reserved[id] = true
	return nil
}

// Release drops the reservation of id. Registered runs are unaffected.
func (rs *RunSet) Release(id int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.reserved, id)
}

// Get returns a run by id.
func (rs *RunSet) Get(id int) (*Run, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	run, ok := rs.runs[id]
	return run, ok
}

// All returns every run sorted by id.
func (rs *RunSet) All() []*Run {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	result := make([]*Run, 0, len(rs.runs))
	for _, run := range rs.runs {
		result = append(result, run)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result
}

// Count returns the number of registered runs.
func (rs *RunSet) Count() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.runs)
}

// NextID returns one more than the highest registered or reserved id.
func (rs *RunSet) NextID() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.nextID()
}

func (rs *RunSet) nextID() int {
	next := 1
	for id := range rs.runs {
		if id >= next {
			next = id + 1
		}
	}
	for id := range rs.reserved {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// AcceptedUnion unions the Accepted tables of every run, in run id order.
// With no runs it returns an empty Accepted table.
func (rs *RunSet) AcceptedUnion() (*Table, error) {
	return rs.union(KindAccepted, func(r *Run) *Table { return r.Accepted })
}

// RejectedUnion unions the Rejected tables of every run, in run id order.
func (rs *RunSet) RejectedUnion() (*Table, error) {
	return rs.union(KindRejected, func(r *Run) *Table { return r.Rejected })
}

func (rs *RunSet) union(kind TableKind, pick func(*Run) *Table) (*Table, error) {
	runs := rs.All()
	if len(runs) == 0 {
		return newTable(0, kind, "", outputColumns(), nil), nil
	}

	tables := make([]*Table, len(runs))
	for i, r := range runs {
		tables[i] = pick(r)
	}
	return UnionAll(tables...)
}

// Remove unregisters a run. It reports whether the id was present.
func (rs *RunSet) Remove(id int) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	_, ok := rs.runs[id]
	delete(rs.runs, id)
	return ok
}
