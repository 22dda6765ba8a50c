// Package tracker coalesces raw filesystem events into two disjoint path
// sets, "new" and "removed", that a scanner client can drain and reset.
//
// The tracker is deliberately simple: it does not expand a directory
// rename into events for the contained paths, and it does not distinguish
// files from directories. It does, however, cancel out a create followed
// by a remove of the same path, as if the path was never created.
package tracker

import (
	"log/slog"
	"sync"

	"github.com/deltascan/deltascan-agent/internal/watch"
)

// State identifies which variant the tracker currently holds.
type State int

const (
	// StateOk means the tracker is accumulating changes normally.
	StateOk State = iota
	// StateTooManyChanges means the change limit was crossed and the
	// consumer must perform a full rescan.
	StateTooManyChanges
	// StateDropped means the event source reported degradation or a
	// transport fault; the consumer must perform a full rescan. Only a
	// reset leaves this state.
	StateDropped
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateOk:
		return "Ok"
	case StateTooManyChanges:
		return "TooManyChanges"
	case StateDropped:
		return "ChangesErroneousDropped"
	default:
		return "unknown"
	}
}

// Tracker owns the agent's single piece of mutable state. All methods are
// safe for concurrent use; each holds the lock for one O(1) amortized
// critical section and never performs I/O under it.
type Tracker struct {
	mu      sync.RWMutex
	state   State
	added   map[string]struct{}
	removed map[string]struct{}
	limit   int
	logger  *slog.Logger
}

// New creates a tracker in the Ok state with empty sets. limit caps the
// combined size of the two sets; the first event pushing the total past
// it moves the tracker to StateTooManyChanges.
func New(limit int, logger *slog.Logger) *Tracker {
	return &Tracker{
		state:   StateOk,
		added:   make(map[string]struct{}),
		removed: make(map[string]struct{}),
		limit:   limit,
		logger:  logger,
	}
}

// addNew records a path as created or modified. The unconditional delete
// from the opposite set is what keeps the sets disjoint across
// create-after-remove sequences; do not turn it into a conditional.
func (t *Tracker) addNew(path string) {
	delete(t.removed, path)
	t.added[path] = struct{}{}
}

// addRemoved records a path as deleted.
func (t *Tracker) addRemoved(path string) {
	delete(t.added, path)
	t.removed[path] = struct{}{}
}

// Apply folds one raw event into the tracked sets.
//
// Degradation and transport faults take priority over everything,
// including StateTooManyChanges: they move the tracker to StateDropped
// from any state. In either sentinel state all other events are
// discarded until a reset.
func (t *Tracker) Apply(event watch.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if event.Err != nil {
		t.logger.Error("event source fault", "error", event.Err)
		t.toDropped()
		return
	}
	if event.Degraded {
		t.logger.Error("event source degraded, full rescan required")
		t.toDropped()
		return
	}

	if t.state != StateOk {
		return
	}

	switch event.Kind {
	case watch.KindCreate, watch.KindModify, watch.KindRenameTo:
		for _, path := range event.Paths {
			t.addNew(path)
		}

	case watch.KindRemove, watch.KindRenameFrom:
		for _, path := range event.Paths {
			t.addRemoved(path)
		}

	case watch.KindRenameBoth:
		if len(event.Paths) != 2 {
			t.logger.Error("rename-both event with unexpected path count",
				"paths", len(event.Paths))
			return
		}
		t.addRemoved(event.Paths[0])
		t.addNew(event.Paths[1])

	case watch.KindRenameOther:
		// The exact action is unknown. Mark the path as both new and
		// removed so the scanner treats its state as unknown and rescans
		// it. This is the one place the sets are allowed to overlap.
		for _, path := range event.Paths {
			t.logger.Warn("unclassified rename event", "path", path)
			t.added[path] = struct{}{}
			t.removed[path] = struct{}{}
		}
	}

	if len(t.added)+len(t.removed) > t.limit {
		t.logger.Warn("change limit exceeded", "limit", t.limit)
		t.state = StateTooManyChanges
		t.added = make(map[string]struct{})
		t.removed = make(map[string]struct{})
	}
}

// toDropped moves the tracker to StateDropped and discards the sets.
// Callers must hold the lock.
func (t *Tracker) toDropped() {
	t.state = StateDropped
	t.added = make(map[string]struct{})
	t.removed = make(map[string]struct{})
}

// Reset unconditionally returns the tracker to the Ok state with empty
// sets, starting a fresh observation window.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = StateOk
	t.added = make(map[string]struct{})
	t.removed = make(map[string]struct{})
}

// Stats reports the current state and, when Ok, the set sizes.
func (t *Tracker) Stats() (state State, added, removed int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state, len(t.added), len(t.removed)
}

// DrainNew removes up to size arbitrary paths from the new set and
// returns them. done is true iff the set is empty after the drain. When
// the tracker is not Ok, paths is nil and state carries the sentinel.
func (t *Tracker) DrainNew(size int) (paths []string, done bool, state State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateOk {
		return nil, false, t.state
	}
	paths, done = drain(t.added, size)
	return paths, done, StateOk
}

// DrainRemoved removes up to size arbitrary paths from the removed set
// and returns them. Semantics match DrainNew.
func (t *Tracker) DrainRemoved(size int) (paths []string, done bool, state State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateOk {
		return nil, false, t.state
	}
	paths, done = drain(t.removed, size)
	return paths, done, StateOk
}

// drain pops up to size elements from set. Map iteration order is
// unspecified, which is exactly the contract: callers must not rely on
// drain order.
func drain(set map[string]struct{}, size int) (paths []string, done bool) {
	if size < 0 {
		size = 0
	}

	paths = make([]string, 0, min(size, len(set)))
	for path := range set {
		if len(paths) >= size {
			break
		}
		paths = append(paths, path)
		delete(set, path)
	}

	return paths, len(set) == 0
}
