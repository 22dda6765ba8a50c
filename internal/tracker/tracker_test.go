package tracker

import (
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deltascan/deltascan-agent/internal/watch"
)

func newTestTracker(limit int) *Tracker {
	return New(limit, slog.New(slog.NewTextHandler(os.Stdout, nil)))
}

func ev(kind watch.Kind, paths ...string) watch.Event {
	return watch.Event{Kind: kind, Paths: paths}
}

// drainAll drains a set completely and returns its contents.
func drainAll(t *testing.T, drainFn func(int) ([]string, bool, State)) []string {
	t.Helper()

	var all []string
	for {
		paths, done, state := drainFn(100)
		require.Equal(t, StateOk, state)
		all = append(all, paths...)
		if done {
			return all
		}
	}
}

func TestApply_CreateThenRemove(t *testing.T) {
	trk := newTestTracker(10000)

	trk.Apply(ev(watch.KindCreate, "/a"))
	trk.Apply(ev(watch.KindRemove, "/a"))

	state, added, removed := trk.Stats()
	assert.Equal(t, StateOk, state)
	assert.Equal(t, 0, added)
	assert.Equal(t, 1, removed)

	assert.ElementsMatch(t, []string{"/a"}, drainAll(t, trk.DrainRemoved))
}

func TestApply_RemoveThenCreate(t *testing.T) {
	trk := newTestTracker(10000)

	trk.Apply(ev(watch.KindRemove, "/a"))
	trk.Apply(ev(watch.KindCreate, "/a"))

	state, added, removed := trk.Stats()
	assert.Equal(t, StateOk, state)
	assert.Equal(t, 1, added)
	assert.Equal(t, 0, removed)

	assert.ElementsMatch(t, []string{"/a"}, drainAll(t, trk.DrainNew))
}

func TestApply_ModifyCountsAsNew(t *testing.T) {
	trk := newTestTracker(10000)

	trk.Apply(ev(watch.KindModify, "/a", "/b"))

	_, added, removed := trk.Stats()
	assert.Equal(t, 2, added)
	assert.Equal(t, 0, removed)
}

func TestApply_RenameHalves(t *testing.T) {
	trk := newTestTracker(10000)

	trk.Apply(ev(watch.KindRenameFrom, "/old"))
	trk.Apply(ev(watch.KindRenameTo, "/new"))

	assert.ElementsMatch(t, []string{"/new"}, drainAll(t, trk.DrainNew))
	assert.ElementsMatch(t, []string{"/old"}, drainAll(t, trk.DrainRemoved))
}

func TestApply_RenameBoth(t *testing.T) {
	trk := newTestTracker(10000)

	trk.Apply(ev(watch.KindRenameBoth, "/from", "/to"))

	state, added, removed := trk.Stats()
	assert.Equal(t, StateOk, state)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, removed)

	// Rename back: the sets swap.
	trk.Apply(ev(watch.KindRenameBoth, "/to", "/from"))

	assert.ElementsMatch(t, []string{"/from"}, drainAll(t, trk.DrainNew))
	assert.ElementsMatch(t, []string{"/to"}, drainAll(t, trk.DrainRemoved))
}

func TestApply_RenameBothBadArity(t *testing.T) {
	trk := newTestTracker(10000)

	trk.Apply(ev(watch.KindRenameBoth, "/only"))
	trk.Apply(ev(watch.KindRenameBoth, "/a", "/b", "/c"))

	state, added, removed := trk.Stats()
	assert.Equal(t, StateOk, state)
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, removed)
}

func TestApply_RenameOtherMarksBothSets(t *testing.T) {
	trk := newTestTracker(10000)

	trk.Apply(ev(watch.KindRenameOther, "/weird"))

	// The one documented overlap: the path lands in both sets so the
	// scanner treats its state as unknown.
	assert.ElementsMatch(t, []string{"/weird"}, drainAll(t, trk.DrainNew))
	assert.ElementsMatch(t, []string{"/weird"}, drainAll(t, trk.DrainRemoved))
}

func TestApply_SetsStayDisjoint(t *testing.T) {
	trk := newTestTracker(10000)

	// A noisy sequence flipping the same paths back and forth.
	trk.Apply(ev(watch.KindCreate, "/a", "/b"))
	trk.Apply(ev(watch.KindRemove, "/a"))
	trk.Apply(ev(watch.KindModify, "/b"))
	trk.Apply(ev(watch.KindRenameBoth, "/b", "/c"))
	trk.Apply(ev(watch.KindRemove, "/c"))
	trk.Apply(ev(watch.KindCreate, "/a"))
	trk.Apply(ev(watch.KindRenameFrom, "/a"))

	added := drainAll(t, trk.DrainNew)
	removed := drainAll(t, trk.DrainRemoved)
	for _, p := range added {
		assert.NotContains(t, removed, p)
	}

	assert.ElementsMatch(t, []string{"/a", "/b", "/c"}, removed)
	assert.Empty(t, added)
}

func TestApply_CeilingCrossed(t *testing.T) {
	trk := newTestTracker(2)

	trk.Apply(ev(watch.KindCreate, "/a"))
	trk.Apply(ev(watch.KindCreate, "/b"))

	state, _, _ := trk.Stats()
	require.Equal(t, StateOk, state, "limit itself is still fine")

	trk.Apply(ev(watch.KindCreate, "/c"))

	state, added, removed := trk.Stats()
	assert.Equal(t, StateTooManyChanges, state)
	assert.Zero(t, added)
	assert.Zero(t, removed)

	paths, done, state := trk.DrainNew(10)
	assert.Equal(t, StateTooManyChanges, state)
	assert.Nil(t, paths)
	assert.False(t, done)
}

func TestApply_CeilingCountsBothSets(t *testing.T) {
	trk := newTestTracker(2)

	trk.Apply(ev(watch.KindCreate, "/a"))
	trk.Apply(ev(watch.KindRemove, "/b"))
	trk.Apply(ev(watch.KindRemove, "/c"))

	state, _, _ := trk.Stats()
	assert.Equal(t, StateTooManyChanges, state)
}

func TestApply_SentinelGuardDiscardsEvents(t *testing.T) {
	trk := newTestTracker(1)

	trk.Apply(ev(watch.KindCreate, "/a", "/b"))
	state, _, _ := trk.Stats()
	require.Equal(t, StateTooManyChanges, state)

	trk.Apply(ev(watch.KindCreate, "/c"))
	trk.Apply(ev(watch.KindRemove, "/d"))

	state, _, _ = trk.Stats()
	assert.Equal(t, StateTooManyChanges, state)
}

func TestApply_DegradedHasPriority(t *testing.T) {
	trk := newTestTracker(1)

	trk.Apply(ev(watch.KindCreate, "/a", "/b"))
	state, _, _ := trk.Stats()
	require.Equal(t, StateTooManyChanges, state)

	trk.Apply(watch.Event{Degraded: true})

	state, _, _ = trk.Stats()
	assert.Equal(t, StateDropped, state)

	trk.Reset()
	state, added, removed := trk.Stats()
	assert.Equal(t, StateOk, state)
	assert.Zero(t, added)
	assert.Zero(t, removed)
}

func TestApply_TransportError(t *testing.T) {
	trk := newTestTracker(10000)

	trk.Apply(ev(watch.KindCreate, "/a"))
	trk.Apply(watch.Event{Err: fmt.Errorf("inotify read failed")})

	state, _, _ := trk.Stats()
	assert.Equal(t, StateDropped, state)
}

func TestApply_DroppedIsSticky(t *testing.T) {
	trk := newTestTracker(10000)

	trk.Apply(watch.Event{Degraded: true})

	// Nothing but a reset leaves the dropped state.
	trk.Apply(ev(watch.KindCreate, "/a"))
	trk.Apply(ev(watch.KindRemove, "/b"))

	state, _, _ := trk.Stats()
	assert.Equal(t, StateDropped, state)

	paths, done, state := trk.DrainRemoved(10)
	assert.Equal(t, StateDropped, state)
	assert.Nil(t, paths)
	assert.False(t, done)
}

func TestReset_FromEveryState(t *testing.T) {
	setups := map[string]func(*Tracker){
		"ok": func(trk *Tracker) {
			trk.Apply(ev(watch.KindCreate, "/a"))
		},
		"too_many_changes": func(trk *Tracker) {
			trk.Apply(ev(watch.KindCreate, "/a", "/b"))
		},
		"dropped": func(trk *Tracker) {
			trk.Apply(watch.Event{Degraded: true})
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			trk := newTestTracker(1)
			setup(trk)

			trk.Reset()

			state, added, removed := trk.Stats()
			assert.Equal(t, StateOk, state)
			assert.Zero(t, added)
			assert.Zero(t, removed)
		})
	}
}

func TestDrain_EmptySet(t *testing.T) {
	trk := newTestTracker(10000)

	for i := 0; i < 3; i++ {
		paths, done, state := trk.DrainNew(10)
		assert.Equal(t, StateOk, state)
		assert.Empty(t, paths)
		assert.True(t, done)
	}
}

func TestDrain_Pagination(t *testing.T) {
	trk := newTestTracker(10000)

	want := make([]string, 0, 1500)
	for i := 0; i < 1500; i++ {
		path := fmt.Sprintf("/file_%d", i)
		want = append(want, path)
		trk.Apply(ev(watch.KindCreate, path))
	}

	paths, done, state := trk.DrainNew(1000)
	require.Equal(t, StateOk, state)
	assert.Len(t, paths, 1000)
	assert.False(t, done)

	got := paths

	paths, done, state = trk.DrainNew(1000)
	require.Equal(t, StateOk, state)
	assert.Len(t, paths, 500)
	assert.True(t, done)

	got = append(got, paths...)
	assert.ElementsMatch(t, want, got, "drained pages collectively yield the full set")

	paths, done, _ = trk.DrainNew(1000)
	assert.Empty(t, paths)
	assert.True(t, done)
}

func TestDrain_ExactSizeReportsDone(t *testing.T) {
	trk := newTestTracker(10000)
	trk.Apply(ev(watch.KindRemove, "/a", "/b", "/c"))

	paths, done, _ := trk.DrainRemoved(3)
	assert.Len(t, paths, 3)
	assert.True(t, done)
}

func TestDrain_NegativeSize(t *testing.T) {
	trk := newTestTracker(10000)
	trk.Apply(ev(watch.KindCreate, "/a"))

	paths, done, state := trk.DrainNew(-5)
	assert.Equal(t, StateOk, state)
	assert.Empty(t, paths)
	assert.False(t, done, "the set is not empty, only the page was")
}

func TestDrain_DoesNotTouchOtherSet(t *testing.T) {
	trk := newTestTracker(10000)
	trk.Apply(ev(watch.KindCreate, "/a"))
	trk.Apply(ev(watch.KindRemove, "/b"))

	_, done, _ := trk.DrainNew(10)
	require.True(t, done)

	_, added, removed := trk.Stats()
	assert.Zero(t, added)
	assert.Equal(t, 1, removed)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "Ok", StateOk.String())
	assert.Equal(t, "TooManyChanges", StateTooManyChanges.String())
	assert.Equal(t, "ChangesErroneousDropped", StateDropped.String())
}
