package mill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSpawnYieldOrdering proves a spawned task runs cooperatively: the
// spawning (main) task resumes only once the spawned task has itself
// run to its first suspend point, and Yield hands the baton around the
// ready queue in FIFO order.
func TestSpawnYieldOrdering(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	var order []string
	rt.Spawn(func() {
		order = append(order, "a1")
		rt.Yield()
		order = append(order, "a2")
	})
	order = append(order, "main1")
	rt.Yield()
	order = append(order, "main2")
	rt.Yield()

	require.Equal(t, []string{"a1", "main1", "a2", "main2"}, order)
}

// TestSleepOrdering is the "sleep sort" scenario from spec.md §8 (S2):
// tasks sleeping for different durations must be woken, in order, from
// shortest to longest.
func TestSleepOrdering(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	done := MakeChan[int](rt, 4)
	durations := []int{40, 10, 30, 20}
	for _, ms := range durations {
		ms := ms
		rt.Spawn(func() {
			rt.Sleep(time.Now().Add(time.Duration(ms) * time.Millisecond))
			done.Send(rt, ms)
		})
	}

	var got []int
	for i := 0; i < len(durations); i++ {
		got = append(got, done.Recv(rt))
	}
	require.Equal(t, []int{10, 20, 30, 40}, got)
}

// TestPrepareBusyIsContractViolation proves Prepare refuses to run once
// any task other than main exists, per spec.md §7's classification of
// this as a programmer error rather than an operational one.
func TestPrepareBusyIsContractViolation(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	rt.taskCount = 1 // simulate a live spawned task without actually blocking main
	require.PanicsWithValue(t, &ContractViolation{Kind: ViolationPrepareBusy, Message: "Prepare called while other tasks exist", Cause: ErrBusy}, func() {
		_ = rt.Prepare(4, 0)
	})
}

// TestGlobalDeadlockPanics is property P8 from spec.md §8: if every
// task blocks with no timer armed and no fd registered, the scheduler
// has nothing left that could ever wake it and must panic rather than
// hang forever.
func TestGlobalDeadlockPanics(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	ch := MakeChan[int](rt, 0)
	require.Panics(t, func() {
		ch.Recv(rt)
	})
}
