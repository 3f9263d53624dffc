package mill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestChooseImmediatelyAvailable proves Choose picks an already-ready
// clause without blocking at all.
func TestChooseImmediatelyAvailable(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	a := MakeChan[int](rt, 1)
	b := MakeChan[int](rt, 1)
	a.Send(rt, 42)

	var dest int
	idx := Choose(rt, []Clause{Recv(a, &dest), Recv(b, &dest)})
	require.Equal(t, 0, idx)
	require.Equal(t, 42, dest)
}

// TestChooseBlocksThenFires proves a Choose with no immediately
// available clause blocks until a peer operation completes one of
// them, then returns that clause's index.
func TestChooseBlocksThenFires(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	a := MakeChan[int](rt, 0)
	b := MakeChan[int](rt, 0)

	rt.Spawn(func() {
		rt.Sleep(time.Now().Add(10 * time.Millisecond))
		b.Send(rt, 9)
	})

	var dest int
	idx := Choose(rt, []Clause{Recv(a, &dest), Recv(b, &dest)})
	require.Equal(t, 1, idx)
	require.Equal(t, 9, dest)
}

// TestChooseWithOtherwise proves a non-blocking Choose returns -1
// immediately when nothing is available and WithOtherwise is set.
func TestChooseWithOtherwise(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	a := MakeChan[int](rt, 0)
	var dest int
	idx := Choose(rt, []Clause{Recv(a, &dest)}, WithOtherwise())
	require.Equal(t, -1, idx)
}

// TestChooseWithDeadline is scenario S4 from spec.md §8: a Choose whose
// clauses never become available returns -1 once the deadline passes,
// after roughly the requested delay.
func TestChooseWithDeadline(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	a := MakeChan[int](rt, 0)
	var dest int
	start := time.Now()
	idx := Choose(rt, []Clause{Recv(a, &dest)}, WithDeadline(start.Add(30*time.Millisecond)))
	require.Equal(t, -1, idx)
	require.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

// TestChooseOtherwiseAndDeadlineIsContractViolation covers spec.md
// §4.2's rule that specifying both is a programmer error.
func TestChooseOtherwiseAndDeadlineIsContractViolation(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	a := MakeChan[int](rt, 0)
	var dest int
	require.Panics(t, func() {
		Choose(rt, []Clause{Recv(a, &dest)}, WithOtherwise(), WithDeadline(time.Now().Add(time.Second)))
	})
}

// TestChooseSiblingFairness is property P5 from spec.md §8: two Recv
// clauses on the same channel within a single Choose must each win a
// roughly equal share of deliveries over many trials.
func TestChooseSiblingFairness(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	ch := MakeChan[int](rt, 0)
	const trials = 200
	wins := [2]int{}

	rt.Spawn(func() {
		for i := 0; i < trials; i++ {
			ch.Send(rt, i)
		}
	})

	for i := 0; i < trials; i++ {
		var d0, d1 int
		idx := Choose(rt, []Clause{Recv(ch, &d0), Recv(ch, &d1)})
		wins[idx]++
	}

	require.Greater(t, wins[0], trials/4)
	require.Greater(t, wins[1], trials/4)
}
