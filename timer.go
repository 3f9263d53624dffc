package mill

import (
	"container/heap"
	"time"
)

// timerEntry is one armed deadline. seq breaks ties between timers
// scheduled for the identical instant so the heap stays a strict
// ordering; cancelled lets cancelTimer invalidate an entry in place
// instead of searching the heap for it (fireExpired skips cancelled
// entries it pops rather than paying for a linear removal).
type timerEntry struct {
	when      time.Time
	seq       uint64
	t         *task
	cancelled bool

	// fdWaiter is non-nil when this timer is an fd_wait deadline; on
	// firing, fireExpired releases the matching poller registration
	// before the fd's own event can also resume the task.
	fdWaiter *fdWaiter
}

// timerHeap implements container/heap.Interface, carried over from the
// teacher almost unchanged (when/task pair, Less by when) with a
// sequence number added for deterministic tie-breaking and a
// cancelled flag added for cancelTimer.
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)   { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// scheduleTimer arms a timer that wakes t at or after when. It returns
// the entry so the caller can cancelTimer it (e.g. a choose clause
// whose deadline lost the race to another ready clause).
func (rt *Runtime) scheduleTimer(when time.Time, t *task) *timerEntry {
	rt.timerSeq++
	e := &timerEntry{when: when, seq: rt.timerSeq, t: t}
	heap.Push(&rt.timers, e)
	return e
}

// cancelTimer marks e so fireExpired skips it. Cheap no-op if e
// already fired or was already cancelled.
func (rt *Runtime) cancelTimer(e *timerEntry) {
	if e != nil {
		e.cancelled = true
	}
}

// nextDeadline reports the duration until the next live timer fires,
// or (0, false) if no timer is armed. Already-expired entries return 0.
func (rt *Runtime) nextDeadline(now time.Time) (time.Duration, bool) {
	for rt.timers.Len() > 0 {
		top := rt.timers[0]
		if top.cancelled {
			heap.Pop(&rt.timers)
			continue
		}
		d := top.when.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// fireExpired pops every timer due at or before now and moves its
// task onto the ready queue.
func (rt *Runtime) fireExpired(now time.Time) {
	for rt.timers.Len() > 0 {
		top := rt.timers[0]
		if top.cancelled {
			heap.Pop(&rt.timers)
			continue
		}
		if top.when.After(now) {
			return
		}
		heap.Pop(&rt.timers)
		if top.fdWaiter != nil {
			rt.releaseFDWaiter(top.fdWaiter.fd, top.fdWaiter)
		}
		rt.makeReady(top.t, -1)
	}
}
