package mill

import (
	"time"
)

// fdWaiter is one task parked on one direction (read or write) of an
// fd. A single FDWait call may populate both the read and write slots
// of an fdRegistration with the same *fdWaiter when the caller asked
// for both directions at once.
type fdWaiter struct {
	task  *task
	timer *timerEntry
	fd    int
}

// fdRegistration is the poller-facing state for one fd: which task (if
// any) owns each direction, and the event mask currently armed with
// the backend. Per the poller contract, at most one task may occupy
// each direction at a time; requesting an already-occupied direction
// is a contract violation.
type fdRegistration struct {
	armed IOEvents
	read  *fdWaiter
	write *fdWaiter
}

// Runtime is a single-threaded cooperative scheduler: ready queue,
// timer heap, and I/O poller, plus the baton-passing machinery that
// lets ordinary goroutines stand in for stackful coroutines while
// guaranteeing only one of them ever executes task code at a time.
//
// Grounded on the teacher's Loop (loop.go): ready queue draining,
// timer-before-fd-before-ready-task ordering, and a periodic forced
// non-blocking poll under CPU-bound load all carry over; the
// many-goroutines-feeding-one-queue reactor design does not, since
// tasks here must run to suspension one at a time rather than run to
// completion from a shared pool.
type Runtime struct {
	ready List[*task]
	current *task

	pool *workerPool

	timers   timerHeap
	timerSeq uint64

	fdRegs map[int]*fdRegistration

	pw   poller
	wake *wakeupPipe

	tickPeriod   int
	suspendTicks int

	taskCount int

	opts runtimeOptions
}

// New constructs a Runtime and registers the calling goroutine as its
// implicit main task. The Runtime (and every value it owns) must only
// ever be driven by the goroutine currently holding the baton; see the
// package doc's Thread safety section.
func New(options ...RuntimeOption) (*Runtime, error) {
	opts := resolveRuntimeOptions(options)

	pw, err := newPoller()
	if err != nil {
		return nil, err
	}

	wake, err := newWakeupPipe()
	if err != nil {
		_ = pw.Close()
		return nil, err
	}

	rt := &Runtime{
		pool:       newWorkerPool(opts.poolSize),
		fdRegs:     make(map[int]*fdRegistration),
		pw:         pw,
		wake:       wake,
		tickPeriod: opts.tickPeriod,
		opts:       opts,
	}

	if err := rt.pw.Add(wake.r, EventRead); err != nil {
		_ = wake.close()
		_ = pw.Close()
		return nil, err
	}

	main := newTask(rt, nil)
	main.state = taskRunning
	rt.current = main

	return rt, nil
}

// Close releases the poller and wake-pipe kernel resources. It must
// only be called once no tasks remain runnable.
func (rt *Runtime) Close() error {
	err := rt.wake.close()
	if e := rt.pw.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

// Now reports the clock the scheduler times deadlines against.
func (rt *Runtime) Now() time.Time {
	return time.Now()
}

// Wake may be called from any goroutine (not just the one currently
// holding the baton) to nudge a runtime blocked inside the poller with
// an infinite timeout, e.g. from a signal handler.
func (rt *Runtime) Wake() {
	rt.wake.signal()
}

// TaskLocalGet returns the current task's local storage slot. A newly
// spawned task's slot starts nil.
func (rt *Runtime) TaskLocalGet() any {
	return rt.current.local
}

// TaskLocalSet writes the current task's local storage slot.
func (rt *Runtime) TaskLocalSet(v any) {
	rt.current.local = v
}

// Prepare presizes the goroutine cache. It panics with a
// ContractViolation (wrapping ErrBusy) if any task other than main
// currently exists, mirroring the stack-cache
// warm-up contract this replaces: stackSize has no effect (Go manages
// each goroutine's own stack growth) and is accepted only so callers
// migrating from a stack-size-aware API have somewhere to pass it.
func (rt *Runtime) Prepare(count, stackSize int) error {
	if rt.taskCount != 0 {
		panic(&ContractViolation{Kind: ViolationPrepareBusy, Message: "Prepare called while other tasks exist", Cause: ErrBusy})
	}
	_ = stackSize
	for i := 0; i < count && len(rt.pool.idle) < rt.pool.limit; i++ {
		ch := make(chan *task, 1)
		go workerLoop(rt, ch)
		rt.pool.idle = append(rt.pool.idle, ch)
	}
	return nil
}

// makeReady arms result as the value t will receive from its resume
// channel once the scheduler switches to it, and appends t to the
// ready queue's tail.
func (rt *Runtime) makeReady(t *task, result int) {
	t.result = result
	t.state = taskReady
	rt.ready.PushBack(t)
}

// switchTo hands the baton to next and blocks the caller (the
// previously-current task) until it is itself resumed. All scheduler
// bookkeeping for a handoff (enqueue/park the outgoing task, pick the
// incoming one) must be done by the caller before calling switchTo:
// two goroutines are briefly concurrently alive across the send below,
// so no further shared-state mutation may happen after it.
func (rt *Runtime) switchTo(next *task) int {
	prev := rt.current
	rt.current = next
	next.state = taskRunning
	next.resume <- next.result
	return <-prev.resume
}

// suspend gives up the baton and lets the scheduler decide who runs
// next, returning the result value the caller was itself eventually
// resumed with.
func (rt *Runtime) suspend() int {
	next := rt.dispatch()
	return rt.switchTo(next)
}

// dispatch returns the next task that should run, forcing a periodic
// non-blocking poll every tickPeriod calls so fd/timer events are
// observed promptly even when the ready queue never empties, then
// blocking in the poller whenever it does.
func (rt *Runtime) dispatch() *task {
	rt.suspendTicks++
	if rt.suspendTicks >= rt.tickPeriod {
		rt.suspendTicks = 0
		rt.pollAndDispatch(0)
	}
	for {
		if t := rt.ready.PopFront(); t != nil {
			return t
		}
		rt.pollOnce()
	}
}

// pollOnce is the "nothing else to do" path: compute how long we can
// afford to block (capped by the nearest timer), and panic with a
// global-deadlock contract violation if there is truly nothing left
// that could ever wake us.
func (rt *Runtime) pollOnce() {
	now := time.Now()
	timeout := -1
	if d, ok := rt.nextDeadline(now); ok {
		ms := d.Milliseconds()
		if d%time.Millisecond != 0 {
			ms++
		}
		timeout = int(ms)
	} else if len(rt.fdRegs) == 0 {
		panicViolation(ViolationGlobalDeadlock, "ready queue empty, no timers armed, no fd waiters registered")
	}
	rt.pollAndDispatch(timeout)
}

// pollAndDispatch runs one poller Wait, fires expired timers, and
// resumes tasks whose fds became ready, in that order (matching the
// ordering guarantee that timers resume before fd-ready tasks within
// a single wait).
func (rt *Runtime) pollAndDispatch(timeoutMs int) {
	ready, err := rt.pw.Wait(timeoutMs)
	if err != nil {
		logger().Err().Err(err).Log("poller wait failed")
		return
	}

	rt.fireExpired(time.Now())

	for _, r := range ready {
		if r.fd == rt.wake.r {
			rt.wake.drain()
			continue
		}
		reg, ok := rt.fdRegs[r.fd]
		if !ok {
			continue
		}
		fired := make(map[*fdWaiter]IOEvents, 2)
		if reg.read != nil && r.events&(EventRead|EventError|EventHangup) != 0 {
			fired[reg.read] |= r.events
		}
		if reg.write != nil && r.events&(EventWrite|EventError|EventHangup) != 0 {
			fired[reg.write] |= r.events
		}
		for w, ev := range fired {
			rt.releaseFDWaiter(r.fd, w)
			rt.makeReady(w.task, int(ev))
		}
	}
}

// releaseFDWaiter unlinks w from fd's registration, cancels its
// deadline timer if any, and drops or shrinks the poller registration
// accordingly. Safe to call more than once for the same waiter.
func (rt *Runtime) releaseFDWaiter(fd int, w *fdWaiter) {
	reg, ok := rt.fdRegs[fd]
	if !ok {
		return
	}
	var freed IOEvents
	if reg.read == w {
		reg.read = nil
		freed |= EventRead
	}
	if reg.write == w {
		reg.write = nil
		freed |= EventWrite
	}
	if w.timer != nil {
		rt.cancelTimer(w.timer)
	}
	if reg.read == nil && reg.write == nil {
		delete(rt.fdRegs, fd)
		_ = rt.pw.Remove(fd)
		return
	}
	if freed != 0 {
		reg.armed &^= freed
		_ = rt.pw.Modify(fd, reg.armed)
	}
}

// Spawn allocates a new task running fn, pushes the current task back
// onto the ready queue, and makes the new task current. Control
// returns to the caller once the spawned task next suspends.
func (rt *Runtime) Spawn(fn func()) *task {
	t := newTask(rt, fn)
	ch := rt.pool.acquire(rt)
	t.workerCh = ch
	ch <- t

	rt.taskCount++
	rt.makeReady(rt.current, 0)
	rt.switchTo(t)
	return t
}

// exitCurrent is called by a task's pooled goroutine once its body has
// returned (or panicked and been contained). It recycles or retires
// the goroutine, then hands the baton to whatever runs next.
func (rt *Runtime) exitCurrent(t *task, ch chan *task) {
	t.state = taskDead
	rt.taskCount--
	if !rt.pool.release(ch) {
		close(ch)
	}

	next := rt.dispatch()
	rt.current = next
	next.state = taskRunning
	next.resume <- next.result
}

// Yield moves the current task to the tail of the ready queue and
// resumes whatever is at the head. A no-op if no other task is ready.
func (rt *Runtime) Yield() {
	rt.makeReady(rt.current, 0)
	rt.suspend()
}

// Sleep suspends the current task until deadline, returning
// immediately without suspending at all if it has already passed.
func (rt *Runtime) Sleep(deadline time.Time) {
	if !deadline.After(time.Now()) {
		return
	}
	rt.scheduleTimer(deadline, rt.current)
	rt.current.state = taskSleeping
	rt.suspend()
}

// FDWait suspends the current task until any of the requested events
// are observed on fd, or deadline passes (the zero Time means no
// deadline). Registering two waiters for the same direction on the
// same fd is a contract violation.
func (rt *Runtime) FDWait(fd int, events IOEvents, deadline time.Time) (IOEvents, error) {
	events &= EventRead | EventWrite
	reg, ok := rt.fdRegs[fd]
	if !ok {
		reg = &fdRegistration{}
		rt.fdRegs[fd] = reg
	}
	if events&EventRead != 0 && reg.read != nil {
		panicViolation(ViolationDoubleFDWaiter, "a reader is already waiting on this fd")
	}
	if events&EventWrite != 0 && reg.write != nil {
		panicViolation(ViolationDoubleFDWaiter, "a writer is already waiting on this fd")
	}

	w := &fdWaiter{task: rt.current, fd: fd}
	if !deadline.IsZero() {
		w.timer = rt.scheduleTimer(deadline, rt.current)
		w.timer.fdWaiter = w
	}
	if events&EventRead != 0 {
		reg.read = w
	}
	if events&EventWrite != 0 {
		reg.write = w
	}

	newMask := reg.armed | events
	var err error
	if reg.armed == 0 {
		err = rt.pw.Add(fd, newMask)
	} else if newMask != reg.armed {
		err = rt.pw.Modify(fd, newMask)
	}
	if err != nil {
		rt.releaseFDWaiter(fd, w)
		return 0, err
	}
	reg.armed = newMask

	rt.current.state = taskFDWaiting
	result := rt.suspend()
	rt.releaseFDWaiter(fd, w)
	if result < 0 {
		return 0, ErrTimedOut
	}
	return IOEvents(result), nil
}

// FDClean drops any pending waiters registered for fd without
// resuming them. It must be called before the fd is closed, and only
// when the calling task itself is the (possible) sole owner of any
// pending registration on fd — it is not a way to cancel another
// task's in-flight FDWait.
func (rt *Runtime) FDClean(fd int) {
	delete(rt.fdRegs, fd)
	_ = rt.pw.Remove(fd)
}
