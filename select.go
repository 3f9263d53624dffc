package mill

import "math/rand/v2"

// endpointKey identifies one (channel, direction) endpoint so Choose
// can group sibling clauses that target the same endpoint (spec.md
// §4.2's "Fairness among identical clauses").
type endpointKey struct {
	ch  any
	dir bool // false = sender endpoint, true = receiver endpoint
}

// Clause is one branch of a Choose call: a send-on-channel-with-value
// or a receive-into-destination. Concrete implementations are
// produced by the package-level Send and Recv constructors below; a
// Clause must not be reused across more than one Choose call.
//
// Grounded on the scan-then-act shape of the teacher's poll()/tick()
// two-phase loop (check cheaply, then act); the sibling-randomisation
// and three-pass cleanup protocol has no teacher equivalent and is
// written directly from spec.md §4.2's algorithm description.
type Clause interface {
	// scan reports whether this clause's operation could complete
	// without blocking right now. Must have no side effects.
	scan(rt *Runtime) bool
	// fire performs the transfer immediately; only called on a clause
	// scan already reported available.
	fire(rt *Runtime)
	// wait links this clause into its endpoint's waiter queue so a
	// future peer operation can complete it.
	wait(rt *Runtime, owner *task, jump int)
	// unlink removes this clause from its endpoint's waiter queue if
	// it is currently linked; a no-op otherwise.
	unlink(rt *Runtime)
	// endpoint identifies the (channel, direction) pair this clause
	// targets, for sibling grouping.
	endpoint() endpointKey
}

// sendClause is both the Clause implementation used by Choose and the
// plain queued-sender record Chan[T].Send and Chan[T].commitRecv
// operate on directly.
type sendClause[T any] struct {
	ch    *Chan[T]
	value T
	qlink Links[*sendClause[T]]
	owner *task
	jump  int
}

func (c *sendClause[T]) link() *Links[*sendClause[T]] { return &c.qlink }

func (c *sendClause[T]) scan(rt *Runtime) bool { _ = rt; return c.ch.sendReady() }
func (c *sendClause[T]) fire(rt *Runtime)      { c.ch.commitSend(rt, c.value) }
func (c *sendClause[T]) wait(rt *Runtime, owner *task, jump int) {
	_ = rt
	c.owner = owner
	c.jump = jump
	c.ch.senderQ.PushBack(c)
}
func (c *sendClause[T]) unlink(rt *Runtime) {
	_ = rt
	if Linked[*sendClause[T]](c) {
		c.ch.senderQ.Erase(c)
	}
}
func (c *sendClause[T]) endpoint() endpointKey { return endpointKey{ch: c.ch, dir: false} }

// recvClause is both the Clause implementation used by Choose and the
// plain queued-receiver record Chan[T].Recv and Chan[T].commitSend/
// Done operate on directly.
type recvClause[T any] struct {
	ch    *Chan[T]
	dest  *T
	qlink Links[*recvClause[T]]
	owner *task
	jump  int
}

func (c *recvClause[T]) link() *Links[*recvClause[T]] { return &c.qlink }

func (c *recvClause[T]) scan(rt *Runtime) bool { _ = rt; return c.ch.recvReady() }
func (c *recvClause[T]) fire(rt *Runtime)      { *c.dest = c.ch.commitRecv(rt) }
func (c *recvClause[T]) wait(rt *Runtime, owner *task, jump int) {
	_ = rt
	c.owner = owner
	c.jump = jump
	c.ch.receiverQ.PushBack(c)
}
func (c *recvClause[T]) unlink(rt *Runtime) {
	_ = rt
	if Linked[*recvClause[T]](c) {
		c.ch.receiverQ.Erase(c)
	}
}
func (c *recvClause[T]) endpoint() endpointKey { return endpointKey{ch: c.ch, dir: true} }

// Send builds a Choose clause that sends v on ch.
func Send[T any](ch *Chan[T], v T) Clause {
	return &sendClause[T]{ch: ch, value: v}
}

// Recv builds a Choose clause that receives from ch into *dest.
func Recv[T any](ch *Chan[T], dest *T) Clause {
	return &recvClause[T]{ch: ch, dest: dest}
}

// chooseState tracks the clauses actually linked into endpoint queues
// during one Choose call, so cleanup unlinks exactly those (spec.md
// §4.2 step 3). Held on the task so membership is inspectable the
// same way the ready queue, timer list, and poller registrations are.
type chooseState struct {
	linked        []Clause
	deadlineTimer *timerEntry
}

// Choose implements spec.md §4.2's three-pass multi-way select:
// scan every clause for immediate availability, commit a uniformly
// random one if any are ready (or fire otherwise, or block), then
// clean up on resume. Specifying both WithOtherwise and WithDeadline
// is a contract violation.
func Choose(rt *Runtime, clauses []Clause, opts ...ChooseOption) int {
	cfg := resolveChooseOptions(opts)
	if cfg.otherwise && cfg.hasDeadline {
		panicViolation(ViolationChooseTwoTerminal, "choose: otherwise and deadline both specified")
	}

	n := len(clauses)
	avail := make([]int, 0, n)
	for i, cl := range clauses {
		if cl.scan(rt) {
			avail = append(avail, i)
		}
	}

	if len(avail) > 0 {
		pick := avail[rand.N(len(avail))]
		clauses[pick].fire(rt)
		return pick
	}

	if cfg.otherwise {
		return -1
	}

	// Blocking path. Group clauses by endpoint and, per spec.md
	// §4.2's "Fairness among identical clauses", pre-commit a single
	// uniformly random sibling per endpoint to actually link; the
	// others are left unlinked (skipped entirely, per the scan-pass
	// optimisation note) since only one clause per endpoint could
	// ever be woken by a single peer operation anyway.
	groups := make(map[endpointKey][]int, n)
	for i, cl := range clauses {
		k := cl.endpoint()
		groups[k] = append(groups[k], i)
	}
	chosen := make([]bool, n)
	for _, idxs := range groups {
		chosen[idxs[rand.N(len(idxs))]] = true
	}

	cs := &chooseState{}
	rt.current.choose = cs
	for i, cl := range clauses {
		if chosen[i] {
			cl.wait(rt, rt.current, i)
			cs.linked = append(cs.linked, cl)
		}
	}
	if cfg.hasDeadline {
		cs.deadlineTimer = rt.scheduleTimer(cfg.deadline, rt.current)
	}

	rt.current.state = taskInChannelOp
	result := rt.suspend()

	for _, cl := range cs.linked {
		cl.unlink(rt)
	}
	if cs.deadlineTimer != nil && result != -1 {
		rt.cancelTimer(cs.deadlineTimer)
	}
	rt.current.choose = nil
	return result
}
