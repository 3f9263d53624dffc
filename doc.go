// Package mill provides a single-threaded cooperative concurrency runtime:
// goroutine-backed lightweight tasks, typed channels with a multi-way
// select operator, and a non-blocking I/O layer (timers, fd readiness,
// buffered stream/datagram sockets).
//
// # Architecture
//
// A [Runtime] owns a ready queue, a timer heap, and an I/O [poller].
// Tasks are spawned with [Runtime.Spawn] and suspend themselves by
// calling [Runtime.Yield], [Runtime.Sleep], [Runtime.FDWait], or by
// blocking on a [Chan]. Exactly one task's code runs at any instant;
// suspension hands a "baton" to the next task the scheduler picks.
//
// # Platform support
//
// I/O polling uses platform-native mechanisms:
//   - Linux: epoll
//   - Darwin/BSD: kqueue
//   - other Unix targets: poll(2)
//
// # Thread safety
//
// A [Runtime] and the values it owns ([Chan], task-local storage) are
// not safe for concurrent use by more than one goroutine at a time by
// design: the whole point of the runtime is that only one task ever
// runs at once. The only exception is [Runtime.Wake], which may be
// called from any goroutine to nudge a sleeping runtime (e.g. from a
// signal handler or another OS thread) — the one operation whose
// cross-goroutine safety the runtime guarantees explicitly.
//
// # Usage
//
//	rt, err := mill.New()
//	ch := mill.MakeChan[int](rt, 0)
//	rt.Spawn(func() {
//		for i := 0; i < 3; i++ {
//			ch.Send(rt, i)
//		}
//	})
//	for i := 0; i < 3; i++ {
//		fmt.Println(ch.Recv(rt))
//	}
package mill
