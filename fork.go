//go:build linux && amd64

package mill

import (
	"golang.org/x/sys/unix"
)

// Fork implements spec.md §4.1/§4.4's fork(2) contract: the parent
// continues completely undisturbed; the child keeps only the calling
// task, with the ready queue, timer list, and fd registrations for
// every other task dropped, and the poller reinitialised against a
// fresh kernel handle.
//
// Grounded on the raw golang.org/x/sys/unix syscalls the poller
// backends (poller_linux.go) and wakeup_unix.go already depend on; no
// teacher file forks (go-eventloop never does), so this is written
// directly from spec.md §4.1's contract rather than adapted from an
// existing file.
//
// Fork is gated to linux/amd64, is heavily caveated, and should only
// ever be called from the pattern spec.md §5 describes: Prepare a
// pool, spawn a single listening task, then Fork before spawning any
// further I/O-heavy tasks. The Go runtime's own goroutine scheduler
// is not fork-safe in general — goroutines belonging to tasks other
// than the caller still occupy the child's address space (fork
// duplicates it wholesale) but will never run again, since only the
// calling OS thread survives into the child; this is why every
// non-running task's bookkeeping is dropped below rather than
// preserved, matching spec.md's explicit contract rather than trying
// to resurrect goroutines fork cannot actually continue scheduling.
func (rt *Runtime) Fork() (int, error) {
	pid, _, errno := unix.RawSyscall(unix.SYS_FORK, 0, 0, 0)
	if errno != 0 {
		return 0, errno
	}
	if pid != 0 {
		// Parent: unaffected.
		return int(pid), nil
	}

	// Child: drop every non-running task's bookkeeping.
	rt.ready = List[*task]{}
	rt.timers = nil
	rt.timerSeq = 0
	rt.fdRegs = make(map[int]*fdRegistration)
	rt.taskCount = 0
	rt.suspendTicks = 0

	if rt.pw != nil {
		_ = rt.pw.Close()
	}
	if rt.wake != nil {
		_ = rt.wake.close()
	}
	pw, err := newPoller()
	if err != nil {
		return 0, err
	}
	rt.pw = pw
	wake, err := newWakeupPipe()
	if err != nil {
		return 0, err
	}
	rt.wake = wake
	if err := rt.pw.Add(wake.r, EventRead); err != nil {
		return 0, err
	}

	rt.current.state = taskRunning
	return 0, nil
}

// Fork is Default().Fork.
func Fork() (int, error) { return Default().Fork() }
