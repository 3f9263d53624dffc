//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package mill

import (
	"golang.org/x/sys/unix"
)

// wakeupPipe lets Wake be called safely from any goroutine while the
// Runtime's own goroutine is blocked inside poller.Wait: the writer
// just needs a byte delivered through the kernel, so a self-pipe is
// the only part of the runtime that must tolerate concurrent access.
// Grounded on the same createWakeFd/drainWakeUpPipe shape used for a
// loop's wake-up mechanism, generalized to a single pipe-based
// implementation shared by the Linux and Darwin/BSD builds rather than
// splitting an eventfd fast path out per OS.
type wakeupPipe struct {
	r, w int
}

func newWakeupPipe() (*wakeupPipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &wakeupPipe{r: fds[0], w: fds[1]}, nil
}

// signal may be called from any goroutine.
func (p *wakeupPipe) signal() {
	var b [1]byte
	_, _ = unix.Write(p.w, b[:])
}

// drain must only be called by the task holding the baton, after the
// poller reports the read end readable.
func (p *wakeupPipe) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *wakeupPipe) close() error {
	_ = unix.Close(p.w)
	return unix.Close(p.r)
}
