//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package mill

import (
	"golang.org/x/sys/unix"
)

// pollPoller is the portable poll(2) fallback for Unix targets with
// neither epoll nor kqueue. It rebuilds its unix.PollFd slice from a
// plain map on every Wait, trading a little allocation for simplicity
// since this backend only exists to keep non-Linux/BSD Unixes working.
type pollPoller struct {
	events map[int]IOEvents
}

func newPlatformPoller() (poller, error) {
	return &pollPoller{events: make(map[int]IOEvents)}, nil
}

func (p *pollPoller) Add(fd int, events IOEvents) error {
	if _, ok := p.events[fd]; ok {
		panicViolation(ViolationDoubleFDWaiter, "fd already registered with poller")
	}
	p.events[fd] = events
	return nil
}

func (p *pollPoller) Modify(fd int, events IOEvents) error {
	p.events[fd] = events
	return nil
}

func (p *pollPoller) Remove(fd int) error {
	delete(p.events, fd)
	return nil
}

func eventsToPoll(events IOEvents) int16 {
	var e int16
	if events&EventRead != 0 {
		e |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.POLLOUT
	}
	return e
}

func pollToEvents(e int16) IOEvents {
	var events IOEvents
	if e&unix.POLLIN != 0 {
		events |= EventRead
	}
	if e&unix.POLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.POLLERR != 0 {
		events |= EventError
	}
	if e&unix.POLLHUP != 0 {
		events |= EventHangup
	}
	return events
}

func (p *pollPoller) Wait(timeoutMs int) ([]readyFD, error) {
	fds := make([]unix.PollFd, 0, len(p.events))
	order := make([]int, 0, len(p.events))
	for fd, events := range p.events {
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: eventsToPoll(events)})
		order = append(order, fd)
	}
	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]readyFD, 0, n)
	for i, pfd := range fds {
		if pfd.Revents != 0 {
			out = append(out, readyFD{fd: order[i], events: pollToEvents(pfd.Revents)})
		}
	}
	return out, nil
}

func (p *pollPoller) Close() error {
	return nil
}
