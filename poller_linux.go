//go:build linux

package mill

import (
	"golang.org/x/sys/unix"
)

// epollPoller is the Linux backend, adapted from an epoll-based
// direct-fd-indexed design down to the registration bookkeeping a
// single-threaded scheduler actually needs: one map of fd to its
// currently-registered event set, used to reject a second Add of the
// same fd and to make Remove a no-op for an fd that was never added.
// The caller picks Add (EPOLL_CTL_ADD) or Modify (EPOLL_CTL_MOD).
type epollPoller struct {
	epfd     int
	events   map[int]IOEvents
	eventBuf []unix.EpollEvent
}

func newPlatformPoller() (poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{
		epfd:     epfd,
		events:   make(map[int]IOEvents),
		eventBuf: make([]unix.EpollEvent, 128),
	}, nil
}

func (p *epollPoller) Add(fd int, events IOEvents) error {
	if _, ok := p.events[fd]; ok {
		panicViolation(ViolationDoubleFDWaiter, "fd already registered with poller")
	}
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return err
	}
	p.events[fd] = events
	return nil
}

func (p *epollPoller) Modify(fd int, events IOEvents) error {
	ev := &unix.EpollEvent{Events: eventsToEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return err
	}
	p.events[fd] = events
	return nil
}

func (p *epollPoller) Remove(fd int) error {
	if _, ok := p.events[fd]; !ok {
		return nil
	}
	delete(p.events, fd)
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(timeoutMs int) ([]readyFD, error) {
	n, err := unix.EpollWait(p.epfd, p.eventBuf, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	out := make([]readyFD, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, readyFD{
			fd:     int(p.eventBuf[i].Fd),
			events: epollToEvents(p.eventBuf[i].Events),
		})
	}
	return out, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func eventsToEpoll(events IOEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func epollToEvents(e uint32) IOEvents {
	var events IOEvents
	if e&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if e&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if e&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
