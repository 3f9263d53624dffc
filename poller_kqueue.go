//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package mill

import (
	"golang.org/x/sys/unix"
)

// kqueuePoller is the BSD/Darwin backend, adapted from a kqueue-based
// fd table down to tracking just the currently-armed event set per fd
// (kqueue arms read/write readiness as separate filters, so
// add/modify/remove each diff against what was armed before).
type kqueuePoller struct {
	kq       int
	armed    map[int]IOEvents
	eventBuf []unix.Kevent_t
}

func newPlatformPoller() (poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &kqueuePoller{
		kq:       kq,
		armed:    make(map[int]IOEvents),
		eventBuf: make([]unix.Kevent_t, 128),
	}, nil
}

func eventsToKevents(fd int, events IOEvents, flags uint16) []unix.Kevent_t {
	var out []unix.Kevent_t
	if events&EventRead != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return out
}

func (p *kqueuePoller) Add(fd int, events IOEvents) error {
	if _, ok := p.armed[fd]; ok {
		panicViolation(ViolationDoubleFDWaiter, "fd already registered with poller")
	}
	kevs := eventsToKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE)
	if len(kevs) > 0 {
		if _, err := unix.Kevent(p.kq, kevs, nil, nil); err != nil {
			return err
		}
	}
	p.armed[fd] = events
	return nil
}

func (p *kqueuePoller) Modify(fd int, events IOEvents) error {
	old := p.armed[fd]
	if removed := old &^ events; removed != 0 {
		kevs := eventsToKevents(fd, removed, unix.EV_DELETE)
		if len(kevs) > 0 {
			_, _ = unix.Kevent(p.kq, kevs, nil, nil)
		}
	}
	if added := events &^ old; added != 0 {
		kevs := eventsToKevents(fd, added, unix.EV_ADD|unix.EV_ENABLE)
		if len(kevs) > 0 {
			if _, err := unix.Kevent(p.kq, kevs, nil, nil); err != nil {
				return err
			}
		}
	}
	p.armed[fd] = events
	return nil
}

func (p *kqueuePoller) Remove(fd int) error {
	events, ok := p.armed[fd]
	if !ok {
		return nil
	}
	delete(p.armed, fd)
	kevs := eventsToKevents(fd, events, unix.EV_DELETE)
	if len(kevs) > 0 {
		_, _ = unix.Kevent(p.kq, kevs, nil, nil)
	}
	return nil
}

func (p *kqueuePoller) Wait(timeoutMs int) ([]readyFD, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		ts = &unix.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64(timeoutMs%1000) * 1000000,
		}
	}
	n, err := unix.Kevent(p.kq, nil, p.eventBuf, ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	byFD := make(map[int]IOEvents, n)
	for i := 0; i < n; i++ {
		ev := p.eventBuf[i]
		fd := int(ev.Ident)
		var e IOEvents
		switch ev.Filter {
		case unix.EVFILT_READ:
			e = EventRead
		case unix.EVFILT_WRITE:
			e = EventWrite
		}
		if ev.Flags&unix.EV_ERROR != 0 {
			e |= EventError
		}
		if ev.Flags&unix.EV_EOF != 0 {
			e |= EventHangup
		}
		byFD[fd] |= e
	}
	out := make([]readyFD, 0, len(byFD))
	for fd, e := range byFD {
		out = append(out, readyFD{fd: fd, events: e})
	}
	return out, nil
}

func (p *kqueuePoller) Close() error {
	return unix.Close(p.kq)
}
