//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package mill

import (
	"time"

	"golang.org/x/sys/unix"
)

// StreamConn is the buffered byte-stream socket spec.md §4.5
// describes only to fix the scheduler/poller contract it exercises,
// not as a protocol implementation: an fd, an input buffer with a
// read cursor, and an output buffer flushed through FDWait on EAGAIN.
// Grounded on the teacher's fd_unix.go raw unix.Read/unix.Write
// wrappers combined with Runtime.FDWait.
type StreamConn struct {
	rt *Runtime
	fd int

	in      []byte
	inFirst int

	out []byte
}

// NewStreamConn wraps fd (already non-blocking, already connected) as
// a buffered stream. bufSize bounds both the input and output
// buffers.
func NewStreamConn(rt *Runtime, fd int, bufSize int) *StreamConn {
	if bufSize <= 0 {
		bufSize = 4096
	}
	return &StreamConn{rt: rt, fd: fd, in: make([]byte, 0, bufSize), out: make([]byte, 0, bufSize)}
}

// Send buffers p if it fits, otherwise flushes first. Returns
// ErrTimedOut (with nothing further buffered) if deadline passes
// mid-flush, ErrConnReset if the peer closed its end.
func (s *StreamConn) Send(p []byte, deadline time.Time) error {
	if len(s.out)+len(p) > cap(s.out) {
		if err := s.Flush(deadline); err != nil {
			return err
		}
	}
	if len(p) >= cap(s.out) {
		return s.write(p, deadline)
	}
	s.out = append(s.out, p...)
	return nil
}

// Flush drains the output buffer to the fd.
func (s *StreamConn) Flush(deadline time.Time) error {
	if len(s.out) == 0 {
		return nil
	}
	if err := s.write(s.out, deadline); err != nil {
		return err
	}
	s.out = s.out[:0]
	return nil
}

// write loops unix.Write over buf, calling FDWait(OUT) on EAGAIN,
// until the whole buffer is sent or deadline passes.
func (s *StreamConn) write(buf []byte, deadline time.Time) error {
	for len(buf) > 0 {
		n, err := unix.Write(s.fd, buf)
		if n > 0 {
			buf = buf[n:]
			continue
		}
		if err == unix.EAGAIN {
			if _, werr := s.rt.FDWait(s.fd, EventWrite, deadline); werr != nil {
				return werr
			}
			continue
		}
		if err == unix.EPIPE || err == unix.ECONNRESET {
			return ErrConnReset
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Recv copies up to len(p) bytes into p, refilling the input buffer
// from the fd as needed. Returns the slice of p actually filled.
func (s *StreamConn) Recv(p []byte, deadline time.Time) ([]byte, error) {
	n := 0
	for n < len(p) {
		if s.inFirst >= len(s.in) {
			if err := s.refill(deadline); err != nil {
				return p[:n], err
			}
		}
		c := copy(p[n:], s.in[s.inFirst:])
		s.inFirst += c
		n += c
		if c == 0 {
			break
		}
	}
	return p[:n], nil
}

// RecvUntil reads byte-by-byte until any byte in delims is seen
// (inclusive), or deadline passes. Partial data is returned alongside
// ErrTimedOut on timeout.
func (s *StreamConn) RecvUntil(delims []byte, deadline time.Time) ([]byte, error) {
	var out []byte
	var b [1]byte
	for {
		got, err := s.Recv(b[:], deadline)
		if len(got) == 1 {
			out = append(out, got[0])
			for _, d := range delims {
				if got[0] == d {
					return out, nil
				}
			}
		}
		if err != nil {
			return out, err
		}
	}
}

func (s *StreamConn) refill(deadline time.Time) error {
	s.in = s.in[:cap(s.in)]
	for {
		n, err := unix.Read(s.fd, s.in)
		if n > 0 {
			s.in = s.in[:n]
			s.inFirst = 0
			return nil
		}
		if n == 0 && err == nil {
			return ErrConnReset
		}
		if err == unix.EAGAIN {
			if _, werr := s.rt.FDWait(s.fd, EventRead, deadline); werr != nil {
				return werr
			}
			continue
		}
		return err
	}
}

// Close closes the underlying fd, first calling FDClean per spec.md
// §4.1's "must be called before close" contract.
func (s *StreamConn) Close() error {
	s.rt.FDClean(s.fd)
	return unix.Close(s.fd)
}
