//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package mill

import (
	"time"

	"golang.org/x/sys/unix"
)

// DatagramConn is the stateless counterpart to StreamConn spec.md
// §4.5 names: one Send/Recv call maps to exactly one syscall, under
// the same FDWait(EAGAIN) contract. Grounded on the same fd_unix.go
// read/write primitives StreamConn uses.
type DatagramConn struct {
	rt *Runtime
	fd int
}

// NewDatagramConn wraps an already-bound, non-blocking datagram fd.
func NewDatagramConn(rt *Runtime, fd int) *DatagramConn {
	return &DatagramConn{rt: rt, fd: fd}
}

// Send writes p as a single datagram, retrying on EAGAIN via FDWait
// until deadline.
func (d *DatagramConn) Send(p []byte, deadline time.Time) error {
	for {
		_, err := unix.Write(d.fd, p)
		if err == nil {
			return nil
		}
		if err == unix.EAGAIN {
			if _, werr := d.rt.FDWait(d.fd, EventWrite, deadline); werr != nil {
				return werr
			}
			continue
		}
		if err == unix.ECONNRESET {
			return ErrConnReset
		}
		return err
	}
}

// Recv reads a single datagram into p, retrying on EAGAIN via FDWait
// until deadline. Returns the slice of p actually filled.
func (d *DatagramConn) Recv(p []byte, deadline time.Time) ([]byte, error) {
	for {
		n, err := unix.Read(d.fd, p)
		if err == nil {
			return p[:n], nil
		}
		if err == unix.EAGAIN {
			if _, werr := d.rt.FDWait(d.fd, EventRead, deadline); werr != nil {
				return nil, werr
			}
			continue
		}
		return nil, err
	}
}

// Close closes the underlying fd, first calling FDClean per spec.md
// §4.1's "must be called before close" contract.
func (d *DatagramConn) Close() error {
	d.rt.FDClean(d.fd)
	return unix.Close(d.fd)
}
