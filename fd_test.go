//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package mill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	t.Cleanup(func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// TestFDWaitTimesOut is scenario S5 from spec.md §8: waiting for
// readability on an fd nobody ever writes to gives up after roughly
// the requested deadline.
func TestFDWaitTimesOut(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	a, _ := socketpair(t)
	start := time.Now()
	_, err = rt.FDWait(a, EventRead, start.Add(40*time.Millisecond))
	require.ErrorIs(t, err, ErrTimedOut)
	require.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

// TestFDWaitWakesOnWrite is scenario S6 from spec.md §8: a task blocked
// in FDWait resumes once a peer writes, well before any deadline.
func TestFDWaitWakesOnWrite(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	a, b := socketpair(t)

	rt.Spawn(func() {
		rt.Sleep(time.Now().Add(20 * time.Millisecond))
		_, werr := unix.Write(b, []byte("x"))
		require.NoError(t, werr)
	})

	start := time.Now()
	events, err := rt.FDWait(a, EventRead, start.Add(2*time.Second))
	require.NoError(t, err)
	require.NotZero(t, events&EventRead)
	require.Less(t, time.Since(start), time.Second)
}

// TestStreamConnRoundTrip exercises StreamConn's buffered send/recv
// path over a connected socketpair.
func TestStreamConnRoundTrip(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	a, b := socketpair(t)
	sa := NewStreamConn(rt, a, 256)
	sb := NewStreamConn(rt, b, 256)
	defer sa.Close()
	defer sb.Close()

	rt.Spawn(func() {
		require.NoError(t, sb.Send([]byte("hello\n"), time.Time{}))
		require.NoError(t, sb.Flush(time.Time{}))
	})

	got, err := sa.RecvUntil([]byte{'\n'}, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(got))
}

// TestDatagramConnRoundTrip exercises DatagramConn's single-syscall
// send/recv path over a connected datagram socketpair.
func TestDatagramConnRoundTrip(t *testing.T) {
	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))
	require.NoError(t, unix.SetNonblock(fds[1], true))
	da := NewDatagramConn(rt, fds[0])
	db := NewDatagramConn(rt, fds[1])
	defer da.Close()
	defer db.Close()

	rt.Spawn(func() {
		require.NoError(t, db.Send([]byte("ping"), time.Time{}))
	})

	buf := make([]byte, 16)
	got, err := da.Recv(buf, time.Now().Add(2*time.Second))
	require.NoError(t, err)
	require.Equal(t, "ping", string(got))
}
