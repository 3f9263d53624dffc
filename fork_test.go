//go:build linux && amd64

package mill

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestFork exercises the parent side of Runtime.Fork's contract: the
// call returns a positive child pid and the parent's own scheduler
// state is left completely untouched. The child side is deliberately
// not checked: only the calling OS thread survives into a forked Go
// process (see fork.go's doc comment), so once Fork's child branch has
// re-initialised the runtime and returned, the child below exits at
// once through a raw exit syscall and does nothing more.
func TestFork(t *testing.T) {
	if os.Getenv("MILL_ENABLE_FORK_TEST") == "" {
		t.Skip("fork(2) from a multi-threaded Go process is inherently hazardous; set MILL_ENABLE_FORK_TEST=1 to opt in")
	}

	rt, err := New()
	require.NoError(t, err)
	defer rt.Close()

	before := rt.taskCount
	pid, err := rt.Fork()
	require.NoError(t, err)
	if pid == 0 {
		unix.RawSyscall(unix.SYS_EXIT, 0, 0, 0)
		return
	}

	require.Greater(t, pid, 0)
	require.Equal(t, before, rt.taskCount)

	var ws unix.WaitStatus
	_, err = unix.Wait4(pid, &ws, 0, nil)
	require.NoError(t, err)
}
