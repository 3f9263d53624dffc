package mill

import (
	"sync"
	"time"
)

// defaultRuntime backs the free functions below: a lazily-constructed,
// process-wide Runtime. Grounded on spec.md §6's reference ABI, which
// presents spawn/yield/sleep/fd_wait/fd_clean/now/task_local_get/
// task_local_set/prepare as free functions against an implicit single
// runtime rather than an explicit receiver. DESIGN.md's "Global state"
// Open Question resolves in favour of `*Runtime` everywhere; this
// gives that implicit-single-runtime ABI a concrete home for the
// common single-runtime case without making it the only way to use
// the package.
var (
	defaultOnce sync.Once
	defaultRT   *Runtime
)

// Default returns the process-wide default Runtime, constructing it
// (with New()'s defaults) on first use. It panics if construction
// fails, since the zero-argument free functions below have no other
// way to surface that error without abandoning spec.md §6's ABI shape.
func Default() *Runtime {
	defaultOnce.Do(func() {
		rt, err := New()
		if err != nil {
			panic(err)
		}
		defaultRT = rt
	})
	return defaultRT
}

// Spawn is Default().Spawn.
func Spawn(fn func()) *task { return Default().Spawn(fn) }

// Yield is Default().Yield.
func Yield() { Default().Yield() }

// Sleep is Default().Sleep.
func Sleep(deadline time.Time) { Default().Sleep(deadline) }

// FDWait is Default().FDWait.
func FDWait(fd int, events IOEvents, deadline time.Time) (IOEvents, error) {
	return Default().FDWait(fd, events, deadline)
}

// FDClean is Default().FDClean.
func FDClean(fd int) { Default().FDClean(fd) }

// Now is Default().Now.
func Now() time.Time { return Default().Now() }

// TaskLocalGet is Default().TaskLocalGet.
func TaskLocalGet() any { return Default().TaskLocalGet() }

// TaskLocalSet is Default().TaskLocalSet.
func TaskLocalSet(v any) { Default().TaskLocalSet(v) }

// Prepare is Default().Prepare.
func Prepare(count, stackSize int) error { return Default().Prepare(count, stackSize) }
