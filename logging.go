package mill

import (
	"sync"

	"github.com/joeycumines/logiface"
)

// globalLogger is the package-level structured logger slot the
// package logs through: the scheduler logs poller Wait failures and
// panics that escape a task body; the channel layer does not log.
// Grounded on
// the teacher's SetStructuredLogger/getGlobalLogger pattern
// (logging.go), but wired to the real logiface dependency instead of
// a hand-rolled Logger interface: a Runtime is a leaf of whatever
// logging backend the embedding program already uses (zerolog, slog,
// stumpy, ...), not a place to reinvent one.
var globalLogger struct {
	sync.RWMutex
	l *logiface.Logger[logiface.Event]
}

func init() {
	// The zero-configuration default has no writer/factory, so
	// logiface.Logger.canWrite is false and every Build call returns
	// nil; every chained method on a nil *Builder is itself a no-op.
	// This makes an unconfigured mill package silent by default
	// without special-casing nil checks at every call site.
	globalLogger.l = logiface.New[logiface.Event]()
}

// SetLogger installs l as the package-wide logger used by every
// Runtime. Pass a logger built from a concrete logiface backend (e.g.
// logiface-stumpy, logiface-zerolog) to enable output; the zero value
// import-time default discards everything.
func SetLogger(l *logiface.Logger[logiface.Event]) {
	globalLogger.Lock()
	defer globalLogger.Unlock()
	globalLogger.l = l
}

func logger() *logiface.Logger[logiface.Event] {
	globalLogger.RLock()
	defer globalLogger.RUnlock()
	return globalLogger.l
}
