package mill

import "time"

// runtimeOptions holds every knob a Runtime is configured with,
// resolved once at New time. Grounded on the teacher's
// LoopOption/loopOptionImpl/resolveLoopOptions pattern (options.go):
// an unexported interface with an unexported apply method, a private
// options struct, and one With... constructor per knob.
type runtimeOptions struct {
	poolSize   int
	tickPeriod int
}

func defaultRuntimeOptions() runtimeOptions {
	return runtimeOptions{
		poolSize:   64,
		tickPeriod: 97,
	}
}

// RuntimeOption configures a Runtime at construction time.
type RuntimeOption interface {
	apply(*runtimeOptions)
}

type runtimeOptionFunc func(*runtimeOptions)

func (f runtimeOptionFunc) apply(o *runtimeOptions) { f(o) }

// WithPoolSize bounds the goroutine pool workerpool.go recycles
// exited tasks' goroutines into (the Go-idiomatic analogue of
// spec.md's stack-cache size).
func WithPoolSize(n int) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) {
		if n < 0 {
			n = 0
		}
		o.poolSize = n
	})
}

// WithTickPeriod overrides the number of suspensions between forced
// non-blocking polls (spec.md §4.1's "internal periodic tick"). Must
// be in [16, 1024] per spec.md §9; out-of-range values are clamped.
func WithTickPeriod(n int) RuntimeOption {
	return runtimeOptionFunc(func(o *runtimeOptions) {
		if n < 16 {
			n = 16
		}
		if n > 1024 {
			n = 1024
		}
		o.tickPeriod = n
	})
}

func resolveRuntimeOptions(options []RuntimeOption) runtimeOptions {
	o := defaultRuntimeOptions()
	for _, opt := range options {
		opt.apply(&o)
	}
	return o
}

// chooseConfig holds the resolved terminal-branch configuration for
// one Choose call.
type chooseConfig struct {
	otherwise   bool
	hasDeadline bool
	deadline    time.Time
}

// ChooseOption configures the terminal branch of a Choose call.
// Specifying both WithOtherwise and WithDeadline is a contract
// violation (spec.md §4.2: "Only one of otherwise and deadline may be
// specified; both is a panic").
type ChooseOption interface {
	apply(*chooseConfig)
}

type chooseOptionFunc func(*chooseConfig)

func (f chooseOptionFunc) apply(c *chooseConfig) { f(c) }

// WithOtherwise makes Choose return -1 immediately when no clause is
// immediately available, instead of blocking.
func WithOtherwise() ChooseOption {
	return chooseOptionFunc(func(c *chooseConfig) {
		c.otherwise = true
	})
}

// WithDeadline arms a timer so Choose gives up and returns -1 at or
// after when if no clause fires first.
func WithDeadline(when time.Time) ChooseOption {
	return chooseOptionFunc(func(c *chooseConfig) {
		c.hasDeadline = true
		c.deadline = when
	})
}

func resolveChooseOptions(options []ChooseOption) chooseConfig {
	var c chooseConfig
	for _, opt := range options {
		opt.apply(&c)
	}
	return c
}
