// logging.go - structured logging for the coroutine scheduler.
//
// Package-level configuration, mirroring the rest of the scheduler's
// "install a global, override per test" style: call SetLogger once at
// startup (or leave it as NoOpLogger, the zero-overhead default) rather
// than threading a logger through every Manager constructor.

package coro

import (
	"sync/atomic"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logging interface for scheduler-internal
// events. Implementations must be safe for concurrent use; in practice the
// scheduler only ever calls one from the single goroutine driving
// Manager.Update at a time, but a host may share a Logger across multiple
// Managers.
type Logger interface {
	// LogWaitScheduled is called when a coroutine suspends on a Wait.
	LogWaitScheduled(id uint64, phase Phase, clock ClockKind, delay float64)
	// LogWaitFired is called when Manager.Update resumes a previously
	// scheduled Wait.
	LogWaitFired(id uint64, phase Phase, clock ClockKind)
	// LogWaitCanceled is called when a pending Wait is torn down by a
	// cancellation cascade without ever resuming.
	LogWaitCanceled(id uint64, phase Phase, clock ClockKind)
	// LogCoroutineSucceeded is called once, when a root coroutine reaches
	// the Succeeded state.
	LogCoroutineSucceeded(id uint64)
	// LogCoroutineFailed is called once, when a root coroutine reaches
	// the Failed state with a non-panic error.
	LogCoroutineFailed(id uint64, err error)
	// LogCoroutinePanicked is called once, when a root coroutine's body
	// panics and the panic is captured as a PanicError.
	LogCoroutinePanicked(id uint64, err error)
}

var globalLogger atomic.Pointer[Logger]

// SetLogger installs logger as the package-level Logger used by every
// Manager constructed afterwards that isn't given one explicitly via
// WithLogger; Managers that already exist keep the Logger they captured in
// NewManager. Passing nil restores NoOpLogger.
func SetLogger(logger Logger) {
	if logger == nil {
		logger = NoOpLogger{}
	}
	globalLogger.Store(&logger)
}

func getGlobalLogger() Logger {
	if p := globalLogger.Load(); p != nil {
		return *p
	}
	return NoOpLogger{}
}

// NoOpLogger discards every call; it's the default Logger, so that a host
// that never calls SetLogger pays no logging overhead at all.
type NoOpLogger struct{}

func (NoOpLogger) LogWaitScheduled(uint64, Phase, ClockKind, float64) {}
func (NoOpLogger) LogWaitFired(uint64, Phase, ClockKind)              {}
func (NoOpLogger) LogWaitCanceled(uint64, Phase, ClockKind)           {}
func (NoOpLogger) LogCoroutineSucceeded(uint64)                       {}
func (NoOpLogger) LogCoroutineFailed(uint64, error)                   {}
func (NoOpLogger) LogCoroutinePanicked(uint64, error)                 {}

// stumpyLogger backs Logger with github.com/joeycumines/logiface fronted by
// github.com/joeycumines/stumpy's zero-allocation JSON event encoder,
// rather than the hand-rolled LogEntry/DefaultLogger pair a stdlib-only
// scheduler would reach for.
type stumpyLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

// NewStumpyLogger constructs a Logger that writes structured JSON via
// stumpy, passing options straight through to stumpy.L.WithStumpy (e.g.
// stumpy.WithWriter to redirect output, stumpy.WithTimeField("") to
// suppress the timestamp field for deterministic test output).
func NewStumpyLogger(options ...stumpy.Option) Logger {
	return &stumpyLogger{
		l: stumpy.L.New(stumpy.L.WithStumpy(options...)),
	}
}

func (s *stumpyLogger) LogWaitScheduled(id uint64, phase Phase, clock ClockKind, delay float64) {
	s.l.Debug().
		Uint64(`id`, id).
		Int64(`phase`, int64(phase)).
		Int64(`clock`, int64(clock)).
		Float64(`delay`, delay).
		Log(`wait scheduled`)
}

func (s *stumpyLogger) LogWaitFired(id uint64, phase Phase, clock ClockKind) {
	s.l.Debug().
		Uint64(`id`, id).
		Int64(`phase`, int64(phase)).
		Int64(`clock`, int64(clock)).
		Log(`wait fired`)
}

func (s *stumpyLogger) LogWaitCanceled(id uint64, phase Phase, clock ClockKind) {
	s.l.Debug().
		Uint64(`id`, id).
		Int64(`phase`, int64(phase)).
		Int64(`clock`, int64(clock)).
		Log(`wait canceled`)
}

func (s *stumpyLogger) LogCoroutineSucceeded(id uint64) {
	s.l.Info().
		Uint64(`id`, id).
		Log(`coroutine succeeded`)
}

func (s *stumpyLogger) LogCoroutineFailed(id uint64, err error) {
	s.l.Err().
		Uint64(`id`, id).
		Err(err).
		Log(`coroutine failed`)
}

func (s *stumpyLogger) LogCoroutinePanicked(id uint64, err error) {
	s.l.Crit().
		Uint64(`id`, id).
		Err(err).
		Log(`coroutine panicked`)
}
