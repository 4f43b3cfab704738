package coro

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// rootEntry is the Manager's bookkeeping record for one root coroutine,
// keyed by its id. It is kept alive after the coroutine's own goroutine has
// exited so TakeResult can still answer, right up until Release.
type rootEntry struct {
	base       *coroBase
	takeResult func() (any, error, bool) // closes over the concrete *Coroutine[T]
	released   bool // set by release(); erasure is deferred while base.state is not yet Terminal (I3/I4)
}

// Manager is the coroutine scheduler: it owns the clock registry, the
// per-(phase, clock) time queues, and the table of root coroutines,
// The zero Manager is not usable; construct one with NewManager.
type Manager struct {
	mu      sync.Mutex
	clocks  map[ClockKind]ClockFunc
	queues  map[queueKey]*timeQueue
	entries map[uint64]*rootEntry
	nextID  uint64
	alive   *bool

	postbox        []uint64 // finished root ids, drained between queue pops
	onFinishedRoot func(id uint64, st State, err error)

	logger  Logger
	metrics *Metrics
}

// NewManager constructs a Manager with the default monotonic clock already
// registered under DefaultClock.
func NewManager(opts ...Option) *Manager {
	alive := new(bool)
	*alive = true
	mgr := &Manager{
		clocks:  map[ClockKind]ClockFunc{DefaultClock: monotonicClock()},
		queues:  make(map[queueKey]*timeQueue),
		entries: make(map[uint64]*rootEntry),
		alive:   alive,
		logger:  getGlobalLogger(),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// Metrics returns the Prometheus instrumentation installed via WithMetrics,
// or nil if none was installed.
func (mgr *Manager) Metrics() *Metrics {
	return mgr.metrics
}

// RegisterClock installs fn as the ClockFunc for kind. Registering
// DefaultClock overrides the built-in monotonic clock (used by tests that
// need a deterministic, host-advanced clock instead of wall time).
func (mgr *Manager) RegisterClock(kind ClockKind, fn ClockFunc) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if !*mgr.alive {
		return ErrManagerClosed
	}
	mgr.clocks[kind] = fn
	return nil
}

// Start launches fn as a new root coroutine.
// It is a package-level function, not a method, because Go methods cannot
// carry their own type parameters beyond the receiver's.
func Start[T any](mgr *Manager, fn func(*Control) (T, error)) (Handle[T], error) {
	mgr.mu.Lock()
	if !*mgr.alive {
		mgr.mu.Unlock()
		return Handle[T]{}, ErrManagerClosed
	}
	mgr.nextID++
	id := mgr.nextID
	mgr.mu.Unlock()

	co := newCoroutine(mgr, fn)
	co.id = id
	co.parent = mgr
	mgr.metrics.observeRootStarted()

	entry := &rootEntry{
		base: &co.coroBase,
		takeResult: func() (any, error, bool) {
			if !co.state.Terminal() || co.state == Stopped {
				return nil, nil, false
			}
			return co.result, co.err, true
		},
	}

	mgr.mu.Lock()
	mgr.entries[id] = entry
	mgr.mu.Unlock()

	sig := co.coroBase.start()
	if !sig.suspended {
		mgr.mu.Lock()
		mgr.onChildDone(&co.coroBase)
		mgr.drainPostboxLocked()
		mgr.mu.Unlock()
	}

	return Handle[T]{mgr: mgr, id: id, alive: mgr.alive}, nil
}

// onChildDone is the Manager's parentAwaiter implementation: every root's
// ultimate parent is the Manager itself. It never resumes another
// coroutine (a root's completion has no continuation to cascade into) —
// it only records the id for deferred bookkeeping, performed by
// drainPostboxLocked between queue pops, never inline here.
func (mgr *Manager) onChildDone(child *coroBase) *coroBase {
	if child.id != 0 {
		mgr.postbox = append(mgr.postbox, child.id)
	}
	return nil
}

// drainPostboxLocked runs the deferred per-root finish bookkeeping —
// logging, metrics, and the optional onFinishedRoot hook — for every id
// recorded by onChildDone since the last drain. Must be called with mu
// held; none of it may call back into the Manager.
func (mgr *Manager) drainPostboxLocked() {
	if len(mgr.postbox) == 0 {
		return
	}
	ids := mgr.postbox
	mgr.postbox = nil
	for _, id := range ids {
		entry, ok := mgr.entries[id]
		if !ok {
			continue
		}
		_, err, _ := entry.takeResult()
		st := entry.base.state
		mgr.metrics.observeRootFinished(st)
		switch {
		case st == Failed && isPanicError(err):
			mgr.logger.LogCoroutinePanicked(id, &CoroutineError{ID: id, Cause: err})
		case st == Failed:
			mgr.logger.LogCoroutineFailed(id, &CoroutineError{ID: id, Cause: err})
		case st == Succeeded:
			mgr.logger.LogCoroutineSucceeded(id)
		}
		if mgr.onFinishedRoot != nil {
			mgr.onFinishedRoot(id, st, err)
		}
		if entry.released {
			delete(mgr.entries, id)
		}
	}
}

func isPanicError(err error) bool {
	_, ok := err.(*PanicError)
	return ok
}

// continueTurn drives cur's turn forward: wakes its blocked goroutine,
// waits for its next announcement, and — if it finished rather than
// suspended again — walks the parent-awaiter chain, resuming each
// returned continuation in turn until one suspends or the chain bottoms
// out at the Manager (a noop continuation).
func (mgr *Manager) continueTurn(cur *coroBase) {
	for {
		cur.resumeCh <- struct{}{}
		sig := <-cur.doneCh
		if sig.suspended {
			return
		}
		next := cur.parent.onChildDone(cur)
		if next == nil {
			return
		}
		cur = next
	}
}

// Update drains every Wait scheduled against (phase, clock) whose deadline
// has arrived, in deterministic order. Wait calls made by a
// coroutine resumed during this very call (including Wait(0, ...) against
// this same queue, by the generation-counter rule in queue.go) are handled
// according to the same-pass rules documented on timeQueue.
func (mgr *Manager) Update(phase Phase, clock ClockKind) error {
	mgr.mu.Lock()
	if !*mgr.alive {
		mgr.mu.Unlock()
		return ErrManagerClosed
	}
	clockFn, ok := mgr.clocks[clock]
	if !ok {
		mgr.mu.Unlock()
		return ErrUnknownClock
	}
	now := clockFn()
	q, ok := mgr.queues[queueKey{phase, clock}]
	if !ok {
		mgr.mu.Unlock()
		return nil
	}
	q.setupDrain(now)
	mgr.mu.Unlock()

	for {
		mgr.mu.Lock()
		if !q.hasReady() {
			mgr.drainPostboxLocked()
			mgr.mu.Unlock()
			break
		}
		e := q.popReady()
		owner := e.rec.owner
		e.rec.cursor = nil
		e.rec.queue = nil
		mgr.logger.LogWaitFired(owner.id, phase, clock)
		mgr.drainPostboxLocked()
		mgr.mu.Unlock()

		start := time.Now()
		mgr.continueTurn(owner)
		mgr.metrics.observeResumption(time.Since(start).Seconds())
	}
	mgr.mu.Lock()
	mgr.metrics.setQueueDepth(phase, clock, q.len())
	mgr.mu.Unlock()
	return nil
}

// state returns a root's current State.
func (mgr *Manager) state(id uint64) (State, bool) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	entry, ok := mgr.entries[id]
	if !ok {
		return Stopped, false
	}
	return entry.base.state, true
}

// takeResult returns a root's result once it has Succeeded or Failed. It
// does not consume it; Handle.TakeResult enforces the one-shot take.
func (mgr *Manager) takeResult(id uint64) (any, error, bool) {
	mgr.mu.Lock()
	entry, ok := mgr.entries[id]
	mgr.mu.Unlock()
	if !ok {
		return nil, nil, false
	}
	return entry.takeResult()
}

// stop cascades a cancellation into a root, then runs the same deferred
// finish bookkeeping a root that finished on its own gets (which also
// erases the entry if it was already released).
func (mgr *Manager) stop(id uint64) {
	mgr.mu.Lock()
	entry, ok := mgr.entries[id]
	wasTerminal := ok && entry.base.state.Terminal()
	mgr.mu.Unlock()
	if !ok || wasTerminal {
		return
	}
	entry.base.stopCascade()
	mgr.mu.Lock()
	mgr.postbox = append(mgr.postbox, id)
	mgr.drainPostboxLocked()
	mgr.mu.Unlock()
}

// release detaches a root from the Manager's table. It does not stop a
// still-running root; the caller is expected to Stop first if that's the
// intent, exactly like a scope-exit Release that doesn't imply
// cancellation. Per I3/I4: a root that is still Running when released is
// not physically erased yet (TakeResult/State must keep answering for it)
// — erasure is deferred to drainPostboxLocked, once its state goes
// Terminal.
func (mgr *Manager) release(id uint64) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	entry, ok := mgr.entries[id]
	if !ok {
		return
	}
	if entry.base.state.Terminal() {
		delete(mgr.entries, id)
		return
	}
	entry.released = true
}

// Close tears the Manager down in destruction order: stop every
// root (cascading into every child coroutine and every wait record they
// transitively own), then discard the time queues (expected empty
// afterward, since every wait was owned by a coroutine just destroyed),
// then flip the liveness witness so every outstanding Handle observes
// IsDown() == true.
func (mgr *Manager) Close() error {
	mgr.mu.Lock()
	if !*mgr.alive {
		mgr.mu.Unlock()
		return ErrManagerClosed
	}
	entries := mgr.entries
	mgr.mu.Unlock()

	for _, entry := range entries {
		entry.base.stopCascade()
	}

	mgr.mu.Lock()
	mgr.entries = make(map[uint64]*rootEntry)
	mgr.queues = make(map[queueKey]*timeQueue)
	mgr.postbox = nil
	*mgr.alive = false
	mgr.mu.Unlock()
	return nil
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithClock registers an additional ClockFunc for kind, equivalent to
// calling RegisterClock immediately after NewManager.
func WithClock(kind ClockKind, fn ClockFunc) Option {
	return func(mgr *Manager) {
		mgr.clocks[kind] = fn
	}
}

// WithFinishedRootHook installs a callback invoked once per root after it
// reaches a terminal state: between queue pops (or inside Start, for a root
// that finishes synchronously) when it finishes on its own, and inside the
// Stop call when it is stopped via its Handle — the deferred-destroy
// rule's load-bearing timing repurposed as a safe hook point for
// logging and metrics instead of literal frame destruction. Roots torn
// down by Close are not reported.
func WithFinishedRootHook(fn func(id uint64, st State, err error)) Option {
	return func(mgr *Manager) {
		mgr.onFinishedRoot = fn
	}
}

// WithLogger overrides the package-level Logger (installed via SetLogger,
// or NoOpLogger by default) for this Manager only.
func WithLogger(logger Logger) Option {
	return func(mgr *Manager) {
		if logger == nil {
			logger = NoOpLogger{}
		}
		mgr.logger = logger
	}
}

// WithMetrics installs Prometheus instrumentation for this Manager,
// constructed via NewMetrics against reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(mgr *Manager) {
		mgr.metrics = NewMetrics(reg)
	}
}
