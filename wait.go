package coro

// queueKey indexes the manager's table of time queues by (phase, clock).
type queueKey struct {
	phase Phase
	clock ClockKind
}

// Phase is a user-defined update kind (e.g. pre, main, post) selecting which
// family of time queues Update drains. Value 0 is always the default phase.
type Phase int

// DefaultPhase is the default phase. Any other Phase value can be used too;
// its queues are created on first use (see suspend).
const DefaultPhase Phase = 0

// waitRecord is a single suspension point: the (phase, clock, delay) target
// of one Wait call. It owns exactly one entry in exactly one timeQueue for
// as long as it is suspended.
type waitRecord struct {
	phase  Phase
	clock  ClockKind
	delay  float64
	owner  *coroBase // the coroutine Update resumes when this wait is popped
	queue  *timeQueue
	cursor *waitEntry // nil once resumed or cancelled
}

// suspend computes the wait's deadline and inserts it into the matching
// queue. The queue for a given (phase, clock) pair is created lazily on
// first use; phases are plain host-defined integers with no separate
// registration step, unlike clocks.
func (mgr *Manager) suspend(rec *waitRecord) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if _, ok := mgr.clocks[rec.clock]; !ok {
		return ErrUnknownClock
	}
	key := queueKey{rec.phase, rec.clock}
	q, ok := mgr.queues[key]
	if !ok {
		q = newTimeQueue()
		mgr.queues[key] = q
	}
	if rec.delay == 0 {
		rec.cursor = q.insert(0, true, rec)
	} else {
		clockFn, ok := mgr.clocks[rec.clock]
		if !ok {
			return ErrUnknownClock
		}
		rec.cursor = q.insert(clockFn()+rec.delay, false, rec)
	}
	rec.queue = q
	mgr.logger.LogWaitScheduled(rec.owner.id, rec.phase, rec.clock, rec.delay)
	mgr.metrics.observeWaitScheduled()
	return nil
}

// cancel removes rec from its queue without resuming it. Safe to call on an
// already-resumed or already-cancelled record.
func (rec *waitRecord) cancel() {
	if rec.queue == nil || rec.cursor == nil {
		return
	}
	rec.queue.remove(rec.cursor)
	rec.cursor = nil
	rec.queue = nil
	rec.owner.mgr.logger.LogWaitCanceled(rec.owner.id, rec.phase, rec.clock)
	rec.owner.mgr.metrics.observeWaitCanceled()
}
