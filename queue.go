package coro

import "container/heap"

// waitEntry is one element of a timeQueue: a single pending Wait, ordered by
// deadline with FIFO tie-breaking. It is also the "cursor" handed back by
// insert, and is stable for the lifetime of the entry (remove is a no-op if
// the entry already left the queue).
type waitEntry struct {
	deadline float64 // ignored when isZero is true
	isZero   bool    // true for a Wait(0, ...) suspension; see queue generation rules
	genAtIns uint64  // queue generation at the moment of insertion
	seq      uint64  // insertion sequence, for FIFO tie-breaking
	rec      *waitRecord
	index    int // heap index; -1 once removed
}

// timeQueue is the ordered multiset of pending waiters for a single
// (phase, clock) pair. It's a binary min-heap ordered by (isZero desc,
// deadline asc, seq asc) — i.e. zero-delay waiters inserted before the
// current drain generation sort ahead of any positive deadline, matching
// "deadline 0 resumes before any strictly positive deadline of equal tick".
//
// Zero-delay semantics: a Wait(0, ...) against the queue's own (phase,
// clock) must never be observable in the same Update call that created it —
// same-pass resumption only ever happens for waits scheduled before the
// pass began. This is implemented with a per-queue generation counter,
// bumped once per setupDrain: a zero-delay entry is ready only once the
// live generation has advanced past the generation it was inserted under.
// Positive-deadline entries have no such restriction — an entry inserted
// mid-drain with deadline <= now drains in the very same call.
type timeQueue struct {
	h    waitHeap
	now  float64
	gen  uint64
	nseq uint64
}

func newTimeQueue() *timeQueue {
	q := &timeQueue{}
	heap.Init(&q.h)
	return q
}

// insert adds rec to the queue at the given deadline (0 meaning "next drain
// of this queue, ahead of any positive deadline") and returns a cursor for
// later removal.
func (q *timeQueue) insert(deadline float64, isZero bool, rec *waitRecord) *waitEntry {
	e := &waitEntry{
		deadline: deadline,
		isZero:   isZero,
		genAtIns: q.gen,
		seq:      q.nseq,
		rec:      rec,
	}
	q.nseq++
	heap.Push(&q.h, e)
	return e
}

// remove drops e from the queue. It is safe to call at most once per entry;
// the owner (waitRecord destruction) guards against double-removal.
func (q *timeQueue) remove(e *waitEntry) {
	if e == nil || e.index < 0 {
		return
	}
	heap.Remove(&q.h, e.index)
}

// setupDrain snapshots the comparison instant for the upcoming drain and
// advances the generation counter; the instant is captured once per Update
// call, not re-read per entry.
func (q *timeQueue) setupDrain(now float64) {
	q.now = now
	q.gen++
}

// hasReady reports whether the least element is eligible to pop under the
// current drain snapshot.
func (q *timeQueue) hasReady() bool {
	if q.h.Len() == 0 {
		return false
	}
	top := q.h[0]
	if top.isZero {
		return q.gen > top.genAtIns
	}
	return top.deadline <= q.now
}

// popReady pops and returns the least element iff hasReady(). Callers must
// check hasReady first; popReady panics on an empty or not-yet-ready queue,
// since that is always a scheduler bug (the drain loop in Manager.Update
// always guards the call).
func (q *timeQueue) popReady() *waitEntry {
	if !q.hasReady() {
		panic("coro: popReady called without a ready entry")
	}
	e := heap.Pop(&q.h).(*waitEntry)
	e.index = -1
	return e
}

func (q *timeQueue) len() int { return q.h.Len() }

// waitHeap implements container/heap.Interface over []*waitEntry.
type waitHeap []*waitEntry

func (h waitHeap) Len() int { return len(h) }

func (h waitHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.isZero != b.isZero {
		// zero-delay entries always sort ahead of positive-deadline ones.
		return a.isZero
	}
	if a.isZero {
		// both zero-delay: FIFO by insertion sequence.
		return a.seq < b.seq
	}
	if a.deadline != b.deadline {
		return a.deadline < b.deadline
	}
	return a.seq < b.seq
}

func (h waitHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *waitHeap) Push(x any) {
	e := x.(*waitEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *waitHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
