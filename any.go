package coro

// Optional models one slot of an Any combinator's result tuple: the entry
// belonging to the child that finished first is populated, every other
// entry is left empty.
type Optional[T any] struct {
	Value T
	Ok    bool
}

// anyAwaiter is the parentAwaiter shared by every child of one Any call.
// The first child to report completion becomes the winner; every other
// child registered in children is stopped immediately and in reverse
// argument order, before the parent is ever resumed — so a loser's wait
// record is already gone from its time queue by the time the parent's
// resume observes the result.
type anyAwaiter struct {
	parent   *coroBase
	children []*coroBase // only the children actually launched
	winner   *coroBase
}

func (a *anyAwaiter) onChildDone(child *coroBase) *coroBase {
	if a.winner != nil {
		// Can't happen in practice: every other launched child is stopped
		// synchronously below the instant a winner is recorded, so no
		// second completion notification is ever delivered. Guarded
		// anyway since onChildDone must never resume the parent twice.
		return nil
	}
	a.winner = child
	stopOthers(a.children, child)
	return a.parent
}

// stopOthers cascades-stops every child in children except keep, walking in
// reverse argument order.
func stopOthers(children []*coroBase, keep *coroBase) {
	for i := len(children) - 1; i >= 0; i-- {
		if c := children[i]; c != keep {
			c.stopCascade()
		}
	}
}

// startAny launches children in argument order, stopping as soon as one of
// them completes synchronously (no point starting the rest just to cancel
// them). It returns the synchronous winner, if any, and the slice of
// children that were actually launched (a prefix of children when a
// synchronous winner cut the scan short).
func startAny(parent *coroBase, aw *anyAwaiter, children []*coroBase) (winner *coroBase, started []*coroBase) {
	for _, ch := range children {
		ch.parent = aw
	}
	for _, ch := range children {
		parent.addChild(ch)
		started = append(started, ch)
		if sig := ch.start(); !sig.suspended {
			winner = ch
			break
		}
	}
	aw.children = started
	if winner != nil {
		stopOthers(started, winner)
	}
	return winner, started
}

// finishAny waits (if no synchronous winner was found) for the first child
// to finish, then drops every launched child from parent's cascade
// bookkeeping.
func finishAny(parent *coroBase, aw *anyAwaiter, started []*coroBase, winner *coroBase) *coroBase {
	if winner == nil {
		parent.park()
		winner = aw.winner
	}
	for _, ch := range started {
		parent.dropChild(ch)
	}
	return winner
}

// Any2 races fn1 and fn2: it completes the instant the first of them
// reaches a terminal state, and the loser is stopped before this call
// returns. A failed winner's error is re-thrown here; a failed loser's
// error is discarded along with the rest of its state.
func Any2[T1, T2 any](ctrl *Control, fn1 func(*Control) (T1, error), fn2 func(*Control) (T2, error)) (Optional[T1], Optional[T2], error) {
	parent := ctrl.co
	c1 := newCoroutine(parent.mgr, fn1)
	c2 := newCoroutine(parent.mgr, fn2)
	children := []*coroBase{&c1.coroBase, &c2.coroBase}
	aw := &anyAwaiter{parent: parent}

	syncWinner, started := startAny(parent, aw, children)
	winner := finishAny(parent, aw, started, syncWinner)

	var r1 Optional[T1]
	var r2 Optional[T2]
	var err error
	switch winner {
	case &c1.coroBase:
		r1 = Optional[T1]{Value: c1.result, Ok: true}
		err = c1.err
	case &c2.coroBase:
		r2 = Optional[T2]{Value: c2.result, Ok: true}
		err = c2.err
	}
	return r1, r2, err
}

// Any3 is Any2 generalized to three children.
func Any3[T1, T2, T3 any](ctrl *Control, fn1 func(*Control) (T1, error), fn2 func(*Control) (T2, error), fn3 func(*Control) (T3, error)) (Optional[T1], Optional[T2], Optional[T3], error) {
	parent := ctrl.co
	c1 := newCoroutine(parent.mgr, fn1)
	c2 := newCoroutine(parent.mgr, fn2)
	c3 := newCoroutine(parent.mgr, fn3)
	children := []*coroBase{&c1.coroBase, &c2.coroBase, &c3.coroBase}
	aw := &anyAwaiter{parent: parent}

	syncWinner, started := startAny(parent, aw, children)
	winner := finishAny(parent, aw, started, syncWinner)

	var r1 Optional[T1]
	var r2 Optional[T2]
	var r3 Optional[T3]
	var err error
	switch winner {
	case &c1.coroBase:
		r1 = Optional[T1]{Value: c1.result, Ok: true}
		err = c1.err
	case &c2.coroBase:
		r2 = Optional[T2]{Value: c2.result, Ok: true}
		err = c2.err
	case &c3.coroBase:
		r3 = Optional[T3]{Value: c3.result, Ok: true}
		err = c3.err
	}
	return r1, r2, r3, err
}

// AnySlice races a homogeneous, dynamically-sized set of children — the
// fallback for arities AnyN doesn't cover. An empty fns completes
// synchronously, returning index -1 and the zero value: a race over
// nothing has no winner to report, but unlike a race with children that
// just haven't finished yet, there's nothing left to wait for either, so
// the call returns immediately rather than parking.
func AnySlice[T any](ctrl *Control, fns []func(*Control) (T, error)) (index int, value T, err error) {
	if len(fns) == 0 {
		return -1, value, nil
	}
	parent := ctrl.co
	cs := make([]*Coroutine[T], len(fns))
	children := make([]*coroBase, len(fns))
	for i, fn := range fns {
		cs[i] = newCoroutine(parent.mgr, fn)
		children[i] = &cs[i].coroBase
	}
	aw := &anyAwaiter{parent: parent}

	syncWinner, started := startAny(parent, aw, children)
	winner := finishAny(parent, aw, started, syncWinner)

	for i, c := range cs {
		if &c.coroBase == winner {
			return i, c.result, c.err
		}
	}
	return -1, value, nil
}
