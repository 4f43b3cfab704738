package coro

// allAwaiter is the parentAwaiter shared by every child of one All call.
// remaining counts the children that have not yet reached a terminal
// state; the combinator's real parent is resumed exactly once, when it
// drops to zero.
type allAwaiter struct {
	parent    *coroBase
	remaining int
}

func (a *allAwaiter) onChildDone(*coroBase) *coroBase {
	a.remaining--
	if a.remaining == 0 {
		return a.parent
	}
	return nil
}

// startAll launches every child in argument order and installs aw as their
// common parent awaiter. It returns the number of children still running
// after the initial, synchronous pass — the ones that suspended and so
// will complete later,
// driven by Manager.Update through the ordinary cascade, rather than
// in-line here.
//
// Synchronously-finishing children never travel through aw.onChildDone:
// just like Await, a child that never parks completes before this
// function's own call to park() is reachable, and there is nobody yet
// listening on the parent's resumeCh to receive the resumption onChildDone
// would otherwise trigger. Their completion is instead accounted for by
// the caller, which sets aw.remaining to the returned stillRunning count
// (see All2/All3/...).
func startAll(parent *coroBase, aw parentAwaiter, children []*coroBase) (stillRunning int) {
	for _, ch := range children {
		ch.parent = aw
		parent.addChild(ch)
	}
	for _, ch := range children {
		sig := ch.start()
		if sig.suspended {
			stillRunning++
		}
	}
	return stillRunning
}

// finishAll waits (if needed) for every child to reach a terminal state,
// then drops them all from parent's cascade bookkeeping — mirroring
// Await's teardown, generalized to N children instead of one.
func finishAll(parent *coroBase, children []*coroBase, stillRunning int) {
	if stillRunning > 0 {
		parent.park()
	}
	for _, ch := range children {
		parent.dropChild(ch)
	}
}

// joinErrors implements the join-then-rethrow-first-failure policy: every
// child is always awaited to completion regardless of earlier failures, and
// the returned error is nil if none failed, the lone error directly if
// exactly one did, or an *AggregateError (whose Cause is the first, in
// argument order) if more than one did — preserving errors.Is/errors.As
// against any individual child's error either way.
func joinErrors(errs ...error) error {
	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	switch len(failed) {
	case 0:
		return nil
	case 1:
		return failed[0]
	default:
		return &AggregateError{Errors: failed}
	}
}

// All2 runs fn1 and fn2 to completion as structured children of the
// calling coroutine. It completes only once both children have reached a
// terminal state, regardless of finishing order, and its result tuple
// always preserves argument order. If more than one child failed, the
// first (in argument order) error is surfaced via errors.Is/errors.As, but
// every child is still awaited to completion first.
func All2[T1, T2 any](ctrl *Control, fn1 func(*Control) (T1, error), fn2 func(*Control) (T2, error)) (T1, T2, error) {
	parent := ctrl.co
	c1 := newCoroutine(parent.mgr, fn1)
	c2 := newCoroutine(parent.mgr, fn2)
	children := []*coroBase{&c1.coroBase, &c2.coroBase}
	aw := &allAwaiter{parent: parent, remaining: len(children)}

	stillRunning := startAll(parent, aw, children)
	aw.remaining = stillRunning
	finishAll(parent, children, stillRunning)

	return c1.result, c2.result, joinErrors(c1.err, c2.err)
}

// All3 is All2 generalized to three children.
func All3[T1, T2, T3 any](ctrl *Control, fn1 func(*Control) (T1, error), fn2 func(*Control) (T2, error), fn3 func(*Control) (T3, error)) (T1, T2, T3, error) {
	parent := ctrl.co
	c1 := newCoroutine(parent.mgr, fn1)
	c2 := newCoroutine(parent.mgr, fn2)
	c3 := newCoroutine(parent.mgr, fn3)
	children := []*coroBase{&c1.coroBase, &c2.coroBase, &c3.coroBase}
	aw := &allAwaiter{parent: parent, remaining: len(children)}

	stillRunning := startAll(parent, aw, children)
	aw.remaining = stillRunning
	finishAll(parent, children, stillRunning)

	return c1.result, c2.result, c3.result, joinErrors(c1.err, c2.err, c3.err)
}

// All4 is All2 generalized to four children.
func All4[T1, T2, T3, T4 any](ctrl *Control, fn1 func(*Control) (T1, error), fn2 func(*Control) (T2, error), fn3 func(*Control) (T3, error), fn4 func(*Control) (T4, error)) (T1, T2, T3, T4, error) {
	parent := ctrl.co
	c1 := newCoroutine(parent.mgr, fn1)
	c2 := newCoroutine(parent.mgr, fn2)
	c3 := newCoroutine(parent.mgr, fn3)
	c4 := newCoroutine(parent.mgr, fn4)
	children := []*coroBase{&c1.coroBase, &c2.coroBase, &c3.coroBase, &c4.coroBase}
	aw := &allAwaiter{parent: parent, remaining: len(children)}

	stillRunning := startAll(parent, aw, children)
	aw.remaining = stillRunning
	finishAll(parent, children, stillRunning)

	return c1.result, c2.result, c3.result, c4.result, joinErrors(c1.err, c2.err, c3.err, c4.err)
}

// AllSlice runs a homogeneous, dynamically-sized set of children to
// completion — the fallback for arities the fixed monomorphizations
// (All2/All3/All4) don't cover. An empty fns completes synchronously with
// an empty slice.
func AllSlice[T any](ctrl *Control, fns []func(*Control) (T, error)) ([]T, error) {
	if len(fns) == 0 {
		return nil, nil
	}
	parent := ctrl.co
	cs := make([]*Coroutine[T], len(fns))
	children := make([]*coroBase, len(fns))
	for i, fn := range fns {
		cs[i] = newCoroutine(parent.mgr, fn)
		children[i] = &cs[i].coroBase
	}
	aw := &allAwaiter{parent: parent, remaining: len(children)}

	stillRunning := startAll(parent, aw, children)
	aw.remaining = stillRunning
	finishAll(parent, children, stillRunning)

	results := make([]T, len(cs))
	errs := make([]error, len(cs))
	for i, c := range cs {
		results[i] = c.result
		errs[i] = c.err
	}
	return results, joinErrors(errs...)
}
