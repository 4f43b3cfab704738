package coro

// WaitUntil blocks the calling coroutine until pred returns true, polling it
// once per DefaultPhase/DefaultClock tick: a loop over Control.WaitDefault(0)
// built directly on top of the core suspension primitive. pred is checked
// once before the first suspension, so a predicate that's already true never
// suspends at all.
func WaitUntil(ctrl *Control, pred func() bool) {
	for !pred() {
		ctrl.WaitDefault(0)
	}
}

// WaitWhile blocks the calling coroutine for as long as pred returns true,
// polling it once per DefaultPhase/DefaultClock tick. It is the complement
// of WaitUntil, built the same way.
func WaitWhile(ctrl *Control, pred func() bool) {
	for pred() {
		ctrl.WaitDefault(0)
	}
}
