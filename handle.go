package coro

// Handle is the caller-facing reference to a root coroutine started via
// Start: an RAII-style lifetime object. Its zero value is not
// usable; obtain one from Start. A Handle must be released exactly
// once, typically via defer, mirroring destructor-on-scope-exit.
type Handle[T any] struct {
	mgr   *Manager
	id    uint64
	alive *bool // shared with Manager; flips to false on Manager.Close
	taken bool
}

// IsDown reports whether the root has reached a terminal state (Succeeded,
// Failed, or Stopped) or the Manager has been closed. A live Handle whose
// root is still Running returns false.
func (h Handle[T]) IsDown() bool {
	if h.alive == nil || !*h.alive {
		return true
	}
	st, ok := h.mgr.state(h.id)
	return !ok || st.Terminal()
}

// State returns the root's current State. The second return value is false
// if the handle no longer refers to a live entry (already released, or the
// Manager was closed).
func (h Handle[T]) State() (State, bool) {
	if h.alive == nil || !*h.alive {
		return Stopped, false
	}
	return h.mgr.state(h.id)
}

// TakeResult returns the root's result and error exactly once it has
// Succeeded or Failed; the third return value is false if it is still
// Running, was Stopped, or the handle is no longer valid. Calling it again
// after a first successful take still returns false (this handle records
// the take; the Manager keeps the value only until Release) — callers that
// need to inspect the outcome more than once should capture the tuple
// themselves.
func (h *Handle[T]) TakeResult() (result T, err error, ok bool) {
	if h.taken || h.alive == nil || !*h.alive {
		return result, nil, false
	}
	v, err, ok := h.mgr.takeResult(h.id)
	if !ok {
		return result, nil, false
	}
	h.taken = true
	if v != nil {
		result = v.(T)
	}
	return result, err, true
}

// Stop cascades a cancellation into the root and all of its live children.
// It is idempotent: stopping an already-terminal root is a noop.
func (h Handle[T]) Stop() {
	if h.alive == nil || !*h.alive {
		return
	}
	h.mgr.stop(h.id)
}

// Release detaches the handle from the Manager's bookkeeping without
// stopping the root (it keeps running if still live); this is the
// destructor-equivalent operation and is safe to call more than once.
func (h *Handle[T]) Release() {
	if h.alive == nil || !*h.alive {
		return
	}
	h.mgr.release(h.id)
}
