package coro

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually-advanced ClockFunc for deterministic tests of the
// time-queue ordering properties, the same register-a-clock-function-to-drive-time
// pattern used for fake timers in other event-loop-style test suites.
type fakeClock struct {
	now float64
}

func (c *fakeClock) Func() ClockFunc {
	return func() float64 { return c.now }
}

func newTestManager(t *testing.T) (*Manager, *fakeClock) {
	t.Helper()
	clk := &fakeClock{}
	mgr := NewManager(WithClock(DefaultClock, clk.Func()))
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr, clk
}

// TestAwaitDelayedValueCompletesViaUpdate verifies a coroutine that awaits a delayed value
// and sets a flag, driven to completion by repeated Update calls.
func TestAwaitDelayedValueCompletesViaUpdate(t *testing.T) {
	mgr, _ := newTestManager(t)

	done := false
	h, err := Start(mgr, func(ctrl *Control) (int, error) {
		v, err := Await(ctrl, func(c *Control) (int, error) {
			c.WaitDefault(0)
			return 42, nil
		})
		if err != nil {
			return 0, err
		}
		done = true
		return v, nil
	})
	require.NoError(t, err)

	for i := 0; i < 10 && !h.IsDown(); i++ {
		require.NoError(t, mgr.Update(DefaultPhase, DefaultClock))
	}

	require.True(t, h.IsDown())
	assert.True(t, done)
	v, cerr, ok := h.TakeResult()
	require.True(t, ok)
	require.NoError(t, cerr)
	assert.Equal(t, 42, v)
}

// TestChainedZeroDelayWaitsSpanSeparateUpdates verifies two chained zero-delay Waits
// straddle separate Update calls, never collapsing into one.
func TestChainedZeroDelayWaitsSpanSeparateUpdates(t *testing.T) {
	mgr, _ := newTestManager(t)

	count := 0
	h, err := Start(mgr, func(ctrl *Control) (int, error) {
		ctrl.WaitDefault(0)
		count += 1
		ctrl.WaitDefault(0)
		count += 2
		return count, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 0, count)

	require.NoError(t, mgr.Update(DefaultPhase, DefaultClock))
	assert.Equal(t, 1, count)
	assert.False(t, h.IsDown())

	require.NoError(t, mgr.Update(DefaultPhase, DefaultClock))
	assert.Equal(t, 3, count)
	assert.True(t, h.IsDown())
}

// TestStopEndsAnInfiniteWaitLoop verifies a coroutine looping forever on WaitDefault(0)
// can be stopped externally after a handful of ticks.
func TestStopEndsAnInfiniteWaitLoop(t *testing.T) {
	mgr, _ := newTestManager(t)

	count := 0
	h, err := Start(mgr, func(ctrl *Control) (struct{}, error) {
		for {
			ctrl.WaitDefault(0)
			count++
		}
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, mgr.Update(DefaultPhase, DefaultClock))
	}
	assert.Equal(t, 5, count)
	assert.False(t, h.IsDown())

	h.Stop()
	assert.True(t, h.IsDown())

	require.NoError(t, mgr.Update(DefaultPhase, DefaultClock))
	assert.Equal(t, 5, count)
}

// TestDistinctDeadlinesResumeInAscendingOrder verifies waiters with distinct
// deadlines, inserted out of order, resume in ascending deadline order
// within a single Update.
func TestDistinctDeadlinesResumeInAscendingOrder(t *testing.T) {
	mgr, clk := newTestManager(t)

	var order []int
	delays := []float64{0.3, 0.1, 0.2}
	for i, d := range delays {
		i, d := i, d
		_, err := Start(mgr, func(ctrl *Control) (struct{}, error) {
			ctrl.Wait(d, DefaultPhase, DefaultClock)
			order = append(order, i)
			return struct{}{}, nil
		})
		require.NoError(t, err)
	}

	clk.now = 10
	require.NoError(t, mgr.Update(DefaultPhase, DefaultClock))

	// delays[1]=0.1 < delays[2]=0.2 < delays[0]=0.3
	assert.Equal(t, []int{1, 2, 0}, order)
}

// TestEqualDeadlinesResumeInInsertionOrder verifies waiters with identical
// deadlines resume in insertion order.
func TestEqualDeadlinesResumeInInsertionOrder(t *testing.T) {
	mgr, clk := newTestManager(t)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		_, err := Start(mgr, func(ctrl *Control) (struct{}, error) {
			ctrl.Wait(1, DefaultPhase, DefaultClock)
			order = append(order, i)
			return struct{}{}, nil
		})
		require.NoError(t, err)
	}

	clk.now = 5
	require.NoError(t, mgr.Update(DefaultPhase, DefaultClock))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

// TestStopDrainsPendingWaitFromQueue verifies Stop on a root with pending
// waits drains them from the queue and leaves the handle down immediately.
func TestStopDrainsPendingWaitFromQueue(t *testing.T) {
	mgr, _ := newTestManager(t)

	h, err := Start(mgr, func(ctrl *Control) (struct{}, error) {
		_, _ = Await(ctrl, func(c *Control) (struct{}, error) {
			c.WaitDefault(5)
			return struct{}{}, nil
		})
		return struct{}{}, nil
	})
	require.NoError(t, err)

	q := mgr.queues[queueKey{DefaultPhase, DefaultClock}]
	require.NotNil(t, q)
	assert.Equal(t, 1, q.len())

	h.Stop()
	assert.True(t, h.IsDown())
	assert.Equal(t, 0, q.len())
}

// TestTakeResultConsumedExactlyOnce verifies a successful result is
// returned exactly once.
func TestTakeResultConsumedExactlyOnce(t *testing.T) {
	mgr, _ := newTestManager(t)

	h, err := Start(mgr, func(ctrl *Control) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	require.True(t, h.IsDown())

	v, cerr, ok := h.TakeResult()
	require.True(t, ok)
	require.NoError(t, cerr)
	assert.Equal(t, "ok", v)

	v2, cerr2, ok2 := h.TakeResult()
	assert.False(t, ok2)
	assert.NoError(t, cerr2)
	assert.Equal(t, "", v2)
}

// TestReleaseWhileRunningDefersErasure verifies I3/I4: releasing a handle
// whose root is still Running does not erase its bookkeeping entry
// immediately — State/TakeResult must keep answering for it until it
// actually reaches a terminal state, at which point the deferred-finish
// drain (§4.5) erases it.
func TestReleaseWhileRunningDefersErasure(t *testing.T) {
	mgr, clk := newTestManager(t)

	h, err := Start(mgr, func(ctrl *Control) (int, error) {
		ctrl.WaitDefault(1)
		return 7, nil
	})
	require.NoError(t, err)
	require.False(t, h.IsDown())

	h.Release()

	// Still running: the entry must not have been erased by Release alone.
	st, ok := h.State()
	require.True(t, ok)
	assert.Equal(t, Running, st)

	clk.now += 2
	require.NoError(t, mgr.Update(DefaultPhase, DefaultClock))
	require.True(t, h.IsDown())

	// Once terminal, the deferred-finish drain erases the already-released
	// entry in the same Update call: a result nobody asked to keep is
	// simply gone, not retained indefinitely.
	_, ok = h.State()
	assert.False(t, ok)
}

// TestFailedRootErrorConsumedExactlyOnce verifies a failed root's error
// surfaces exactly once from TakeResult.
func TestFailedRootErrorConsumedExactlyOnce(t *testing.T) {
	mgr, _ := newTestManager(t)

	wantErr := errors.New("boom")
	h, err := Start(mgr, func(ctrl *Control) (int, error) {
		return 0, wantErr
	})
	require.NoError(t, err)
	require.True(t, h.IsDown())

	_, cerr, ok := h.TakeResult()
	require.True(t, ok)
	assert.ErrorIs(t, cerr, wantErr)

	_, cerr2, ok2 := h.TakeResult()
	assert.False(t, ok2)
	assert.NoError(t, cerr2)
}

// TestPanicBecomesFailedState verifies a panicking coroutine body surfaces
// as a PanicError through TakeResult, rather than crashing the process.
func TestPanicBecomesFailedState(t *testing.T) {
	mgr, _ := newTestManager(t)

	h, err := Start(mgr, func(ctrl *Control) (int, error) {
		panic("kaboom")
	})
	require.NoError(t, err)
	require.True(t, h.IsDown())

	st, ok := h.State()
	require.True(t, ok)
	assert.Equal(t, Failed, st)

	_, cerr, ok := h.TakeResult()
	require.True(t, ok)
	var panicErr *PanicError
	require.ErrorAs(t, cerr, &panicErr)
	assert.Equal(t, "kaboom", panicErr.Value)
}

// TestHandleOperationsAreNoopsAfterManagerClose verifies every Handle
// operation becomes a defined no-op once the Manager has been closed.
func TestHandleOperationsAreNoopsAfterManagerClose(t *testing.T) {
	mgr := NewManager()

	h, err := Start(mgr, func(ctrl *Control) (int, error) {
		ctrl.WaitDefault(1000)
		return 0, nil
	})
	require.NoError(t, err)
	require.False(t, h.IsDown())

	require.NoError(t, mgr.Close())

	assert.True(t, h.IsDown())
	st, ok := h.State()
	assert.False(t, ok)
	assert.Equal(t, Stopped, st)

	v, cerr, ok := h.TakeResult()
	assert.False(t, ok)
	assert.NoError(t, cerr)
	assert.Equal(t, 0, v)

	// Stop/Release on a dead manager must not panic.
	h.Stop()
	h.Release()
}

// TestUnknownClockError verifies Wait against a clock kind that was never
// registered surfaces as a panic wrapping ErrUnknownClock, since Control.Wait
// has no error return of its own (the panic is captured by the coroutine's
// own recover and surfaces through the handle like any other failure).
func TestUnknownClockError(t *testing.T) {
	mgr, _ := newTestManager(t)

	const otherClock ClockKind = 1
	h, err := Start(mgr, func(ctrl *Control) (struct{}, error) {
		ctrl.Wait(1, DefaultPhase, otherClock)
		return struct{}{}, nil
	})
	require.NoError(t, err)
	require.True(t, h.IsDown())

	_, cerr, ok := h.TakeResult()
	require.True(t, ok)
	assert.ErrorIs(t, cerr, ErrUnknownClock)
}

// TestUpdateOnUnknownQueueIsNoop verifies draining a (phase, clock) that has
// never had a waiter is a cheap no-op rather than an error.
func TestUpdateOnUnknownQueueIsNoop(t *testing.T) {
	mgr, _ := newTestManager(t)
	const otherPhase Phase = 1
	assert.NoError(t, mgr.Update(otherPhase, DefaultClock))
}

// TestUpdateOnClosedManager verifies Update against a closed Manager
// returns ErrManagerClosed rather than touching freed state.
func TestUpdateOnClosedManager(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.Close())
	assert.ErrorIs(t, mgr.Update(DefaultPhase, DefaultClock), ErrManagerClosed)
	assert.ErrorIs(t, mgr.Close(), ErrManagerClosed)
}

// TestReentrantStartDuringResumption verifies a coroutine can Start another
// root coroutine against the same Manager from within its own resumption.
func TestReentrantStartDuringResumption(t *testing.T) {
	mgr, _ := newTestManager(t)

	var childHandle Handle[int]
	h, err := Start(mgr, func(ctrl *Control) (struct{}, error) {
		ctrl.WaitDefault(0)
		var startErr error
		childHandle, startErr = Start(mgr, func(inner *Control) (int, error) {
			return 7, nil
		})
		require.NoError(t, startErr)
		return struct{}{}, nil
	})
	require.NoError(t, err)

	require.NoError(t, mgr.Update(DefaultPhase, DefaultClock))
	require.True(t, h.IsDown())
	require.True(t, childHandle.IsDown())
	v, _, ok := childHandle.TakeResult()
	require.True(t, ok)
	assert.Equal(t, 7, v)
}

// TestWithFinishedRootHook verifies the deferred-finish hook fires once per
// root, with the terminal state and captured error.
func TestWithFinishedRootHook(t *testing.T) {
	clk := &fakeClock{}
	var finished []struct {
		id  uint64
		st  State
		err error
	}
	mgr := NewManager(
		WithClock(DefaultClock, clk.Func()),
		WithFinishedRootHook(func(id uint64, st State, err error) {
			finished = append(finished, struct {
				id  uint64
				st  State
				err error
			}{id, st, err})
		}),
	)
	t.Cleanup(func() { _ = mgr.Close() })

	_, err := Start(mgr, func(ctrl *Control) (int, error) {
		return 1, nil
	})
	require.NoError(t, err)

	boom := fmt.Errorf("boom")
	_, err = Start(mgr, func(ctrl *Control) (int, error) {
		return 0, boom
	})
	require.NoError(t, err)

	require.Len(t, finished, 2)
	assert.Equal(t, Succeeded, finished[0].st)
	assert.Equal(t, Failed, finished[1].st)
	assert.ErrorIs(t, finished[1].err, boom)
}

// capturingLogger records the error passed to LogCoroutineFailed/
// LogCoroutinePanicked, for asserting on the concrete type the scheduler
// logs with.
type capturingLogger struct {
	NoOpLogger
	failedErr   error
	panickedErr error
}

func (l *capturingLogger) LogCoroutineFailed(_ uint64, err error)   { l.failedErr = err }
func (l *capturingLogger) LogCoroutinePanicked(_ uint64, err error) { l.panickedErr = err }

// TestFailedCoroutineLogsWrappedWithID verifies a failed root's error is
// logged wrapped in a *CoroutineError carrying its id, and that the
// original error is still reachable via errors.As/errors.Is through it.
func TestFailedCoroutineLogsWrappedWithID(t *testing.T) {
	clk := &fakeClock{}
	logger := &capturingLogger{}
	mgr := NewManager(WithClock(DefaultClock, clk.Func()), WithLogger(logger))
	t.Cleanup(func() { _ = mgr.Close() })

	boom := errors.New("boom")
	h, err := Start(mgr, func(ctrl *Control) (int, error) {
		return 0, boom
	})
	require.NoError(t, err)
	require.True(t, h.IsDown())

	require.Error(t, logger.failedErr)
	var coroErr *CoroutineError
	require.ErrorAs(t, logger.failedErr, &coroErr)
	assert.Equal(t, uint64(1), coroErr.ID)
	assert.ErrorIs(t, logger.failedErr, boom)
}

// fibCoro computes Fib(n) via recursive child-await, yielding once per call
// so the recursion actually spans multiple Update drains instead of
// resolving synchronously.
func fibCoro(ctrl *Control, n int) (int, error) {
	ctrl.WaitDefault(0)
	if n < 2 {
		return n, nil
	}
	a, err := Await(ctrl, func(c *Control) (int, error) { return fibCoro(c, n-1) })
	if err != nil {
		return 0, err
	}
	b, err := Await(ctrl, func(c *Control) (int, error) { return fibCoro(c, n-2) })
	if err != nil {
		return 0, err
	}
	return a + b, nil
}

// TestStressFibonacciCancelEveryOther spawns a large number of roots each
// computing Fib(10) via recursive child-await, cancels every other one
// immediately, then drives the survivors to completion and checks every one
// yields 55 — the stress scenario from the combinator/cancellation
// properties, sized down from 10,000 to keep the test suite fast.
//
// Every fibCoro node begins with a WaitDefault(0); by the queue's
// same-pass generation gate (queue.go), a zero-delay wait only becomes
// ready one Update call after it was scheduled, so a surviving root
// advances exactly one node per Update. Computing Fib(n) visits
// W(n) = 1 + W(n-1) + W(n-2) nodes (W(0) = W(1) = 1), so W(10) = 177: the
// tick budget below must be at least that to let every survivor go down.
func TestStressFibonacciCancelEveryOther(t *testing.T) {
	mgr, clk := newTestManager(t)
	const n = 2000
	handles := make([]Handle[int], n)
	for i := 0; i < n; i++ {
		h, err := Start(mgr, func(ctrl *Control) (int, error) {
			return fibCoro(ctrl, 10)
		})
		require.NoError(t, err)
		handles[i] = h
	}

	for i := 1; i < n; i += 2 {
		handles[i].Stop()
	}

	for tick := 0; tick < 200; tick++ {
		clk.now += 1
		require.NoError(t, mgr.Update(DefaultPhase, DefaultClock))
		allDown := true
		for _, h := range handles {
			if !h.IsDown() {
				allDown = false
				break
			}
		}
		if allDown {
			break
		}
	}

	for i, h := range handles {
		require.True(t, h.IsDown(), "handle %d never went down", i)
		if i%2 == 1 {
			st, _ := h.State()
			assert.Equal(t, Stopped, st)
			continue
		}
		v, err, ok := h.TakeResult()
		require.True(t, ok)
		require.NoError(t, err)
		assert.Equal(t, 55, v)
	}
}
