// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package coro implements a lightweight, single-threaded cooperative
// coroutine scheduler for update-driven host applications: game engines, UI
// runtimes, simulators, or anything else that ticks on frames rather than
// blocking on I/O.
//
// # Architecture
//
// A [Manager] owns a table of root coroutines and one time-ordered wait
// queue per (phase, clock) pair. The host drives everything by calling
// [Manager.Update] once per frame (or more often, for multiple phases);
// Update snapshots the requested clock's current time and resumes every
// coroutine whose suspension has elapsed, in deterministic
// deadline-then-FIFO order.
//
// [Start] launches a root [Coroutine], returning a [Handle] the host uses to
// stop it, inspect its state, or take its result exactly once. Inside a
// coroutine body, [Control.Wait] suspends until a future tick, [Await] runs
// a child coroutine to completion, and the structured combinators
// ([All2], [All3], [All4], [AllSlice], [Any2], [Any3], [AnySlice]) compose
// several children with join or race semantics and propagated cancellation.
//
// Each coroutine runs on its own goroutine, parked on an unbuffered channel
// between suspension points, so only one is ever actually executing at a
// time; this is what makes the scheduler single-threaded and
// deadline/FIFO-deterministic despite being built from goroutines rather
// than a hand-rolled state machine. [Handle.Stop] and cancellation
// propagated from a parent tear a coroutine (and every child and pending
// Wait it owns) down synchronously: its state becomes Stopped and its waits
// leave their queues before the call returns. The parked goroutine is then
// woken by closing a channel it is selecting on, and its deferred cleanups
// run on that goroutine as the resulting panic unwinds, without the
// stopping call waiting for them — the closest a goroutine-based
// implementation gets to RAII-style destructor cascades.
//
// # Logging and metrics
//
// [SetLogger] installs a [Logger] (by default [NoOpLogger]); the built-in
// [NewStumpyLogger] backs it with github.com/joeycumines/logiface and
// github.com/joeycumines/stumpy for structured JSON output. [WithMetrics]
// installs a [Metrics] (built by [NewMetrics]) to expose Prometheus
// counters, gauges, and histograms for resumption throughput, queue depth,
// and resumption latency.
//
// # Usage
//
//	mgr := coro.NewManager()
//	defer mgr.Close()
//
//	h, err := coro.Start(mgr, func(ctrl *coro.Control) (int, error) {
//	    ctrl.WaitDefault(0)
//	    return 42, nil
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for !h.IsDown() {
//	    _ = mgr.Update(coro.DefaultPhase, coro.DefaultClock)
//	}
//	v, _, _ := h.TakeResult()
//	fmt.Println(v) // 42
//
// # Non-goals
//
// The scheduler is deliberately single-threaded: it does not provide
// multi-threaded parallelism, work-stealing, preemption, or I/O polling, and
// its only fairness guarantee is the deterministic time+FIFO ordering
// within a single Update call. Timer resolution is whatever the host's tick
// rate happens to be; there is no finer-grained guarantee.
package coro
