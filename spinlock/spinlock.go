// Package spinlock supplies the primitive floor described in spec.md §4.A:
// a non-blocking mutual-exclusion lock and a wait-channel of parked
// goroutines. Everything in ksync, mem, vm and fault is built on top of
// these two types; nothing below this package may block while holding a
// Spinlock_t.
//
// There is no real local-CPU interrupt state to disable in a hosted Go
// process, so "acquired with interrupts disabled" is modeled as a plain
// mutual-exclusion critical section. That nothing sleeps while one is held
// is a rule for callers; nothing in this package checks it.
package spinlock

import "sync"

/// Spinlock_t is a non-blocking mutex. Lock/Unlock bracket a critical
/// section in which no goroutine may park on a Waitchan_t.
type Spinlock_t struct {
	mu sync.Mutex
}

/// Lock acquires the spinlock, blocking the calling goroutine (but never a
/// parked/wait-channel sleep) until it is free.
func (s *Spinlock_t) Lock() {
	s.mu.Lock()
}

/// Unlock releases the spinlock.
func (s *Spinlock_t) Unlock() {
	s.mu.Unlock()
}

/// TryLock attempts to acquire the spinlock without blocking.
func (s *Spinlock_t) TryLock() bool {
	return s.mu.TryLock()
}

/// Waitchan_t is a FIFO queue of parked goroutines, the only mechanism used
/// anywhere in this core to suspend a thread of execution.
type Waitchan_t struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

/// Sleep atomically releases sl, parks the caller on the wait-channel, and
/// reacquires sl before returning — callers resume holding the same lock
/// they held when they called Sleep, so they may safely re-check the
/// condition that sent them to sleep. This matches the teacher's
/// wchan_sleep/lock_acquire idiom, where the while-loop re-test after
/// sleeping assumes the protecting lock is held again.
func (wc *Waitchan_t) Sleep(sl *Spinlock_t) {
	ch := make(chan struct{})
	wc.mu.Lock()
	wc.waiters = append(wc.waiters, ch)
	wc.mu.Unlock()

	sl.Unlock()
	<-ch
	sl.Lock()
}

/// WakeOne wakes the longest-waiting parked goroutine, if any. sl must be
/// held by the caller, matching the teacher's wchan_wakeone(wc, sl)
/// contract (sl protects the decision to wake; the wait-channel's queue
/// is guarded by its own internal mutex).
func (wc *Waitchan_t) WakeOne(sl *Spinlock_t) {
	wc.mu.Lock()
	if len(wc.waiters) == 0 {
		wc.mu.Unlock()
		return
	}
	ch := wc.waiters[0]
	wc.waiters = wc.waiters[1:]
	wc.mu.Unlock()
	close(ch)
}

/// WakeAll wakes every parked goroutine.
func (wc *Waitchan_t) WakeAll(sl *Spinlock_t) {
	wc.mu.Lock()
	pending := wc.waiters
	wc.waiters = nil
	wc.mu.Unlock()
	for _, ch := range pending {
		close(ch)
	}
}

/// Empty reports whether no goroutine is currently parked.
func (wc *Waitchan_t) Empty() bool {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return len(wc.waiters) == 0
}
