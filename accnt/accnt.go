// Package accnt accumulates per-process CPU-time accounting, kept from the
// teacher's accnt package. The byte-level rusage serialization it also
// carried (To_rusage/Fetch, copying a struct out to user memory) is
// dropped: that belongs to the syscall copy-out layer this core treats as
// an external collaborator (spec.md §1 Non-goals), so Usage() returns a
// plain struct instead.
package accnt

import (
	"sync"
	"sync/atomic"
	"time"
)

/// Accnt_t accumulates user and system time, in nanoseconds, for one
/// process. The embedded mutex lets Add take a consistent snapshot when
/// merging a reaped child's accounting into its parent.
type Accnt_t struct {
	Userns int64
	Sysns  int64
	sync.Mutex
}

/// Utadd adds delta nanoseconds to the user-time counter.
func (a *Accnt_t) Utadd(delta int64) {
	atomic.AddInt64(&a.Userns, delta)
}

/// Systadd adds delta nanoseconds to the system-time counter.
func (a *Accnt_t) Systadd(delta int64) {
	atomic.AddInt64(&a.Sysns, delta)
}

/// Now returns the current time in nanoseconds since the Unix epoch.
func (a *Accnt_t) Now() int64 {
	return time.Now().UnixNano()
}

/// Io_time removes time spent waiting for I/O, which began at since, from
/// system time.
func (a *Accnt_t) Io_time(since int64) {
	a.Systadd(since - a.Now())
}

/// Sleep_time removes time spent sleeping, which began at since, from
/// system time.
func (a *Accnt_t) Sleep_time(since int64) {
	a.Systadd(since - a.Now())
}

/// Finish adds time elapsed since inttime to system time, at process exit.
func (a *Accnt_t) Finish(inttime int64) {
	a.Systadd(a.Now() - inttime)
}

/// Add merges a reaped child's accounting into this one (exit §4.G step 1
/// folds a zombie child's usage into its parent before discarding it).
func (a *Accnt_t) Add(n *Accnt_t) {
	n.Lock()
	userns, sysns := n.Userns, n.Sysns
	n.Unlock()

	a.Lock()
	a.Userns += userns
	a.Sysns += sysns
	a.Unlock()
}

/// Usage_t is a point-in-time snapshot of accumulated CPU time.
type Usage_t struct {
	User time.Duration
	Sys  time.Duration
}

/// Usage returns a consistent snapshot of the accounting record.
func (a *Accnt_t) Usage() Usage_t {
	a.Lock()
	defer a.Unlock()
	return Usage_t{
		User: time.Duration(a.Userns),
		Sys:  time.Duration(a.Sysns),
	}
}
