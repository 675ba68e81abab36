// Package proc implements spec.md §4.G: the PID allocator and the process
// lifecycle (create/create_run_program/fork/exit/waitpid/getpid/sbrk)
// built on top of vm, fd, mem and accnt. It is grounded on the teacher's
// proc package layout and the `kern/proc/proc.c` / `sys_fork.c` /
// `sys__exit.c` / `sys_waitpid.c` originals this spec was distilled from,
// generalized to the spec's simpler single-thread-per-process model (real
// biscuit supports multithreaded user processes; this core's spec does
// not ask for that, so Process carries one thread identity, not a
// thread array).
package proc

import (
	"sync/atomic"

	"github.com/JoshuaWu7/kernel/accnt"
	"github.com/JoshuaWu7/kernel/defs"
	"github.com/JoshuaWu7/kernel/fd"
	"github.com/JoshuaWu7/kernel/ksync"
	"github.com/JoshuaWu7/kernel/mem"
	"github.com/JoshuaWu7/kernel/spinlock"
	"github.com/JoshuaWu7/kernel/vm"
)

/// Status_t is a PID's tri-state allocation status (spec.md §9
/// "supplemented" get_pid_status: free / allocated / invalid), kept as an
/// enum rather than collapsed into a bool.
type Status_t int

const (
	PidFree Status_t = iota
	PidAllocated
	PidInvalid
)

/// Pidtab_t is the flat PID allocation table, spec.md §5 lock #2.
type Pidtab_t struct {
	sl    spinlock.Spinlock_t
	table [defs.PID_MAX + 1]bool
}

/// NewPidtab returns an empty PID table; PIDs 0 and 1 are permanently
/// reserved (0 = "no PID", 1 = unassigned) by never being allocated
/// through Allocate (PID_MIN already excludes them).
func NewPidtab() *Pidtab_t {
	return &Pidtab_t{}
}

/// Allocate returns the lowest free PID >= PID_MIN, or 0 if the table is
/// exhausted.
func (pt *Pidtab_t) Allocate() int {
	pt.sl.Lock()
	defer pt.sl.Unlock()
	for pid := defs.PID_MIN; pid <= defs.PID_MAX; pid++ {
		if !pt.table[pid] {
			pt.table[pid] = true
			return pid
		}
	}
	return 0
}

/// Free returns pid to the pool. It panics on an out-of-range PID or a
/// double free — both are contract violations, never caller input errors.
func (pt *Pidtab_t) Free(pid int) {
	pt.sl.Lock()
	defer pt.sl.Unlock()
	if pid < defs.PID_MIN || pid > defs.PID_MAX {
		panic("proc: Free on out-of-range pid")
	}
	if !pt.table[pid] {
		panic("proc: double free of pid")
	}
	pt.table[pid] = false
}

/// Status reports whether pid is free, allocated, or out of the valid
/// range entirely.
func (pt *Pidtab_t) Status(pid int) Status_t {
	if pid < defs.PID_MIN || pid > defs.PID_MAX {
		return PidInvalid
	}
	pt.sl.Lock()
	defer pt.sl.Unlock()
	if pt.table[pid] {
		return PidAllocated
	}
	return PidFree
}

var tidCounter int64

func nextTid() defs.Tid_t {
	return defs.Tid_t(atomic.AddInt64(&tidCounter, 1))
}

/// Process is a kernel-tracked process: one address space, one FD table,
/// one cwd, and a place in its parent's child list. SelfTid identifies
/// the single thread of execution this core models per process (real
/// biscuit tracks a thread array; this spec's process model is
/// single-threaded, so one stable Tid_t suffices for every ksync.Lock_t
/// acquired on the process's behalf).
type Process struct {
	Name string
	Pid  int
	Asid int // reuses Pid as the TLB ASID (both are already process-unique)

	SelfTid defs.Tid_t

	Vm   *vm.Vm_t
	Cwd  *fd.Cwd_t
	Fds  *fd.Fdtable_t
	Acct *accnt.Accnt_t

	Parent *Process
	Index  int // this process's position in Parent.children

	parentLock      ksync.Lock_t
	parentCV        ksync.CV_t
	children        []*Process
	runningChildren int
	zombie          bool
	exitCode        int
}

/// create allocates and zero-initializes a Process, per spec.md §4.G
/// create: empty FD table, null address space/cwd, empty child list,
/// zombie=false, exit=0, child-count=0.
func create(name string) *Process {
	return &Process{
		Name:    name,
		Fds:     fd.NewFdtable(),
		Acct:    &accnt.Accnt_t{},
		SelfTid: nextTid(),
	}
}

/// CreateRunProgram implements spec.md §4.G create_run_program: build a
/// fresh process via create, inherit parent's cwd (vnode refcount
/// bumped), seed stdin/stdout/stderr against the console device at slots
/// 0-2, allocate a PID, and record the parent pointer. parent == nil
/// creates a parentless root process (e.g. the kernel process).
func CreateRunProgram(name string, parent *Process, pt *Pidtab_t) (*Process, defs.Err_t) {
	p := create(name)
	p.Vm = vm.Create()
	p.Parent = parent
	if parent != nil && parent.Cwd != nil {
		p.Cwd = parent.Cwd.Clone()
	}

	pid := pt.Allocate()
	if pid == 0 {
		if p.Cwd != nil {
			p.Cwd.Release()
		}
		return nil, -defs.EAGAIN
	}
	p.Pid = pid
	p.Asid = pid

	// Seed stdio against "con:" at slots 0 (read-only), 1 and 2
	// (write-only), exactly the flags original_source's
	// proc_create_runprogram assigns by call order (see DESIGN.md).
	perms := [3]int{fd.FD_READ, fd.FD_WRITE, fd.FD_WRITE}
	for i := 0; i < 3; i++ {
		if err := p.Fds.CreateAt(i, fd.Console, perms[i]); err != 0 {
			p.Fds.Teardown()
			pt.Free(p.Pid)
			if p.Cwd != nil {
				p.Cwd.Release()
			}
			return nil, err
		}
	}
	return p, 0
}

// teardown frees every resource a process (published or not) owns: its
// address space, FD table, cwd reference, and PID.
func (p *Process) teardown(cm *mem.Coremap_t, pt *Pidtab_t) {
	if p.Vm != nil {
		p.Vm.Destroy(cm)
	}
	p.Fds.Teardown()
	if p.Cwd != nil {
		p.Cwd.Release()
	}
	pt.Free(p.Pid)
}

/// Fork implements spec.md §4.G fork. trapframe is an opaque blob (the
/// real ISA/trapframe layout is out of this core's scope); prepareChild,
/// if non-nil, is invoked on the child's copy so a caller that does know
/// a concrete trapframe encoding can force its return value to 0 and
/// advance its program counter past the syscall instruction, per the
/// spec's step 4. Launching the child's thread into user mode (step 6)
/// is the caller's responsibility — this core has no ISA/trap-return
/// trampoline to do it with — so Fork returns the prepared child and its
/// trapframe copy rather than starting a goroutine itself.
func (parent *Process) Fork(pt *Pidtab_t, cm *mem.Coremap_t, trapframe []byte, prepareChild func([]byte)) (*Process, []byte, defs.Err_t) {
	parent.parentLock.Acquire(parent.SelfTid)

	child, err := CreateRunProgram(parent.Name, parent, pt)
	if err != 0 {
		parent.parentLock.Release(parent.SelfTid)
		return nil, nil, err
	}

	if err := parent.Fds.CopyInto(child.Fds); err != 0 {
		child.teardown(cm, pt)
		parent.parentLock.Release(parent.SelfTid)
		return nil, nil, err
	}

	childVm, err := parent.Vm.Copy(cm)
	if err != 0 {
		child.teardown(cm, pt)
		parent.parentLock.Release(parent.SelfTid)
		return nil, nil, err
	}
	child.Vm = childVm

	childTf := append([]byte(nil), trapframe...)
	if prepareChild != nil {
		prepareChild(childTf)
	}

	child.Index = len(parent.children)
	parent.children = append(parent.children, child)
	parent.runningChildren++

	parent.parentLock.Release(parent.SelfTid)
	return child, childTf, 0
}

// reapZombiesLocked implements exit step 1: destroy and drop every
// already-zombie child, compacting the survivors' indices. Must be called
// with self.parentLock held.
func (self *Process) reapZombiesLocked(cm *mem.Coremap_t, pt *Pidtab_t) {
	survivors := self.children[:0]
	for _, c := range self.children {
		if c.zombie {
			self.Acct.Add(c.Acct)
			c.teardown(cm, pt)
			continue
		}
		survivors = append(survivors, c)
	}
	self.children = survivors
	for i, c := range self.children {
		c.Index = i
	}
}

/// Exit implements spec.md §4.G exit(code), fixing the lock-ordering bug
/// spec.md §9 flags in the source this was distilled from (`_exit`
/// acquiring its own parent-lock, then its parent's): this core acquires
/// the parent's lock first and its own second, reversing the order, so
/// every cross-process acquisition in this core goes parent-before-child
/// consistently. self must have no other code path holding self's or
/// parent's parentLock (callers invoke this once, when the process's
/// single thread actually exits).
func (self *Process) Exit(code int, cm *mem.Coremap_t, pt *Pidtab_t) {
	parent := self.Parent
	if parent != nil {
		parent.parentLock.Acquire(parent.SelfTid)
	}
	self.parentLock.Acquire(self.SelfTid)

	self.reapZombiesLocked(cm, pt)

	if parent == nil {
		// The root/kernel process has no one to report to.
		self.parentLock.Release(self.SelfTid)
		self.teardown(cm, pt)
		return
	}

	// Benign, intentional race: reading parent.zombie without holding
	// parent.Parent's lock, matching original_source's unlocked peek at
	// parent_process->p_is_zombie. Safe because a process is never freed
	// until reaped (spec.md Process Identifier lifecycle invariant), so
	// there is no use-after-free even though the flag itself is racy.
	if parent.zombie {
		self.parentLock.Release(self.SelfTid)
		parent.parentLock.Release(parent.SelfTid)
		self.teardown(cm, pt)
		return
	}

	parent.runningChildren--
	self.exitCode = defs.MkwaitExit(code)
	self.zombie = true
	parent.parentCV.Broadcast(&parent.parentLock, parent.SelfTid)

	self.parentLock.Release(self.SelfTid)
	parent.parentLock.Release(parent.SelfTid)
}

/// Waitpid implements spec.md §4.G waitpid(pid, status, options). A nil
/// status is a legal no-op copy-out, per original_source's sys_waitpid.c
/// (spec.md §9 supplemented feature).
func (self *Process) Waitpid(pid int, status *int, options int, pt *Pidtab_t, cm *mem.Coremap_t) (int, defs.Err_t) {
	if options != 0 {
		return 0, -defs.EINVAL
	}
	if pt.Status(pid) != PidAllocated {
		return 0, -defs.ESRCH
	}

	self.parentLock.Acquire(self.SelfTid)
	defer self.parentLock.Release(self.SelfTid)

	idx := -1
	for i, c := range self.children {
		if c.Pid == pid {
			idx = i
			break
		}
	}
	if idx == -1 {
		return 0, -defs.ECHILD
	}

	child := self.children[idx]
	for !child.zombie {
		self.parentCV.Wait(&self.parentLock, self.SelfTid)
	}

	if status != nil {
		*status = child.exitCode
	}
	self.Acct.Add(child.Acct)
	child.teardown(cm, pt)

	self.children = append(self.children[:idx], self.children[idx+1:]...)
	for i, c := range self.children {
		c.Index = i
	}

	return pid, 0
}

/// Getpid returns the process's PID; infallible.
func (p *Process) Getpid() int {
	return p.Pid
}

/// Sbrk grows or shrinks the heap by amount bytes; see vm.Vm_t.Sbrk.
func (p *Process) Sbrk(amount int) (uintptr, defs.Err_t) {
	return p.Vm.Sbrk(amount)
}
