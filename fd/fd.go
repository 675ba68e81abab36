// Package fd implements the file-descriptor layer of spec.md §4.F: an open
// file description shared (via aliasing) by every FD that refers to it,
// and the fixed-width per-process FD table. The backing file-system
// contract is out of this core's scope (spec.md §1 Non-goals), so Vnode_i
// stands in for it — a small interface any real VFS vnode (or, here, the
// console device) can satisfy — following the teacher's pattern of fd.Fd_t
// holding an fdops.Fdops_i rather than a concrete file type.
package fd

import (
	"github.com/JoshuaWu7/kernel/defs"
	"github.com/JoshuaWu7/kernel/spinlock"
)

/// Permission bits for an open file descriptor.
const (
	FD_READ  = 0x1
	FD_WRITE = 0x2
)

/// Vnode_i is the minimal file-system contract an open file description
/// needs: a name. The seek offset and the reference count live on File_t,
/// which the FD layer manages directly (spec.md §5 lock #8, "vnode
/// reference-count spinlock").
type Vnode_i interface {
	Name() string
}

/// File_t is the shared, reference-counted open file description: what
/// the teacher calls an Fd_t's Fops plus its own bookkeeping, split out
/// here because spec.md's dup2/table_copy both need independent FD slots
/// that alias one File_t and its seek offset.
type File_t struct {
	sl     spinlock.Spinlock_t // lock #8: vnode reference-count spinlock (leaf)
	Vnode  Vnode_i
	Perms  int
	refs   int
	offset int64
}

/// Open wraps an already-resolved vnode in a fresh, single-reference
/// File_t.
func Open(v Vnode_i, perms int) *File_t {
	return &File_t{Vnode: v, Perms: perms, refs: 1}
}

/// IncRef bumps the reference count, e.g. when a cwd is inherited across
/// fork or an FD is aliased by dup2/table_copy.
func (f *File_t) IncRef() {
	f.sl.Lock()
	f.refs++
	f.sl.Unlock()
}

// decref drops the reference count and reports whether it reached zero.
func (f *File_t) decref() bool {
	f.sl.Lock()
	defer f.sl.Unlock()
	f.refs--
	if f.refs < 0 {
		panic("fd: refcount underflow")
	}
	return f.refs == 0
}

/// Seek returns the current seek offset.
func (f *File_t) Seek() int64 {
	f.sl.Lock()
	defer f.sl.Unlock()
	return f.offset
}

/// SetSeek sets the seek offset, shared by every FD slot aliasing this
/// File_t — the mechanism behind spec.md §4.F's "dup2'd FDs share seek
/// offset and flags".
func (f *File_t) SetSeek(off int64) {
	f.sl.Lock()
	defer f.sl.Unlock()
	f.offset = off
}

/// Fd_t is one process FD-table slot: a reference to a shared File_t.
type Fd_t struct {
	File *File_t
}

/// Fdtable_t is a process's fixed-width, slot-addressed FD table
/// (spec.md §4.F / OPEN_MAX). Its own lock is spec.md §5 lock #3, taken
/// before any individual FD's state is touched.
type Fdtable_t struct {
	sl  spinlock.Spinlock_t // lock #3: FD-table lock (per process)
	fds [defs.OPEN_MAX]*Fd_t
}

/// NewFdtable returns an empty table.
func NewFdtable() *Fdtable_t {
	return &Fdtable_t{}
}

/// Get returns the FD at idx, if occupied and in range.
func (t *Fdtable_t) Get(idx int) (*Fd_t, bool) {
	t.sl.Lock()
	defer t.sl.Unlock()
	if idx < 0 || idx >= defs.OPEN_MAX || t.fds[idx] == nil {
		return nil, false
	}
	return t.fds[idx], true
}

/// Create allocates a new FD over v at the lowest free slot, per spec.md
/// §4.F fd_create. It fails EMFILE if the table is full.
func (t *Fdtable_t) Create(v Vnode_i, perms int) (int, defs.Err_t) {
	t.sl.Lock()
	defer t.sl.Unlock()

	for i := 0; i < defs.OPEN_MAX; i++ {
		if t.fds[i] == nil {
			t.fds[i] = &Fd_t{File: Open(v, perms)}
			return i, 0
		}
	}
	return 0, -defs.EMFILE
}

/// CreateAt places a new FD over v at the explicit slot pos, used by fork
/// to preserve FD numbering across table_copy. It fails EBADF if pos is
/// out of range or already occupied.
func (t *Fdtable_t) CreateAt(pos int, v Vnode_i, perms int) defs.Err_t {
	t.sl.Lock()
	defer t.sl.Unlock()

	if pos < 0 || pos >= defs.OPEN_MAX {
		return -defs.EBADF
	}
	if t.fds[pos] != nil {
		return -defs.EBADF
	}
	t.fds[pos] = &Fd_t{File: Open(v, perms)}
	return 0
}

/// Destroy implements spec.md §4.F fd_destroy: drop a reference to the
/// underlying File_t and clear the slot. Vnode_i has no close operation,
/// so when the last reference goes away the count reaches zero and no
/// vnode is closed.
func (t *Fdtable_t) Destroy(idx int) defs.Err_t {
	t.sl.Lock()
	if idx < 0 || idx >= defs.OPEN_MAX || t.fds[idx] == nil {
		t.sl.Unlock()
		return -defs.EBADF
	}
	fd := t.fds[idx]
	t.fds[idx] = nil
	t.sl.Unlock()

	fd.File.decref()
	return 0
}

/// Dup2 implements spec.md §4.F dup2: old == new is a no-op; otherwise the
/// new slot (if occupied) drops its reference and is then aliased onto old's File_t,
/// which now has one more reference and is shared between both slots
/// (same seek offset, same flags).
func (t *Fdtable_t) Dup2(old, new int) (int, defs.Err_t) {
	if old == new {
		return new, 0
	}

	t.sl.Lock()
	if old < 0 || old >= defs.OPEN_MAX || t.fds[old] == nil || new < 0 || new >= defs.OPEN_MAX {
		t.sl.Unlock()
		return 0, -defs.EBADF
	}
	oldFd := t.fds[old]
	victim := t.fds[new]
	t.fds[new] = &Fd_t{File: oldFd.File}
	oldFd.File.IncRef()
	t.sl.Unlock()

	if victim != nil {
		victim.File.decref()
	}
	return new, 0
}

/// CopyInto implements spec.md §4.F table_copy for slots 3..OPEN_MAX (0-2
/// are the console stdio FDs create_run_program seeds independently for
/// the child). Rather than reopening by pathname as original_source's
/// fd_table_copy_entries does, this core aliases each parent File_t into
/// the child with an incref — the behavior spec.md §9 explicitly
/// recommends over the original's independent-vnode reopen (see
/// DESIGN.md). Slots outside [3, OPEN_MAX) are skipped entirely, as
/// create_run_program already seeded 0-2 for the child.
func (t *Fdtable_t) CopyInto(child *Fdtable_t) defs.Err_t {
	t.sl.Lock()
	defer t.sl.Unlock()
	child.sl.Lock()
	defer child.sl.Unlock()

	for i := 3; i < defs.OPEN_MAX; i++ {
		fd := t.fds[i]
		if fd == nil {
			continue
		}
		fd.File.IncRef()
		child.fds[i] = &Fd_t{File: fd.File}
	}
	return 0
}

/// Teardown releases every occupied slot, used when a process is
/// destroyed (exit/reap or a failed fork's unwind).
func (t *Fdtable_t) Teardown() {
	t.sl.Lock()
	defer t.sl.Unlock()
	for i, fd := range t.fds {
		if fd == nil {
			continue
		}
		t.fds[i] = nil
		fd.File.decref()
	}
}

/// Cwd_t tracks a process's current working directory: a vnode reference
/// plus the canonical path string, matching the teacher's Cwd_t shape
/// minus the path-manipulation helpers (bpath/ustr), which belong to the
/// out-of-scope VFS layer.
type Cwd_t struct {
	File *File_t
	Path string
}

/// NewRootCwd constructs a Cwd_t rooted at "/" over the given vnode.
func NewRootCwd(v Vnode_i) *Cwd_t {
	return &Cwd_t{File: Open(v, FD_READ), Path: "/"}
}

/// Clone bumps the underlying vnode's reference count and returns a new
/// Cwd_t sharing it — used to inherit a parent's cwd at
/// create_run_program, per spec.md §4.G.
func (c *Cwd_t) Clone() *Cwd_t {
	c.File.IncRef()
	return &Cwd_t{File: c.File, Path: c.Path}
}

/// Release drops this Cwd_t's reference to its vnode.
func (c *Cwd_t) Release() {
	c.File.decref()
}

/// consoleVnode_t is the only Vnode_i this core has a concrete
/// implementation of: the console device every process's stdio is seeded
/// from (spec.md §4.G create_run_program, defs.ConsoleDevice).
type consoleVnode_t struct{}

func (consoleVnode_t) Name() string { return defs.ConsoleDevice }

/// Console is the shared console vnode singleton.
var Console Vnode_i = consoleVnode_t{}
