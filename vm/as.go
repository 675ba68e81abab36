// Package vm implements the per-process address space of spec.md §4.D:
// a segment list (heap always occupying slot 0), a software page table
// keyed by virtual page number, and the user stack region. It is built
// directly on mem.Coremap_t for frame allocation, following the teacher's
// vm/as.go Vm_t — same spinlock-guarded-array shape, same Lock/Unlock
// naming idiom — generalized from biscuit's x86 Pmap_t to the spec's
// simpler segment+PTE-map model.
package vm

import (
	"github.com/JoshuaWu7/kernel/defs"
	"github.com/JoshuaWu7/kernel/mem"
	"github.com/JoshuaWu7/kernel/spinlock"
	"github.com/JoshuaWu7/kernel/util"
)

/// PGSIZE is re-exported from defs for callers that spell vm.PGSIZE.
const PGSIZE = defs.PGSIZE

/// Vpn_t is a virtual page number: a page-aligned virtual address.
type Vpn_t uintptr

/// Pte_t is one page-table entry: a virtual page mapped to a physical
/// frame. Pointer identity is stable once created, so the fault handler
/// can hand a *Pte_t to the TLB-install step without re-locking.
type Pte_t struct {
	Vpn Vpn_t
	Ppn mem.Pa_t
}

/// Segment_t is one mapped region of the address space (spec.md §4.D).
/// OriginallyWritable is the sentinel prepare_load/complete_load saves the
/// true writability flag into while a segment is temporarily forced
/// writable for loading.
type Segment_t struct {
	Start, End         uintptr
	Readable, Writable bool
	Exec               bool
	OriginallyWritable bool
}

/// Invalidator_i is the TLB-side of Activate: anything that can drop every
/// cached translation for the current CPU. fault.Tlb_t satisfies this
/// structurally; vm does not import fault, to avoid an import cycle.
type Invalidator_i interface {
	InvalidateAll()
}

/// Vm_t is a process's address space: segs[0] is always the heap
/// (possibly empty, start==end==0 until prepare_load runs); segs[1:] are
/// the loaded regions defined by DefineRegion. ptes holds the software
/// page table. Two spinlocks guard the two arrays independently, matching
/// spec.md §5's lock-ordering inventory (segment lock before page-table
/// lock).
type Vm_t struct {
	segLock spinlock.Spinlock_t
	segs    []*Segment_t

	pteLock spinlock.Spinlock_t
	ptes    map[Vpn_t]*Pte_t

	stackBase uintptr
	stackTop  uintptr
}

/// Create returns a fresh address space: heap slot present but empty,
/// no page table entries, stack spanning nothing yet (base==top==
/// USERSTACK).
func Create() *Vm_t {
	as := &Vm_t{
		ptes: make(map[Vpn_t]*Pte_t),
	}
	as.segs = append(as.segs, &Segment_t{Readable: true, Writable: true})
	as.stackBase = defs.USERSTACK
	as.stackTop = defs.USERSTACK
	return as
}

/// DefineRegion rounds va/sz to page boundaries and appends a new segment
/// with the given permissions. It returns the segment so callers (the
/// loader) can reference it directly.
func (as *Vm_t) DefineRegion(va, sz uintptr, readable, writable, exec bool) *Segment_t {
	start := util.Rounddown(va, uintptr(PGSIZE))
	end := util.Roundup(va+sz, uintptr(PGSIZE))
	seg := &Segment_t{Start: start, End: end, Readable: readable, Writable: writable, Exec: exec}

	as.segLock.Lock()
	defer as.segLock.Unlock()
	as.segs = append(as.segs, seg)
	return seg
}

/// PrepareLoad temporarily forces every executable segment writable (so
/// the loader can write initial contents into what is otherwise read-only
/// text), saving the true flag in OriginallyWritable, and sets the heap to
/// begin immediately above the highest end of any loaded segment.
func (as *Vm_t) PrepareLoad() {
	as.segLock.Lock()
	defer as.segLock.Unlock()

	var maxEnd uintptr
	for i, seg := range as.segs {
		if i == 0 {
			continue // heap
		}
		if seg.Exec {
			seg.OriginallyWritable = seg.Writable
			seg.Writable = true
		}
		if seg.End > maxEnd {
			maxEnd = seg.End
		}
	}
	heap := as.segs[0]
	heap.Start = maxEnd
	heap.End = maxEnd
}

/// CompleteLoad restores the true writability of every executable segment
/// that PrepareLoad forced writable.
func (as *Vm_t) CompleteLoad() {
	as.segLock.Lock()
	defer as.segLock.Unlock()

	for i, seg := range as.segs {
		if i == 0 {
			continue
		}
		if seg.Exec {
			seg.Writable = seg.OriginallyWritable
		}
	}
}

/// DefineStack returns stack_top, the initial user stack pointer.
func (as *Vm_t) DefineStack() uintptr {
	as.segLock.Lock()
	defer as.segLock.Unlock()
	return as.stackTop
}

/// StackBase returns the immutable top-of-memory bound of the stack
/// region.
func (as *Vm_t) StackBase() uintptr {
	as.segLock.Lock()
	defer as.segLock.Unlock()
	return as.stackBase
}

/// StackTop returns the current lowest committed stack address.
func (as *Vm_t) StackTop() uintptr {
	as.segLock.Lock()
	defer as.segLock.Unlock()
	return as.stackTop
}

/// GrowStack commits one more page below the current stack_top, provided
/// doing so would not collide with the heap. It reports whether growth
/// happened. The collision test uses >= against stack_top (not >), matching
/// Sbrk's boundary and original_source's generic_vm.c: growth is only
/// granted while heap.End + PGSIZE < stack_top, strictly.
func (as *Vm_t) GrowStack() bool {
	as.segLock.Lock()
	defer as.segLock.Unlock()

	heap := as.segs[0]
	if heap.End+uintptr(PGSIZE) >= as.stackTop {
		return false
	}
	as.stackTop -= uintptr(PGSIZE)
	return true
}

/// HeapBounds returns the heap segment's current [start, end).
func (as *Vm_t) HeapBounds() (start, end uintptr) {
	as.segLock.Lock()
	defer as.segLock.Unlock()
	heap := as.segs[0]
	return heap.Start, heap.End
}

/// Sbrk grows (amount > 0) or shrinks (amount < 0) the heap by amount
/// bytes, which must be a PGSIZE multiple, and returns the heap's previous
/// end (the POSIX brk/sbrk convention). Collision with the stack and
/// underflow below heap.start are both rejected with EINVAL; the collision
/// test uses >= against stack_top (not >), resolving spec.md §4.D/§8's
/// boundary case the way original_source's sys_sbrk.c does.
func (as *Vm_t) Sbrk(amount int) (uintptr, defs.Err_t) {
	if amount%PGSIZE != 0 {
		return 0, -defs.EINVAL
	}

	as.segLock.Lock()
	defer as.segLock.Unlock()

	heap := as.segs[0]
	newEnd := int(heap.End) + amount
	if newEnd < 0 || uintptr(newEnd) < heap.Start {
		return 0, -defs.EINVAL
	}
	if uintptr(newEnd) >= as.stackTop {
		return 0, -defs.EINVAL
	}

	old := heap.End
	heap.End = uintptr(newEnd)
	return old, 0
}

/// FindSegment returns the segment containing the page-aligned address
/// pageVA, excluding the heap slot while it is empty (start==end).
func (as *Vm_t) FindSegment(pageVA uintptr) (*Segment_t, bool) {
	as.segLock.Lock()
	defer as.segLock.Unlock()

	for _, seg := range as.segs {
		if seg.Start == seg.End {
			continue
		}
		if pageVA >= seg.Start && pageVA < seg.End {
			return seg, true
		}
	}
	return nil, false
}

/// Lookup returns the PTE for vpn, if one has been created.
func (as *Vm_t) Lookup(vpn Vpn_t) (*Pte_t, bool) {
	as.pteLock.Lock()
	defer as.pteLock.Unlock()
	p, ok := as.ptes[vpn]
	return p, ok
}

/// CreatePTE allocates a frame and maps vpn to it, or returns the existing
/// mapping if one was created concurrently between the caller's Lookup and
/// this call.
func (as *Vm_t) CreatePTE(vpn Vpn_t, cm *mem.Coremap_t) (*Pte_t, defs.Err_t) {
	as.pteLock.Lock()
	defer as.pteLock.Unlock()

	if p, ok := as.ptes[vpn]; ok {
		return p, 0
	}
	pa := cm.Alloc(1)
	if pa == 0 {
		return nil, -defs.ENOMEM
	}
	p := &Pte_t{Vpn: vpn, Ppn: pa}
	as.ptes[vpn] = p
	return p, 0
}

/// Activate invalidates every TLB entry for the current CPU, as on a
/// context switch into this address space. t is accepted as an interface
/// so vm need not import the fault package.
func (as *Vm_t) Activate(t Invalidator_i) {
	t.InvalidateAll()
}

/// Deactivate is a no-op, per spec.md §4.D.
func (as *Vm_t) Deactivate() {}

/// Copy performs the deep copy of spec.md §4.D: clone every non-heap
/// segment descriptor, carry heap and stack bounds verbatim, and for every
/// PTE in the source allocate a fresh frame, copy its contents, and insert
/// the new mapping. On a mid-copy allocation failure the partially built
/// address space is torn down and the error is returned; the source
/// address space is never mutated.
func (as *Vm_t) Copy(cm *mem.Coremap_t) (*Vm_t, defs.Err_t) {
	nas := Create()

	as.segLock.Lock()
	for i, seg := range as.segs {
		if i == 0 {
			continue
		}
		cp := *seg
		nas.segs = append(nas.segs, &cp)
	}
	nas.segs[0].Start = as.segs[0].Start
	nas.segs[0].End = as.segs[0].End
	nas.stackBase = as.stackBase
	nas.stackTop = as.stackTop
	as.segLock.Unlock()

	as.pteLock.Lock()
	defer as.pteLock.Unlock()

	for vpn, pte := range as.ptes {
		newFrame := cm.Alloc(1)
		if newFrame == 0 {
			nas.Destroy(cm)
			return nil, -defs.ENOMEM
		}
		copy(cm.Dmap(newFrame), cm.Dmap(pte.Ppn))
		nas.ptes[vpn] = &Pte_t{Vpn: vpn, Ppn: newFrame}
	}
	return nas, 0
}

/// Destroy frees every frame mapped by the page table, drops every PTE,
/// and empties the segment list, per spec.md §4.D.
func (as *Vm_t) Destroy(cm *mem.Coremap_t) {
	as.pteLock.Lock()
	for _, pte := range as.ptes {
		cm.FreePage(pte.Ppn)
	}
	as.ptes = make(map[Vpn_t]*Pte_t)
	as.pteLock.Unlock()

	as.segLock.Lock()
	as.segs = nil
	as.segLock.Unlock()
}
