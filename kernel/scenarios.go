// scenarios.go exercises the end-to-end lifecycles spec.md §8 describes,
// wiring vm, fault, fd and proc together the way a real syscall dispatcher
// would. They double as the cmd/kernel demo's script and as the fixtures
// kernel_test.go asserts spec.md's quantified expectations against.
package kernel

import (
	"github.com/JoshuaWu7/kernel/defs"
	"github.com/JoshuaWu7/kernel/fault"
	"github.com/JoshuaWu7/kernel/fd"
	"github.com/JoshuaWu7/kernel/proc"
)

/// HelloWorldResult reports what spec.md §8 scenario 1 expects to observe.
type HelloWorldResult struct {
	FramesAllocated int
	FramesFreed     bool
	ExitStatus      int
}

func allocatedCount(k *Kernel_t) int {
	n := 0
	for _, f := range k.Cm.Snapshot() {
		if f.Allocated {
			n++
		}
	}
	return n
}

/// RunHelloWorld implements spec.md §8 scenario 1: a process maps one
/// code segment and one data segment, touches both (simulating the
/// loader) plus one stack page (simulating the first push before
/// write(1, "hi\n", 3)), then exits. Exactly three frames should be live
/// at the high-water mark, and all three freed once the parent reaps it.
func RunHelloWorld(k *Kernel_t) (HelloWorldResult, error) {
	before := allocatedCount(k)

	p, err := proc.CreateRunProgram("hello", k.Root, k.Pt)
	if err != 0 {
		return HelloWorldResult{}, err
	}

	p.Vm.DefineRegion(0x400000, 0x1000, true, false, true) // code: r-x
	p.Vm.DefineRegion(0x500000, 0x1000, true, true, false) // data: r-w
	p.Vm.PrepareLoad()

	if err := fault.Handle(p.Vm, k.Cm, k.Tlb, p.Asid, fault.READ, 0x400000); err != 0 {
		return HelloWorldResult{}, err
	}
	if err := fault.Handle(p.Vm, k.Cm, k.Tlb, p.Asid, fault.WRITE, 0x500000); err != 0 {
		return HelloWorldResult{}, err
	}
	p.Vm.CompleteLoad()

	// write(1, "hi\n", 3): the first stack push below an empty
	// [stackTop, stackBase) range, forcing one page of lazy growth.
	stackWriteVA := p.Vm.StackTop() - 1
	if err := fault.Handle(p.Vm, k.Cm, k.Tlb, p.Asid, fault.WRITE, stackWriteVA); err != 0 {
		return HelloWorldResult{}, err
	}

	stdout, ok := p.Fds.Get(1)
	if !ok {
		return HelloWorldResult{}, -defs.EBADF
	}
	stdout.File.SetSeek(stdout.File.Seek() + 3)

	peak := allocatedCount(k) - before

	p.Exit(0, k.Cm, k.Pt)
	var status int
	if _, werr := k.Root.Waitpid(p.Pid, &status, 0, k.Pt, k.Cm); werr != 0 {
		return HelloWorldResult{}, werr
	}

	return HelloWorldResult{
		FramesAllocated: peak,
		FramesFreed:     allocatedCount(k) == before,
		ExitStatus:      status,
	}, nil
}

/// ForkWaitpidResult reports spec.md §8 scenario 2's observations.
type ForkWaitpidResult struct {
	ChildPid      int
	WaitStatus    int
	SecondWaitErr defs.Err_t
}

/// RunForkWaitpid implements spec.md §8 scenario 2: fork a child off the
/// root process, the child exits(7), the parent's first waitpid returns
/// the child's PID with _MKWAIT_EXIT(7), and an immediate second waitpid
/// on the same PID fails (the PID has already been recycled to the
/// free pool).
func RunForkWaitpid(k *Kernel_t) (ForkWaitpidResult, error) {
	child, _, err := k.Root.Fork(k.Pt, k.Cm, make([]byte, 8), nil)
	if err != 0 {
		return ForkWaitpidResult{}, err
	}
	childPid := child.Pid

	child.Exit(7, k.Cm, k.Pt)

	var status int
	gotPid, werr := k.Root.Waitpid(childPid, &status, 0, k.Pt, k.Cm)
	if werr != 0 {
		return ForkWaitpidResult{}, werr
	}

	_, secondErr := k.Root.Waitpid(childPid, &status, 0, k.Pt, k.Cm)

	return ForkWaitpidResult{
		ChildPid:      gotPid,
		WaitStatus:    status,
		SecondWaitErr: secondErr,
	}, nil
}

/// Dup2Result reports spec.md §8 scenario 3's observation: dup2'd FDs
/// share one seek offset.
type Dup2Result struct {
	SeekViaDup int64
}

/// RunDup2SharesSeek implements spec.md §8 scenario 3: open a file at the
/// lowest free slot (3, since 0-2 are stdio), dup2(3, 4), lseek(3, 10,
/// SET), then lseek(4, 0, CUR) must read back 10.
func RunDup2SharesSeek(k *Kernel_t) (Dup2Result, error) {
	p, err := proc.CreateRunProgram("dup2-demo", k.Root, k.Pt)
	if err != 0 {
		return Dup2Result{}, err
	}
	defer func() {
		p.Exit(0, k.Cm, k.Pt)
		var status int
		k.Root.Waitpid(p.Pid, &status, 0, k.Pt, k.Cm)
	}()

	slot, err := p.Fds.Create(fd.Console, fd.FD_READ|fd.FD_WRITE)
	if err != 0 {
		return Dup2Result{}, err
	}
	if _, err := p.Fds.Dup2(slot, slot+1); err != 0 {
		return Dup2Result{}, err
	}

	original, _ := p.Fds.Get(slot)
	original.File.SetSeek(10)

	dupped, _ := p.Fds.Get(slot + 1)
	return Dup2Result{SeekViaDup: dupped.File.Seek()}, nil
}

/// StackGrowthBoundResult reports spec.md §8 scenario 4's observations.
type StackGrowthBoundResult struct {
	StackFaultRejected defs.Err_t
	SbrkRejected       defs.Err_t
}

/// RunStackGrowthBound implements spec.md §8 scenario 4: grow the heap via
/// sbrk until heap.end + PAGE_SIZE == stack_top, then confirm that both a
/// further stack-growth fault and a further sbrk are rejected.
func RunStackGrowthBound(k *Kernel_t) (StackGrowthBoundResult, error) {
	p, err := proc.CreateRunProgram("stack-bound-demo", k.Root, k.Pt)
	if err != 0 {
		return StackGrowthBoundResult{}, err
	}
	defer func() {
		p.Exit(0, k.Cm, k.Pt)
		var status int
		k.Root.Waitpid(p.Pid, &status, 0, k.Pt, k.Cm)
	}()

	p.Vm.DefineRegion(0x400000, defs.PGSIZE, true, false, true)
	p.Vm.PrepareLoad()
	p.Vm.CompleteLoad()

	for {
		_, heapEnd := p.Vm.HeapBounds()
		if heapEnd+uintptr(defs.PGSIZE) == p.Vm.StackTop() {
			break
		}
		if _, serr := p.Sbrk(defs.PGSIZE); serr != 0 {
			return StackGrowthBoundResult{}, serr
		}
	}

	stackFaultVA := p.Vm.StackTop() - 1
	stackErr := fault.Handle(p.Vm, k.Cm, k.Tlb, p.Asid, fault.WRITE, stackFaultVA)

	_, sbrkErr := p.Sbrk(defs.PGSIZE)

	return StackGrowthBoundResult{
		StackFaultRejected: stackErr,
		SbrkRejected:       sbrkErr,
	}, nil
}
