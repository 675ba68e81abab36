// Package kernel wires together the core map, PID table, software TLB and
// the root process into one bootable unit, mirroring the teacher's single
// "main does init, then runs" bootstrap shape (biscuit has no separate
// init package; main.go itself calls each subsystem's bootstrap function in
// sequence and logs as it goes). BootConfig gathers the handful of
// bootstrap parameters (spec.md's "Configuration" ambient-stack note) that
// a real kernel would read from the boot loader or a config file.
package kernel

import (
	"github.com/JoshuaWu7/kernel/defs"
	"github.com/JoshuaWu7/kernel/fault"
	"github.com/JoshuaWu7/kernel/klog"
	"github.com/JoshuaWu7/kernel/mem"
	"github.com/JoshuaWu7/kernel/proc"

	"github.com/pbnjay/memory"
	"go.uber.org/automaxprocs/maxprocs"
)

/// defaultTlbCapacity is the number of software-TLB slots; real hardware
/// TLBs are tiny (MIPS r3000: 64 entries), and this core keeps that order
/// of magnitude so eviction pressure in tests resembles the original.
const defaultTlbCapacity = 64

/// defaultPhysFraction is the share of host RAM this core claims for its
/// simulated physical window when BootConfig.PhysMemBytes is left at 0 —
/// a real embedded target has a tiny, fixed RAM size, not "whatever the
/// host has", so Bootstrap only ever samples a modest slice of it.
const defaultPhysFraction = 64

/// minPhysBytes is the floor used if TotalMemory can't be determined (e.g.
/// cgroup-less container weirdness) or the computed fraction rounds to
/// zero.
const minPhysBytes = 16 * 1024 * 1024

/// BootConfig collects the parameters Bootstrap needs. A zero BootConfig
/// is valid: PhysMemBytes of 0 means "derive from host memory",
/// TlbCapacity of 0 means defaultTlbCapacity, and a nil Logger means
/// klog.Default().
type BootConfig struct {
	PhysMemBytes uint64
	TlbCapacity  int
	Logger       *klog.Logger_t
}

/// Kernel_t is the set of live subsystems a booted core needs to run
/// processes: the frame allocator, the PID table, the software TLB, the
/// root process, and the logger every subsystem was handed at boot.
type Kernel_t struct {
	Cm   *mem.Coremap_t
	Pt   *proc.Pidtab_t
	Tlb  *fault.Tlb_t
	Root *proc.Process
	Log  *klog.Logger_t
}

/// Bootstrap brings up a core map over a simulated physical memory window,
/// an empty PID table, a software TLB, and a root process ("the kernel
/// process" in biscuit's terms, the ancestor every other process's
/// waitpid eventually bottoms out at), in the same order the teacher's
/// main.go sequences subsystem bootstrap calls: memory first, then
/// process/scheduling state.
func Bootstrap(cfg BootConfig) *Kernel_t {
	log := cfg.Logger
	if log == nil {
		log = klog.Default()
	}

	// automaxprocs matches GOMAXPROCS to the container's CPU quota. This
	// core models a single CPU (spec.md Non-goals), so the result is
	// purely informational — logged, never acted on — exactly as
	// SPEC_FULL.md's ambient-stack note describes.
	undo, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Printf(format+"\n", args...)
	}))
	if err != nil {
		log.Printf("kernel: automaxprocs: %v (continuing on GOMAXPROCS as set)\n", err)
	}
	if undo != nil {
		defer undo()
	}

	physBytes := cfg.PhysMemBytes
	if physBytes == 0 {
		physBytes = memory.TotalMemory() / defaultPhysFraction
		if physBytes == 0 {
			physBytes = minPhysBytes
		}
	}
	log.Printf("kernel: simulated physical window = %d bytes (%d frames)\n",
		physBytes, physBytes/uint64(defs.PGSIZE))

	rs := mem.NewRamStealer(0, mem.Pa_t(physBytes))
	cm := mem.Bootstrap(rs)
	log.Printf("kernel: core map ready, %d usable frames\n", cm.NumFrames())

	pt := proc.NewPidtab()

	tlbCap := cfg.TlbCapacity
	if tlbCap <= 0 {
		tlbCap = defaultTlbCapacity
	}
	tlb := fault.NewTlb(tlbCap)

	root, rerr := proc.CreateRunProgram("kernel", nil, pt)
	if rerr != 0 {
		panic("kernel: failed to create root process: " + rerr.Error())
	}
	log.Printf("kernel: root process pid=%d\n", root.Getpid())

	return &Kernel_t{Cm: cm, Pt: pt, Tlb: tlb, Root: root, Log: log}
}

/// Shutdown tears down the root process, freeing its address space, FD
/// table and PID. It is the caller's responsibility to have already
/// waited on every other process the root spawned.
func (k *Kernel_t) Shutdown() {
	k.Root.Exit(0, k.Cm, k.Pt)
}
