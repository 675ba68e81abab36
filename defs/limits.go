package defs

/// PGSHIFT is the base-2 exponent for the page size (kept from teacher's
/// mem package, which this core also uses verbatim).
const PGSHIFT uint = 12

/// PGSIZE is the size of a single page in bytes.
const PGSIZE int = 1 << PGSHIFT

/// PGOFFSET masks offsets within a page.
const PGOFFSET uintptr = uintptr(PGSIZE) - 1

/// PGMASK masks the page number of an address.
const PGMASK uintptr = ^PGOFFSET

/// USERSTACK is the top-of-user-memory constant: the initial, highest valid
/// stack virtual address. It is deliberately modest (rather than a real
/// 48-bit VA) since this core never backs it with real hardware paging.
const USERSTACK uintptr = 0x80000000

/// OPEN_MAX is the fixed width of a process's FD table.
const OPEN_MAX = 128

/// PID_MIN and PID_MAX bound the allocatable process-identifier range.
/// PIDs 0 and 1 are never handed out: 0 means "no PID"/allocation failure,
/// and 1 is reserved but not assigned to any process. The root process
/// kernel.Bootstrap creates is allocated like any other and gets PID_MIN.
const (
	PID_MIN = 2
	PID_MAX = 4096
)

/// Tid_t identifies a thread of execution for lock-ownership tracking.
/// Named after the teacher's Tid_t (see vm.Vm_t.Pgfault in the teacher's
/// as.go), which plays the same role for the fault handler's caller.
type Tid_t int64

