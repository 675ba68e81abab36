package proc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JoshuaWu7/kernel/defs"
	"github.com/JoshuaWu7/kernel/mem"
	"github.com/JoshuaWu7/kernel/proc"
)

func freshCoremap(t *testing.T) *mem.Coremap_t {
	t.Helper()
	rs := mem.NewRamStealer(0, mem.Pa_t(512*mem.PGSIZE))
	return mem.Bootstrap(rs)
}

func rootProcess(t *testing.T, pt *proc.Pidtab_t) *proc.Process {
	t.Helper()
	root, err := proc.CreateRunProgram("root", nil, pt)
	require.Zero(t, err)
	return root
}

func TestPidtabAllocatesLowestFreeAndReportsStatus(t *testing.T) {
	pt := proc.NewPidtab()
	p1 := pt.Allocate()
	p2 := pt.Allocate()
	require.Equal(t, defs.PID_MIN, p1)
	require.Equal(t, defs.PID_MIN+1, p2)
	require.Equal(t, proc.PidAllocated, pt.Status(p1))

	pt.Free(p1)
	require.Equal(t, proc.PidFree, pt.Status(p1))
	p3 := pt.Allocate()
	require.Equal(t, p1, p3, "a freed pid must be reused before allocating a new one")

	require.Equal(t, proc.PidInvalid, pt.Status(0))
	require.Equal(t, proc.PidInvalid, pt.Status(defs.PID_MAX+1))
}

func TestPidtabFreeDoubleFreePanics(t *testing.T) {
	pt := proc.NewPidtab()
	pid := pt.Allocate()
	pt.Free(pid)
	require.Panics(t, func() { pt.Free(pid) })
}

func TestCreateRunProgramSeedsStdio(t *testing.T) {
	pt := proc.NewPidtab()
	root := rootProcess(t, pt)

	_, ok0 := root.Fds.Get(0)
	_, ok1 := root.Fds.Get(1)
	_, ok2 := root.Fds.Get(2)
	require.True(t, ok0)
	require.True(t, ok1)
	require.True(t, ok2)
}

// TestForkWaitpid implements spec.md §8 scenario 2: fork, child exits(7),
// parent's waitpid returns the child's pid with _MKWAIT_EXIT(7); an
// immediate second waitpid on the same pid fails (the pid has already
// been returned to the free pool).
func TestForkWaitpid(t *testing.T) {
	pt := proc.NewPidtab()
	cm := freshCoremap(t)
	root := rootProcess(t, pt)

	child, childTf, err := root.Fork(pt, cm, []byte{0xAA, 0xBB}, func(tf []byte) { tf[0] = 0 })
	require.Zero(t, err)
	require.NotNil(t, child)
	require.Equal(t, byte(0), childTf[0])
	require.NotEqual(t, root.Pid, child.Pid)

	child.Exit(7, cm, pt)

	var status int
	gotPid, werr := root.Waitpid(child.Pid, &status, 0, pt, cm)
	require.Zero(t, werr)
	require.Equal(t, child.Pid, gotPid)
	require.Equal(t, defs.MkwaitExit(7), status)

	_, werr2 := root.Waitpid(gotPid, &status, 0, pt, cm)
	require.NotZero(t, werr2, "a pid that has already been reaped and freed must not be waitable again")
}

func TestWaitpidOnNonChildFails(t *testing.T) {
	pt := proc.NewPidtab()
	cm := freshCoremap(t)
	root := rootProcess(t, pt)

	other, err := proc.CreateRunProgram("unrelated", nil, pt)
	require.Zero(t, err)

	_, werr := root.Waitpid(other.Pid, nil, 0, pt, cm)
	require.Equal(t, -defs.ECHILD, werr)
}

func TestWaitpidOnUnknownPidFails(t *testing.T) {
	pt := proc.NewPidtab()
	cm := freshCoremap(t)
	root := rootProcess(t, pt)

	_, werr := root.Waitpid(defs.PID_MAX, nil, 0, pt, cm)
	require.Equal(t, -defs.ESRCH, werr)
}

func TestWaitpidRejectsNonZeroOptions(t *testing.T) {
	pt := proc.NewPidtab()
	cm := freshCoremap(t)
	root := rootProcess(t, pt)
	_, werr := root.Waitpid(root.Pid, nil, 1, pt, cm)
	require.Equal(t, -defs.EINVAL, werr)
}

func TestExitOnRootProcessTearsDownWithoutParent(t *testing.T) {
	pt := proc.NewPidtab()
	cm := freshCoremap(t)
	root := rootProcess(t, pt)
	pid := root.Pid

	root.Exit(0, cm, pt)
	require.Equal(t, proc.PidFree, pt.Status(pid))
}

func TestForkChildInheritsCwdAndFdsIndependently(t *testing.T) {
	pt := proc.NewPidtab()
	cm := freshCoremap(t)
	root := rootProcess(t, pt)

	child, _, err := root.Fork(pt, cm, nil, nil)
	require.Zero(t, err)
	defer func() {
		child.Exit(0, cm, pt)
		root.Waitpid(child.Pid, nil, 0, pt, cm)
	}()

	// The root process itself has no cwd (it was created with parent ==
	// nil), so its child inherits none either; CreateRunProgram only
	// clones a cwd when the parent actually has one.
	require.Nil(t, root.Cwd)
	require.Nil(t, child.Cwd)

	_, ok := child.Fds.Get(1)
	require.True(t, ok, "the child must inherit seeded stdio")
}

func TestSbrkThroughProcess(t *testing.T) {
	pt := proc.NewPidtab()
	cm := freshCoremap(t)
	root := rootProcess(t, pt)

	root.Vm.PrepareLoad()
	start, _ := root.Vm.HeapBounds()
	old, err := root.Sbrk(defs.PGSIZE)
	require.Zero(t, err)
	require.Equal(t, start, old)
}
