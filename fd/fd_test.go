package fd_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JoshuaWu7/kernel/defs"
	"github.com/JoshuaWu7/kernel/fd"
)

type nameVnode_t string

func (n nameVnode_t) Name() string { return string(n) }

func TestCreateUsesLowestFreeSlot(t *testing.T) {
	t1 := fd.NewFdtable()
	idx, err := t1.Create(nameVnode_t("a"), fd.FD_READ)
	require.Zero(t, err)
	require.Equal(t, 0, idx)

	idx2, err := t1.Create(nameVnode_t("b"), fd.FD_READ)
	require.Zero(t, err)
	require.Equal(t, 1, idx2)

	require.Zero(t, t1.Destroy(0))
	idx3, err := t1.Create(nameVnode_t("c"), fd.FD_READ)
	require.Zero(t, err)
	require.Equal(t, 0, idx3, "the freed slot must be reused before growing further")
}

func TestCreateFailsWhenTableFull(t *testing.T) {
	table := fd.NewFdtable()
	for i := 0; i < defs.OPEN_MAX; i++ {
		_, err := table.Create(nameVnode_t("x"), fd.FD_READ)
		require.Zero(t, err)
	}
	_, err := table.Create(nameVnode_t("overflow"), fd.FD_READ)
	require.Equal(t, -defs.EMFILE, err)
}

func TestCreateAtRejectsOccupiedOrOutOfRange(t *testing.T) {
	table := fd.NewFdtable()
	require.Zero(t, table.CreateAt(5, nameVnode_t("a"), fd.FD_READ))
	require.Equal(t, -defs.EBADF, table.CreateAt(5, nameVnode_t("b"), fd.FD_READ))
	require.Equal(t, -defs.EBADF, table.CreateAt(defs.OPEN_MAX, nameVnode_t("c"), fd.FD_READ))
	require.Equal(t, -defs.EBADF, table.CreateAt(-1, nameVnode_t("d"), fd.FD_READ))
}

func TestDestroyClearsSlotOnLastReference(t *testing.T) {
	table := fd.NewFdtable()
	idx, err := table.Create(nameVnode_t("a"), fd.FD_READ)
	require.Zero(t, err)
	require.Zero(t, table.Destroy(idx))

	_, ok := table.Get(idx)
	require.False(t, ok)
	require.Equal(t, -defs.EBADF, table.Destroy(idx), "destroying an empty slot again must fail")
}

// TestDup2SharesSeek implements spec.md §8 scenario 3: dup2'd FDs share
// one seek offset.
func TestDup2SharesSeek(t *testing.T) {
	table := fd.NewFdtable()
	old, err := table.Create(nameVnode_t("F"), fd.FD_READ|fd.FD_WRITE)
	require.Zero(t, err)

	newIdx, err := table.Dup2(old, old+1)
	require.Zero(t, err)
	require.Equal(t, old+1, newIdx)

	oldFd, ok := table.Get(old)
	require.True(t, ok)
	oldFd.File.SetSeek(10)

	newFd, ok := table.Get(newIdx)
	require.True(t, ok)
	require.Equal(t, int64(10), newFd.File.Seek())
}

func TestDup2OntoSelfIsNoop(t *testing.T) {
	table := fd.NewFdtable()
	idx, err := table.Create(nameVnode_t("F"), fd.FD_READ)
	require.Zero(t, err)
	got, err := table.Dup2(idx, idx)
	require.Zero(t, err)
	require.Equal(t, idx, got)
}

func TestDup2ClosesVictimAtTargetSlot(t *testing.T) {
	table := fd.NewFdtable()
	src, _ := table.Create(nameVnode_t("F"), fd.FD_READ)
	victim, _ := table.Create(nameVnode_t("G"), fd.FD_READ)

	_, err := table.Dup2(src, victim)
	require.Zero(t, err)

	got, ok := table.Get(victim)
	require.True(t, ok)
	require.Equal(t, "F", got.File.Vnode.Name())
}

// TestCopyIntoAliasesSlotsAboveStdio implements the aliasing-with-incref
// table_copy semantics spec.md §9 recommends (see DESIGN.md): a
// parent/child pair of FDs at the same slot share one File_t and its seek
// offset after fork.
func TestCopyIntoAliasesSlotsAboveStdio(t *testing.T) {
	parent := fd.NewFdtable()
	require.Zero(t, parent.CreateAt(0, nameVnode_t("con:"), fd.FD_READ))
	require.Zero(t, parent.CreateAt(1, nameVnode_t("con:"), fd.FD_WRITE))
	require.Zero(t, parent.CreateAt(2, nameVnode_t("con:"), fd.FD_WRITE))
	slot, err := parent.Create(nameVnode_t("F"), fd.FD_READ|fd.FD_WRITE)
	require.Zero(t, err)
	require.Equal(t, 3, slot)

	parentFd, _ := parent.Get(slot)
	parentFd.File.SetSeek(42)

	child := fd.NewFdtable()
	require.Zero(t, parent.CopyInto(child))

	childFd, ok := child.Get(slot)
	require.True(t, ok)
	require.Equal(t, int64(42), childFd.File.Seek(), "child must alias the parent's seek offset, not reopen at 0")

	childFd.File.SetSeek(99)
	require.Equal(t, int64(99), parentFd.File.Seek(), "the File_t must be shared, not copied")

	_, stdinCopied := child.Get(0)
	require.False(t, stdinCopied, "CopyInto must skip slots 0-2; create_run_program seeds those independently")
}

func TestCwdCloneAndRelease(t *testing.T) {
	root := fd.NewRootCwd(nameVnode_t("/"))
	child := root.Clone()
	require.Equal(t, "/", child.Path)
	child.Release()
	root.Release()
}

func TestConsoleVnodeName(t *testing.T) {
	require.Equal(t, defs.ConsoleDevice, fd.Console.Name())
}
