package mem_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JoshuaWu7/kernel/mem"
)

// tenFrameCoremap returns a core map with exactly 10 usable frames, sized
// so Bootstrap's own bookkeeping reservation consumes exactly one frame
// of an 11-frame window.
func tenFrameCoremap(t *testing.T) *mem.Coremap_t {
	t.Helper()
	rs := mem.NewRamStealer(0, mem.Pa_t(11*mem.PGSIZE))
	cm := mem.Bootstrap(rs)
	require.Equal(t, 10, cm.NumFrames())
	return cm
}

// frameAddrs allocates every frame one at a time (in index order, since a
// fresh map's first-fit scan always proceeds left to right) to recover
// each index's physical address, then frees them all back.
func frameAddrs(t *testing.T, cm *mem.Coremap_t) []mem.Pa_t {
	t.Helper()
	addrs := make([]mem.Pa_t, cm.NumFrames())
	for i := range addrs {
		pa := cm.Alloc(1)
		require.NotEqual(t, mem.Pa_t(0), pa)
		addrs[i] = pa
	}
	for _, pa := range addrs {
		cm.FreePage(pa)
	}
	return addrs
}

func indexOf(t *testing.T, addrs []mem.Pa_t, pa mem.Pa_t) int {
	t.Helper()
	for i, a := range addrs {
		if a == pa {
			return i
		}
	}
	t.Fatalf("address %v is not one of the map's frame addresses", pa)
	return -1
}

// TestAllocFirstFit exercises spec.md §8 scenario 6's core-map shape,
// FFFAAFFFAF (F=free, A=allocated, indices 0-9): frames 3, 4 and 8
// allocated, the rest free. Per spec.md §4.C's scan formula (a candidate
// index i fits iff i+1..i+n-1 are also free, scanned left to right), the
// first run of 3 is indices 0-2, not index 5 as an earlier, looser
// reading of the worked example suggested — see DESIGN.md for why this
// test follows the formula over that reading.
func TestAllocFirstFit(t *testing.T) {
	cm := tenFrameCoremap(t)
	addrs := frameAddrs(t, cm)

	// Build FFFAAFFFAF: allocate frames 3 and 4 as one 2-frame run, then
	// frame 8 alone. First-fit always fills the lowest free indices first,
	// so fill indices 0-2 and 5-7 with runs of their own to push the 2-run
	// to index 3 and the single frame to index 8, then free those two
	// filler runs.
	lead := cm.Alloc(3) // indices 0,1,2
	mid := cm.Alloc(2)  // indices 3,4
	require.Equal(t, 3, indexOf(t, addrs, mid))
	gap := cm.Alloc(3)  // indices 5,6,7
	tail := cm.Alloc(1) // index 8
	require.Equal(t, 8, indexOf(t, addrs, tail))

	cm.FreeKpages(lead) // frees indices 0,1,2 -> free
	cm.FreeKpages(gap)  // frees indices 5,6,7 -> free
	// index 9 was never allocated, so it's free too. Final shape:
	// F F F A A F F F A F, matching FFFAAFFFAF exactly.

	got3 := cm.Alloc(3)
	require.Equal(t, 0, indexOf(t, addrs, got3), "alloc(3) should take the first fitting run, indices 0-2")

	got2 := cm.Alloc(2)
	require.Equal(t, 5, indexOf(t, addrs, got2), "alloc(2) should take the next fitting run, indices 5-6")

	require.Equal(t, mem.Pa_t(0), cm.Alloc(4), "no run of 4 contiguous free frames remains (only index 7 and 9 are free, non-contiguous)")
}

func TestRamStealerExhaustion(t *testing.T) {
	rs := mem.NewRamStealer(0, mem.Pa_t(mem.PGSIZE))
	got := rs.StealMem(mem.PGSIZE)
	require.NotEqual(t, mem.Pa_t(0), got)
	require.Equal(t, mem.Pa_t(0), rs.StealMem(mem.PGSIZE))
}

func TestFreePageDoubleFreePanics(t *testing.T) {
	cm := tenFrameCoremap(t)
	pa := cm.Alloc(1)
	cm.FreePage(pa)
	require.Panics(t, func() { cm.FreePage(pa) })
}

func TestFreeKpagesOnNonHeadPanics(t *testing.T) {
	cm := tenFrameCoremap(t)
	base := cm.Alloc(3)
	second := base + mem.Pa_t(mem.PGSIZE)
	require.Panics(t, func() { cm.FreeKpages(second) })
}

func TestDmapAliasesBackingStore(t *testing.T) {
	cm := tenFrameCoremap(t)
	pa := cm.Alloc(1)
	buf := cm.Dmap(pa)
	buf[0] = 0xAB
	require.Equal(t, byte(0xAB), cm.Dmap(pa)[0])
}
