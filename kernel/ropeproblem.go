package kernel

import (
	"context"
	"sort"
	"sync"

	"github.com/JoshuaWu7/kernel/ksync"

	"golang.org/x/sync/errgroup"
)

/// numRopes is the airballoon problem's rope count, fixed at 16 per
/// spec.md §8 scenario 5 (and the teacher's synchprobs/airballoon.c
/// NROPES).
const numRopes = 16

/// numSeverers and numSwappers mirror spec.md §8 scenario 5's thread
/// counts.
const (
	numSeverers = 2
	numSwappers = 8
)

/// stake_t is one of the 16 stakes a rope is tied to: a flag under its own
/// lock, exactly the teacher's "rope is a bool behind a per-stake lock"
/// shape in synchprobs/airballoon.c.
type stake_t struct {
	sync.Mutex
	ropeIntact bool
}

/// RopeProblemResult reports the outcome of one run of the rope-severing
/// concurrency smoke test.
type RopeProblemResult struct {
	RopesLeft int
}

/// RunRopeProblem runs spec.md §8 scenario 5: 2 severer goroutines each
/// walk the stakes in index order, cutting every intact rope they find
/// until each has cut numRopes/numSeverers of them; 8 swapper goroutines
/// each repeatedly pick two distinct stakes and "swap" which ropes they
/// hold (modeled here as a no-op pair-lock/unlock, since this core has no
/// rope identity distinct from its stake — the property under test is the
/// *locking discipline*, not the swap's effect) — always acquiring the two
/// stake locks in ascending index order to avoid the classic
/// lock-ordering deadlock a naive swapper invites. A balloon goroutine
/// blocks on a counting semaphore until it has been posted to 10 times,
/// then signals a condition variable the orchestrator waits on before
/// returning. errgroup.Group (as the teacher's own pack uses for
/// fan-out/fan-in goroutine bookkeeping) supervises every worker and
/// surfaces the first error, if any, once all goroutines exit.
func RunRopeProblem(ctx context.Context) (RopeProblemResult, error) {
	stakes := make([]*stake_t, numRopes)
	for i := range stakes {
		stakes[i] = &stake_t{ropeIntact: true}
	}

	balloonSem := ksync.NewSem(0)
	var doneLock ksync.Lock_t
	var doneCV ksync.CV_t
	const orchestratorTid = 1
	signaled := false

	g, gctx := errgroup.WithContext(ctx)

	for s := 0; s < numSeverers; s++ {
		g.Go(func() error { return severerLoop(gctx, stakes, balloonSem) })
	}
	for w := 0; w < numSwappers; w++ {
		g.Go(func() error { return swapperLoop(gctx, stakes) })
	}
	g.Go(func() error {
		for i := 0; i < 10; i++ {
			balloonSem.P()
		}
		doneLock.Acquire(orchestratorTid)
		signaled = true
		doneCV.Signal(&doneLock, orchestratorTid)
		doneLock.Release(orchestratorTid)
		return nil
	})

	if err := g.Wait(); err != nil {
		return RopeProblemResult{}, err
	}

	// The orchestrator's own exit is gated on the balloon's CV signal,
	// per spec.md §8 scenario 5's closing property, even though g.Wait
	// has already observed every goroutine return by this point.
	doneLock.Acquire(orchestratorTid)
	for !signaled {
		doneCV.Wait(&doneLock, orchestratorTid)
	}
	doneLock.Release(orchestratorTid)

	left := 0
	for _, st := range stakes {
		st.Lock()
		if st.ropeIntact {
			left++
		}
		st.Unlock()
	}
	return RopeProblemResult{RopesLeft: left}, nil
}

func severerLoop(ctx context.Context, stakes []*stake_t, balloonSem *ksync.Sem_t) error {
	cut := 0
	idx := 0
	for cut < numRopes/numSeverers {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		st := stakes[idx%len(stakes)]
		idx++
		st.Lock()
		if st.ropeIntact {
			st.ropeIntact = false
			cut++
			balloonSem.V()
		}
		st.Unlock()
	}
	return nil
}

// swapperLoop repeatedly locks a distinct pair of stakes, always in
// ascending index order, per spec.md §8 scenario 5's explicit
// lock-ordering requirement: acquiring in whatever order the pair was
// picked would let two swappers holding opposite ends of the same pair
// deadlock.
func swapperLoop(ctx context.Context, stakes []*stake_t) error {
	n := len(stakes)
	for round := 0; round < 4; round++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		a, b := round%n, (round*7+3)%n
		if a == b {
			b = (b + 1) % n
		}
		pair := []int{a, b}
		sort.Ints(pair)

		stakes[pair[0]].Lock()
		stakes[pair[1]].Lock()
		// The swap itself has no observable effect in this model (see
		// RunRopeProblem's doc comment); the lock pair is what's tested.
		stakes[pair[1]].Unlock()
		stakes[pair[0]].Unlock()
	}
	return nil
}
