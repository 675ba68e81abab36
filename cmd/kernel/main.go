// Command kernel boots the process/VM substrate and runs the end-to-end
// scenarios spec.md §8 names, logging each outcome to the console. The
// teacher's own kernel entrypoint is reached through assembly boot code
// rather than a conventional func main (see DESIGN.md); this command is
// this core's equivalent of the same "bring up subsystems, then run
// workloads" shape, expressed the way a normal hosted Go binary would.
package main

import (
	"context"
	"os"

	"github.com/JoshuaWu7/kernel/kernel"
)

func main() {
	k := kernel.Bootstrap(kernel.BootConfig{})

	hw, err := kernel.RunHelloWorld(k)
	if err != nil {
		k.Log.Printf("hello-world scenario failed: %v\n", err)
		os.Exit(1)
	}
	k.Log.Printf("hello-world: frames_allocated=%d frames_freed=%v exit_status=%d\n",
		hw.FramesAllocated, hw.FramesFreed, hw.ExitStatus)

	fw, err := kernel.RunForkWaitpid(k)
	if err != nil {
		k.Log.Printf("fork-waitpid scenario failed: %v\n", err)
		os.Exit(1)
	}
	k.Log.Printf("fork-waitpid: child_pid=%d wait_status=%d second_wait_err=%v\n",
		fw.ChildPid, fw.WaitStatus, fw.SecondWaitErr)

	d2, err := kernel.RunDup2SharesSeek(k)
	if err != nil {
		k.Log.Printf("dup2 scenario failed: %v\n", err)
		os.Exit(1)
	}
	k.Log.Printf("dup2-shares-seek: seek_via_dup=%d\n", d2.SeekViaDup)

	sg, err := kernel.RunStackGrowthBound(k)
	if err != nil {
		k.Log.Printf("stack-growth-bound scenario failed: %v\n", err)
		os.Exit(1)
	}
	k.Log.Printf("stack-growth-bound: stack_fault_rejected=%v sbrk_rejected=%v\n",
		sg.StackFaultRejected, sg.SbrkRejected)

	rp, err := kernel.RunRopeProblem(context.Background())
	if err != nil {
		k.Log.Printf("rope-problem scenario failed: %v\n", err)
		os.Exit(1)
	}
	k.Log.Printf("rope-problem: ropes_left=%d\n", rp.RopesLeft)

	if rp.RopesLeft != 0 {
		k.Log.Printf("rope-problem: expected ropes_left=0, got %d\n", rp.RopesLeft)
		os.Exit(1)
	}

	k.Shutdown()
}
