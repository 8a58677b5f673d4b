// Package kern is the supervisor of the simulated machine. It owns the
// environment table, the physical frames and the page tables, runs one
// scheduler loop per CPU and exposes the system calls user environments are
// built on.
package kern

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/kern/sched"
	"github.com/sarchlab/exokern/mem/vm"
	"github.com/sarchlab/exokern/mem/vm/mmu"
	"github.com/sarchlab/exokern/sim"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Hook positions of the kernel.
var (
	// HookPosDispatch is triggered when a CPU switches to an environment.
	// The item is a DispatchEvent.
	HookPosDispatch = &sim.HookPos{Name: "Dispatch"}

	// HookPosPageFault is triggered when a page fault reaches the kernel.
	// The item is a FaultEvent.
	HookPosPageFault = &sim.HookPos{Name: "PageFault"}

	// HookPosEnvFree is triggered when an environment is freed. The item is
	// the env.Info of the environment before it was freed.
	HookPosEnvFree = &sim.HookPos{Name: "EnvFree"}
)

// A DispatchEvent is a CPU starting or continuing an environment.
type DispatchEvent struct {
	CPU int
	Env env.Info
}

// A FaultEvent is a page fault taken by an environment. Fatal is empty if
// the fault was handed to the environment's upcall.
type FaultEvent struct {
	Env   env.ID
	VA    uint64
	Err   uint32
	PTE   vm.PTE
	Fatal string
}

// MsgNoRunnableEnvs is what the monitor is told when every environment has
// finished or is blocked.
const MsgNoRunnableEnvs = "No more runnable environments!"

// Kernel is the supervisor.
type Kernel struct {
	*sim.HookableBase

	lock sync.Mutex
	wake *sync.Cond

	numCPU    int
	envs      *env.Table
	procs     []*proc
	cpus      []*env.Env
	sched     *sched.Scheduler
	pool      *vm.FramePool
	pageTable vm.PageTable
	mmu       *mmu.MMU
	monitor   Monitor
	console   io.Writer
	logger    *zap.Logger

	started bool
	halted  bool
	haltErr error
	envWG   sync.WaitGroup
}

// NumCPU returns the number of simulated CPUs.
func (k *Kernel) NumCPU() int {
	return k.numCPU
}

// Scheduler returns the scheduler, so that hooks can be attached to it.
func (k *Kernel) Scheduler() *sched.Scheduler {
	return k.sched
}

// FramePool returns the physical frames of the machine.
func (k *Kernel) FramePool() *vm.FramePool {
	return k.pool
}

// Run starts all the CPUs and blocks until the machine halts. The machine
// halts when no environment can run any more, when ctx is done or when a CPU
// finds the environment table corrupt. Environments run cooperatively, so
// cancelling ctx takes effect at the next kernel entry of every running
// environment.
//
// Run returns nil if the machine ran out of work, and the reason of the halt
// otherwise. A kernel can only run once.
func (k *Kernel) Run(ctx context.Context) error {
	k.lock.Lock()
	if k.started {
		k.lock.Unlock()
		panic("kernel is already running")
	}
	k.started = true
	k.lock.Unlock()

	stop := context.AfterFunc(ctx, func() {
		k.lock.Lock()
		defer k.lock.Unlock()

		k.halt(ctx.Err())
	})
	defer stop()

	var g errgroup.Group
	for cpu := 0; cpu < k.numCPU; cpu++ {
		cpu := cpu
		g.Go(func() error {
			return k.runCPU(cpu)
		})
	}

	err := g.Wait()

	k.reap()

	k.lock.Lock()
	defer k.lock.Unlock()

	if err != nil {
		return err
	}

	return k.haltErr
}

// halt stops all CPUs. Only the first reason is kept.
func (k *Kernel) halt(reason error) {
	if !k.halted {
		k.halted = true
		k.haltErr = reason
		k.logger.Info("machine halted", zap.Error(reason))
	}

	k.wake.Broadcast()
}

// runCPU is the scheduling loop of one CPU.
func (k *Kernel) runCPU(cpu int) error {
	k.lock.Lock()
	defer k.lock.Unlock()

	for !k.halted {
		next, err := k.sched.Next(cpu, k.cpus[cpu])

		if errors.Is(err, sched.ErrNoIdleEnv) {
			log.Panicf("CPU %d: No idle environment!", cpu)
		}

		if err != nil {
			k.enterMonitor(err.Error())
			k.halt(err)
			return err
		}

		k.dispatch(cpu, next)

		if next.Type == env.Idle {
			k.idle()
			continue
		}

		k.execute(cpu, next)
	}

	return nil
}

// dispatch does the bookkeeping of a context switch.
func (k *Kernel) dispatch(cpu int, e *env.Env) {
	prev := k.cpus[cpu]
	if prev != nil && prev != e && prev.Status == env.Running {
		k.setStatus(prev, env.Runnable)
	}

	k.cpus[cpu] = e
	e.Status = env.Running
	e.CPU = cpu
	e.Runs++

	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosDispatch,
		Item:   DispatchEvent{CPU: cpu, Env: e.Info()},
	})
}

// idle parks a CPU that has nothing to run. If nothing can ever run again,
// the machine drops into the monitor and halts.
func (k *Kernel) idle() {
	if !k.anyRunnable() {
		k.enterMonitor(MsgNoRunnableEnvs)
		k.halt(nil)
		return
	}

	k.wake.Wait()
}

func (k *Kernel) anyRunnable() bool {
	found := false

	k.envs.Each(func(e *env.Env) {
		if e.Type == env.Idle {
			return
		}

		switch e.Status {
		case env.Runnable, env.Running, env.Dying:
			found = true
		}
	})

	return found
}

// execute hands the CPU to a user environment until it yields or exits.
func (k *Kernel) execute(cpu int, e *env.Env) {
	p := k.procs[e.Slot()]
	k.resume(e, p)

	k.lock.Unlock()
	reason := <-p.yieldCh
	k.lock.Lock()

	switch reason {
	case exited:
		k.cpus[cpu] = nil
	case yielded:
		if e.Status == env.Dying {
			k.free(e)
			p.kill()
			k.cpus[cpu] = nil
		}
	}
}

// setStatus changes the status of an environment and wakes the idle CPUs if
// there may be new work.
func (k *Kernel) setStatus(e *env.Env, status env.Status) {
	e.Status = status

	if status == env.Runnable {
		k.wake.Broadcast()
	}
}

func (k *Kernel) enterMonitor(msg string) {
	k.monitor.Enter(msg, k.liveEnvs())
}
