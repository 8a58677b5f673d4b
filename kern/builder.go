package kern

import (
	"io"
	"os"
	"sync"

	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/kern/sched"
	"github.com/sarchlab/exokern/mem/vm"
	"github.com/sarchlab/exokern/mem/vm/mmu"
	"github.com/sarchlab/exokern/sim"
	"go.uber.org/zap"
)

// A Builder can build a Kernel.
type Builder struct {
	numCPU    int
	numEnvs   int
	numFrames int
	monitor   Monitor
	console   io.Writer
	logger    *zap.Logger
}

// MakeBuilder creates a builder with default parameters: one CPU, 1024
// environment slots and 16 MiB of physical memory.
func MakeBuilder() Builder {
	return Builder{
		numCPU:    1,
		numEnvs:   1024,
		numFrames: 4096,
		console:   os.Stdout,
		logger:    zap.NewNop(),
	}
}

// WithNumCPU sets the number of simulated CPUs.
func (b Builder) WithNumCPU(n int) Builder {
	b.numCPU = n
	return b
}

// WithNumEnvs sets the number of environment slots, idle environments
// included. It must be a power of two.
func (b Builder) WithNumEnvs(n int) Builder {
	b.numEnvs = n
	return b
}

// WithNumFrames sets the number of physical frames.
func (b Builder) WithNumFrames(n int) Builder {
	b.numFrames = n
	return b
}

// WithMonitor sets the monitor to drop into when the machine halts. By
// default a ConsoleMonitor on the console is used.
func (b Builder) WithMonitor(m Monitor) Builder {
	b.monitor = m
	return b
}

// WithConsole sets where the console output of environments goes.
func (b Builder) WithConsole(w io.Writer) Builder {
	b.console = w
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates the kernel and boots one idle environment per CPU.
func (b Builder) Build() *Kernel {
	if b.numCPU < 1 || b.numCPU >= b.numEnvs {
		panic("kernel needs at least one CPU and a free slot per CPU")
	}

	logger := b.logger.Named("kern")

	table := env.NewTable(b.numEnvs, b.numCPU)
	pool := vm.NewFramePool(b.numFrames)
	pageTable := vm.NewPageTable(vm.Log2PageSize, pool)

	k := &Kernel{
		HookableBase: sim.NewHookableBase(),
		numCPU:       b.numCPU,
		envs:         table,
		procs:        make([]*proc, b.numEnvs),
		cpus:         make([]*env.Env, b.numCPU),
		pool:         pool,
		pageTable:    pageTable,
		mmu: mmu.MakeBuilder().
			WithPageTable(pageTable).
			Build(),
		sched: sched.MakeBuilder().
			WithEnvTable(table).
			WithLogger(b.logger).
			Build(),
		monitor: b.monitor,
		console: b.console,
		logger:  logger,
	}
	k.wake = sync.NewCond(&k.lock)

	if k.monitor == nil {
		k.monitor = NewConsoleMonitor(b.console, logger)
	}

	for i := range k.procs {
		k.procs[i] = newProc()
	}

	for cpu := 0; cpu < b.numCPU; cpu++ {
		idle, err := table.AllocAt(cpu, 0, env.Idle)
		if err != nil {
			panic(err)
		}

		idle.Status = env.Runnable
	}

	return k
}
