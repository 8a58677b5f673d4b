package kern

import (
	"runtime"

	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
)

type yieldReason int

const (
	yielded yieldReason = iota
	exited
)

// proc is the execution context of the environment in one slot. The
// environment's code runs on its own goroutine, which only executes while a
// CPU waits on yieldCh.
type proc struct {
	tf      Trapframe
	upcall  Upcall
	inFault bool

	started  bool
	resumeCh chan bool
	yieldCh  chan yieldReason
}

func newProc() *proc {
	return &proc{
		resumeCh: make(chan bool, 1),
		yieldCh:  make(chan yieldReason),
	}
}

// kill makes a parked goroutine exit.
func (p *proc) kill() {
	if p.started {
		p.resumeCh <- false
	}
}

func pidOf(id env.ID) vm.PID {
	return vm.PID(uint32(id))
}

// resume lets the environment's goroutine run. The first resume starts it at
// the entry of the trap frame.
func (k *Kernel) resume(e *env.Env, p *proc) {
	if p.started {
		p.resumeCh <- true
		return
	}

	p.started = true
	s := &syscalls{k: k, e: e, p: p}
	tf := p.tf

	k.envWG.Add(1)
	go func() {
		defer k.envWG.Done()

		tf.Entry(s, tf)

		s.enter()
		s.exitLocked()
	}()
}

// park gives the CPU back and blocks until the environment is dispatched
// again. A killed environment never returns from park.
func (s *syscalls) park() {
	s.k.lock.Unlock()

	s.p.yieldCh <- yielded
	if !<-s.p.resumeCh {
		s.gone = true
		runtime.Goexit()
	}

	s.k.lock.Lock()
}

// exitLocked frees the calling environment and ends its goroutine. The
// kernel lock must be held.
func (s *syscalls) exitLocked() {
	s.k.free(s.e)
	s.gone = true
	s.k.lock.Unlock()

	s.p.yieldCh <- exited
	runtime.Goexit()
}

// reap ends the goroutines of the environments left parked when the machine
// halted.
func (k *Kernel) reap() {
	k.lock.Lock()
	for _, p := range k.procs {
		p.kill()
	}
	k.lock.Unlock()

	k.envWG.Wait()
}
