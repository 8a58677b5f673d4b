package kern

import (
	"errors"
	"fmt"

	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
	"github.com/sarchlab/exokern/mem/vm/mmu"
	"github.com/sarchlab/exokern/sim"
	"go.uber.org/zap"
)

// access performs a user memory access. Page faults are delivered to the
// environment and the access is retried until it succeeds or the
// environment is destroyed. The kernel lock must be held.
func (s *syscalls) access(va uint64, n int, do func() error) error {
	if va+uint64(n) < va {
		return ErrFault
	}

	var (
		retried   bool
		lastFault uint64
	)

	for {
		err := do()

		var fault *mmu.Fault
		if !errors.As(err, &fault) {
			return err
		}

		page := vm.RoundDown(fault.VAddr)
		if retried && page == lastFault {
			s.fatalFault(s.faultEvent(fault,
				"fault repeated after the handler returned"))
		}

		s.pageFault(fault)

		retried = true
		lastFault = page
	}
}

func (s *syscalls) faultEvent(f *mmu.Fault, fatal string) FaultEvent {
	ev := FaultEvent{
		Env:   s.e.ID,
		VA:    f.VAddr,
		Err:   f.Err,
		Fatal: fatal,
	}

	if page, ok := s.k.pageTable.Find(f.PID, f.VAddr); ok {
		ev.PTE = page.Flags
	}

	return ev
}

// pageFault delivers a fault to the environment's upcall on its exception
// stack. It returns once the upcall has returned successfully.
func (s *syscalls) pageFault(f *mmu.Fault) {
	k := s.k

	xstack, xstackOK := k.pageTable.Find(
		pidOf(s.e.ID), vm.UXSTACKTOP-vm.PageSize)

	ev := s.faultEvent(f, "")
	switch {
	case s.p.upcall == nil:
		ev.Fatal = "no page fault upcall"
	case !xstackOK || !xstack.Flags.HasFlags(
		vm.PTEPresent|vm.PTEUser|vm.PTEWritable):
		ev.Fatal = "exception stack is not mapped writable"
	case s.p.inFault:
		ev.Fatal = "page fault while handling a page fault"
	}

	if ev.Fatal != "" {
		s.fatalFault(ev)
	}

	s.invokeFaultHook(ev)

	utf := UTrapframe{
		FaultVA: f.VAddr,
		Err:     f.Err,
		ESP:     s.p.tf.ESP,
	}
	utf.push(xstack.Frame)

	upcall := s.p.upcall
	s.p.inFault = true

	k.lock.Unlock()
	err := upcall(s, utf)
	k.lock.Lock()

	s.p.inFault = false

	if s.e.Status == env.Dying {
		s.exitLocked()
	}

	if err != nil {
		ev.Fatal = "page fault handler failed: " + err.Error()
		s.fatalFault(ev)
	}
}

func (s *syscalls) invokeFaultHook(ev FaultEvent) {
	s.k.InvokeHook(sim.HookCtx{
		Domain: s.k,
		Pos:    HookPosPageFault,
		Item:   ev,
	})
}

// fatalFault destroys the faulting environment. It does not return.
func (s *syscalls) fatalFault(ev FaultEvent) {
	s.invokeFaultHook(ev)

	s.k.logger.Error("fatal page fault",
		zap.Stringer("env", ev.Env),
		zap.String("va", fmt.Sprintf("0x%08x", ev.VA)),
		zap.Stringer("pte", ev.PTE),
		zap.String("cause", vm.DescribeFault(ev.Err)),
		zap.String("reason", ev.Fatal))

	fmt.Fprintf(s.k.console, "[%v] user fault va %08x err %x: %s\n",
		ev.Env, ev.VA, ev.Err, ev.Fatal)

	s.exitLocked()
}
