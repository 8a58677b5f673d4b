package kern

import (
	"fmt"

	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
	"go.uber.org/zap"
)

// syscalls implements Syscalls for one environment. Every call takes the
// kernel lock for its whole duration, except while user code runs inside a
// page fault upcall.
type syscalls struct {
	k *Kernel
	e *env.Env
	p *proc

	// gone is set once the goroutine no longer holds the kernel lock
	// because it is exiting.
	gone bool
}

// enter takes the kernel lock on behalf of the environment. Once the machine
// has halted the environment gives its CPU back and stays parked until
// Run reaps it.
func (s *syscalls) enter() {
	s.k.lock.Lock()

	for s.k.halted {
		s.park()
	}

	if s.e.Status == env.Dying {
		s.k.logger.Debug("dying environment entered the kernel",
			zap.Stringer("env", s.e.ID))
		s.exitLocked()
	}
}

func (s *syscalls) leave() {
	if !s.gone {
		s.k.lock.Unlock()
	}
}

// lookup resolves an environment argument. With checkPerm set, the target
// must be the caller or one of its children.
func (s *syscalls) lookup(id env.ID, checkPerm bool) (*env.Env, error) {
	if id == 0 {
		return s.e, nil
	}

	e, err := s.k.envs.Lookup(id)
	if err != nil || e.Type == env.Idle {
		return nil, ErrBadEnv
	}

	if checkPerm && e != s.e && e.ParentID != s.e.ID {
		return nil, ErrBadEnv
	}

	return e, nil
}

func checkVA(va uint64) error {
	if va >= vm.UTOP || !vm.PageAligned(va) {
		return ErrInval
	}

	return nil
}

func checkPerm(perm vm.PTE) error {
	if !perm.HasFlags(vm.PTEPresent|vm.PTEUser) || perm&^vm.PTESyscall != 0 {
		return ErrInval
	}

	return nil
}

func (s *syscalls) GetEnvID() env.ID {
	s.enter()
	defer s.leave()

	return s.e.ID
}

func (s *syscalls) EnvInfo(id env.ID) (env.Info, error) {
	s.enter()
	defer s.leave()

	e, err := s.lookup(id, false)
	if err != nil {
		return env.Info{}, err
	}

	return e.Info(), nil
}

func (s *syscalls) VPT() vm.View {
	s.enter()
	defer s.leave()

	return vm.NewView(s.k.pageTable, pidOf(s.e.ID))
}

func (s *syscalls) ExoFork() (env.ID, error) {
	s.enter()
	defer s.leave()

	child, err := s.k.envs.Alloc(s.e.ID, env.User)
	if err != nil {
		return 0, toError(err)
	}

	child.Break = s.e.Break

	cp := s.k.procs[child.Slot()]
	cp.tf = s.p.tf
	cp.tf.Ret = 0

	s.k.logger.Debug("exofork",
		zap.Stringer("parent", s.e.ID),
		zap.Stringer("child", child.ID))

	return child.ID, nil
}

func (s *syscalls) EnvSetStatus(id env.ID, status env.Status) error {
	s.enter()
	defer s.leave()

	if status != env.Runnable && status != env.NotRunnable {
		return ErrInval
	}

	e, err := s.lookup(id, true)
	if err != nil {
		return err
	}

	if e.Status == env.Running || e.Status == env.Dying {
		return ErrInval
	}

	s.k.setStatus(e, status)

	return nil
}

func (s *syscalls) EnvSetTrapframe(id env.ID, tf Trapframe) error {
	s.enter()
	defer s.leave()

	e, err := s.lookup(id, true)
	if err != nil {
		return err
	}

	if tf.Entry == nil || tf.ESP > vm.UTOP {
		return ErrInval
	}

	s.k.procs[e.Slot()].tf = tf

	return nil
}

func (s *syscalls) EnvSetPgfaultUpcall(id env.ID, upcall Upcall) error {
	s.enter()
	defer s.leave()

	e, err := s.lookup(id, true)
	if err != nil {
		return err
	}

	s.k.procs[e.Slot()].upcall = upcall

	return nil
}

func (s *syscalls) EnvDestroy(id env.ID) error {
	s.enter()
	defer s.leave()

	e, err := s.lookup(id, true)
	if err != nil {
		return err
	}

	if e == s.e {
		fmt.Fprintf(s.k.console, "[%v] exiting gracefully\n", s.e.ID)
		s.exitLocked()
	}

	fmt.Fprintf(s.k.console, "[%v] destroying %v\n", s.e.ID, e.ID)
	s.k.destroy(e)

	return nil
}

func (s *syscalls) PageAlloc(id env.ID, va uint64, perm vm.PTE) error {
	s.enter()
	defer s.leave()

	e, err := s.lookup(id, true)
	if err != nil {
		return err
	}

	if err := checkVA(va); err != nil {
		return err
	}

	if err := checkPerm(perm); err != nil {
		return err
	}

	frame, err := s.k.pool.Alloc()
	if err != nil {
		return toError(err)
	}

	s.k.pageTable.Insert(vm.Page{
		PID:   pidOf(e.ID),
		VAddr: va,
		Frame: frame,
		Flags: perm,
	})

	return nil
}

func (s *syscalls) PageMap(
	srcID env.ID, srcVA uint64,
	dstID env.ID, dstVA uint64,
	perm vm.PTE,
) error {
	s.enter()
	defer s.leave()

	src, err := s.lookup(srcID, true)
	if err != nil {
		return err
	}

	dst, err := s.lookup(dstID, true)
	if err != nil {
		return err
	}

	if err := checkVA(srcVA); err != nil {
		return err
	}

	if err := checkVA(dstVA); err != nil {
		return err
	}

	if err := checkPerm(perm); err != nil {
		return err
	}

	page, ok := s.k.pageTable.Find(pidOf(src.ID), srcVA)
	if !ok {
		return ErrInval
	}

	if perm.HasFlags(vm.PTEWritable) && !page.Flags.HasFlags(vm.PTEWritable) {
		return ErrInval
	}

	s.k.pageTable.Insert(vm.Page{
		PID:   pidOf(dst.ID),
		VAddr: dstVA,
		Frame: page.Frame,
		Flags: perm,
	})

	return nil
}

func (s *syscalls) PageUnmap(id env.ID, va uint64) error {
	s.enter()
	defer s.leave()

	e, err := s.lookup(id, true)
	if err != nil {
		return err
	}

	if err := checkVA(va); err != nil {
		return err
	}

	if _, ok := s.k.pageTable.Find(pidOf(e.ID), va); ok {
		s.k.pageTable.Remove(pidOf(e.ID), va)
	}

	return nil
}

func (s *syscalls) Yield() {
	s.enter()
	defer s.leave()

	s.park()
}

func (s *syscalls) Cputs(str string) {
	s.enter()
	defer s.leave()

	fmt.Fprint(s.k.console, str)
}

func (s *syscalls) Read(va uint64, buf []byte) error {
	s.enter()
	defer s.leave()

	pid := pidOf(s.e.ID)

	return s.access(va, len(buf), func() error {
		return s.k.mmu.Read(pid, va, buf)
	})
}

func (s *syscalls) Write(va uint64, data []byte) error {
	s.enter()
	defer s.leave()

	pid := pidOf(s.e.ID)

	return s.access(va, len(data), func() error {
		return s.k.mmu.Write(pid, va, data)
	})
}
