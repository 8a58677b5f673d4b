package kern

import (
	"fmt"

	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
	"github.com/sarchlab/exokern/sim"
	"go.uber.org/zap"
)

// A Program is what CreateEnv loads into a new environment.
type Program struct {
	Name  string
	Entry EntryFunc

	// Image is copied to the start of the program data at UTEXT.
	Image []byte

	// DataPages is the number of writable data pages mapped from UTEXT. It
	// is raised to fit Image if needed.
	DataPages int
}

// CreateEnv creates a runnable environment that starts at prog's entry with
// a fresh data segment and a one-page stack.
func (k *Kernel) CreateEnv(prog Program) (env.ID, error) {
	if prog.Entry == nil {
		return 0, fmt.Errorf("kern: program %q has no entry", prog.Name)
	}

	k.lock.Lock()
	defer k.lock.Unlock()

	e, err := k.envs.Alloc(0, env.User)
	if err != nil {
		return 0, fmt.Errorf("kern: creating %q: %w", prog.Name, err)
	}

	if err := k.loadProgram(e, prog); err != nil {
		k.free(e)
		return 0, fmt.Errorf("kern: loading %q: %w", prog.Name, err)
	}

	k.procs[e.Slot()].tf = Trapframe{
		ESP:   vm.USTACKTOP,
		Entry: prog.Entry,
	}
	k.setStatus(e, env.Runnable)

	k.logger.Info("created environment",
		zap.Stringer("env", e.ID),
		zap.String("program", prog.Name))

	return e.ID, nil
}

func (k *Kernel) loadProgram(e *env.Env, prog Program) error {
	pages := prog.DataPages
	if need := int((uint64(len(prog.Image)) + vm.PageSize - 1) / vm.PageSize); need > pages {
		pages = need
	}

	image := prog.Image
	for i := 0; i < pages; i++ {
		va := vm.UTEXT + uint64(i)*vm.PageSize

		frame, err := k.mapFresh(e, va)
		if err != nil {
			return err
		}

		n := copy(frame.Data, image)
		image = image[n:]
	}

	e.Break = vm.UTEXT + uint64(pages)*vm.PageSize

	_, err := k.mapFresh(e, vm.USTACKTOP-vm.PageSize)

	return err
}

func (k *Kernel) mapFresh(e *env.Env, va uint64) (*vm.Frame, error) {
	frame, err := k.pool.Alloc()
	if err != nil {
		return nil, err
	}

	k.pageTable.Insert(vm.Page{
		PID:   pidOf(e.ID),
		VAddr: va,
		Frame: frame,
		Flags: vm.PTEPresent | vm.PTEUser | vm.PTEWritable,
	})

	return frame, nil
}

// destroy tears down an environment other than the caller. An environment
// running on another CPU is only marked dying and is freed the next time it
// enters the kernel.
func (k *Kernel) destroy(e *env.Env) {
	switch e.Status {
	case env.Running:
		e.Status = env.Dying
	case env.Dying:
	default:
		p := k.procs[e.Slot()]
		k.free(e)
		p.kill()
	}
}

// free releases the address space and the slot of an environment.
func (k *Kernel) free(e *env.Env) {
	info := e.Info()

	k.pageTable.RemoveAll(pidOf(e.ID))
	k.procs[e.Slot()] = newProc()
	k.envs.Free(e)

	k.logger.Debug("freed environment", zap.Stringer("env", info.ID))

	k.InvokeHook(sim.HookCtx{
		Domain: k,
		Pos:    HookPosEnvFree,
		Item:   info,
	})

	k.wake.Broadcast()
}

// Envs returns a snapshot of every live environment in slot order.
func (k *Kernel) Envs() []env.Info {
	k.lock.Lock()
	defer k.lock.Unlock()

	return k.liveEnvs()
}

func (k *Kernel) liveEnvs() []env.Info {
	infos := make([]env.Info, 0)
	k.envs.Each(func(e *env.Env) {
		if e.Status != env.Free {
			infos = append(infos, e.Info())
		}
	})

	return infos
}

// EnvInfo returns a snapshot of one live environment.
func (k *Kernel) EnvInfo(id env.ID) (env.Info, error) {
	k.lock.Lock()
	defer k.lock.Unlock()

	e, err := k.envs.Lookup(id)
	if err != nil {
		return env.Info{}, err
	}

	return e.Info(), nil
}

// Pages returns the mappings of a live environment ordered by address.
func (k *Kernel) Pages(id env.ID) ([]vm.Page, error) {
	k.lock.Lock()
	defer k.lock.Unlock()

	e, err := k.envs.Lookup(id)
	if err != nil {
		return nil, err
	}

	return k.pageTable.Pages(pidOf(e.ID)), nil
}

// Audit checks that no shared frame is mapped writable without
// copy-on-write.
func (k *Kernel) Audit() error {
	k.lock.Lock()
	defer k.lock.Unlock()

	return vm.AuditSharing(k.pageTable, k.pool)
}
