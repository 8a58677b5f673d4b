package lib

import (
	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
)

// Fork creates a child environment that shares the caller's memory
// copy-on-write. The child starts in child with its own User; the caller
// gets the child's ID.
//
// If the kernel cannot create the child, the error is returned and no child
// exists. Any later failure leaves a half-built child, so both the child and
// the caller are destroyed.
func (u *User) Fork(child func(cu *User)) (env.ID, error) {
	if err := u.SetPgfaultHandler(pgfault); err != nil {
		return 0, u.Panicf("fork: set pgfault handler: %v", err)
	}

	id, err := u.sys.ExoFork()
	if err != nil {
		return 0, err
	}

	cu := &User{handler: u.handler}

	if err := u.copyAddressSpace(id); err != nil {
		return 0, u.forkFailed(id, "duppage", err)
	}

	err = u.sys.PageAlloc(id, vm.UXSTACKTOP-vm.PageSize,
		vm.PTEPresent|vm.PTEUser|vm.PTEWritable)
	if err != nil {
		return 0, u.forkFailed(id, "exception stack", err)
	}

	if err := u.sys.EnvSetPgfaultUpcall(id, cu.upcall); err != nil {
		return 0, u.forkFailed(id, "set pgfault upcall", err)
	}

	tf := u.tf
	tf.Ret = 0
	tf.Entry = cu.childEntry(child)
	if err := u.sys.EnvSetTrapframe(id, tf); err != nil {
		return 0, u.forkFailed(id, "set trapframe", err)
	}

	if err := u.sys.EnvSetStatus(id, env.Runnable); err != nil {
		return 0, u.forkFailed(id, "set status", err)
	}

	return id, nil
}

// childEntry is where a forked child starts. Its User still describes the
// parent until start fixes it up.
func (u *User) childEntry(body func(cu *User)) kern.EntryFunc {
	return func(sys kern.Syscalls, tf kern.Trapframe) {
		u.start(sys, tf)

		if tf.Ret != 0 {
			u.Panicf("fork: child started with return value %d", tf.Ret)
			return
		}

		body(u)
		u.Exit()
	}
}

// copyAddressSpace duplicates the program data and the active stack into
// child.
func (u *User) copyAddressSpace(child env.ID) error {
	vpt := u.sys.VPT()

	ranges := [][2]uint64{
		{vm.UTEXT, u.thisenv.Break},
		{vm.RoundDown(u.tf.ESP - 1), vm.USTACKTOP},
	}

	for _, r := range ranges {
		for va := r[0]; va < r[1]; va += vm.PageSize {
			pn := vm.PageNum(va)

			pte, ok := vpt.Lookup(pn)
			if !ok || !pte.HasFlags(vm.PTEPresent) {
				continue
			}

			if err := duppage(u.sys, vpt, child, pn); err != nil {
				return err
			}
		}
	}

	return nil
}

func (u *User) forkFailed(child env.ID, step string, err error) error {
	if derr := u.sys.EnvDestroy(child); derr != nil {
		return u.Panicf("fork: %s: %v (destroying child %v: %v)",
			step, err, child, derr)
	}

	return u.Panicf("fork: %s: %v", step, err)
}
