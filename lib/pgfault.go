package lib

import (
	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/mem/vm"
)

// SetPgfaultHandler installs the page fault handler of the environment. The
// first call allocates the exception stack and registers the upcall with the
// kernel.
func (u *User) SetPgfaultHandler(handler kern.Upcall) error {
	if u.handler == nil {
		err := u.sys.PageAlloc(0, vm.UXSTACKTOP-vm.PageSize,
			vm.PTEPresent|vm.PTEUser|vm.PTEWritable)
		if err != nil {
			return err
		}

		if err := u.sys.EnvSetPgfaultUpcall(0, u.upcall); err != nil {
			return err
		}
	}

	u.handler = handler

	return nil
}

// upcall is the entry the kernel calls on a page fault. It runs the handler
// installed in u.
func (u *User) upcall(sys kern.Syscalls, utf kern.UTrapframe) error {
	if u.handler == nil {
		return ErrNoHandler
	}

	return u.handler(sys, utf)
}

// pgfault resolves a write fault on a copy-on-write page by giving the
// environment a private writable copy of the page. Any other fault is
// refused.
func pgfault(sys kern.Syscalls, utf kern.UTrapframe) error {
	va := utf.FaultVA
	page := vm.RoundDown(va)
	pte, mapped := sys.VPT().Lookup(vm.PageNum(va))

	fail := func(op string, err error) error {
		return &FaultError{VA: va, PTE: pte, Code: utf.Err, Op: op, Cause: err}
	}

	if utf.Err&vm.FECWrite == 0 || !mapped || !pte.HasFlags(vm.PTECOW) {
		return fail("check", ErrNotCOW)
	}

	perm := vm.PTEPresent | vm.PTEUser | vm.PTEWritable

	if err := sys.PageAlloc(0, vm.PFTEMP, perm); err != nil {
		return fail("page alloc", err)
	}

	buf := make([]byte, vm.PageSize)
	if err := sys.Read(page, buf); err != nil {
		return fail("copy", err)
	}

	if err := sys.Write(vm.PFTEMP, buf); err != nil {
		return fail("copy", err)
	}

	if err := sys.PageMap(0, vm.PFTEMP, 0, page, perm); err != nil {
		return fail("page map", err)
	}

	if err := sys.PageUnmap(0, vm.PFTEMP); err != nil {
		return fail("page unmap", err)
	}

	return nil
}
