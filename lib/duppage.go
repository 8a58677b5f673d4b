package lib

import (
	"fmt"

	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
)

// duppage maps page pn of the caller into child at the same address.
// Writable and copy-on-write pages become copy-on-write in both environments.
// The child is mapped before the caller's own mapping is downgraded, so both
// mappings end up on the frame the caller had when duppage started.
func duppage(sys kern.Syscalls, vpt vm.View, child env.ID, pn uint64) error {
	pte, _ := vpt.Lookup(pn)
	va := pn << vm.Log2PageSize

	switch {
	case pte.HasFlags(vm.PTEUser) &&
		pte.HasAnyFlag(vm.PTEWritable|vm.PTECOW):
		cow := vm.PTEPresent | vm.PTEUser | vm.PTECOW

		if err := sys.PageMap(0, va, child, va, cow); err != nil {
			return err
		}

		return sys.PageMap(0, va, 0, va, cow)
	case pte.HasFlags(vm.PTEUser):
		return sys.PageMap(0, va, child, va, vm.PTEPresent|vm.PTEUser)
	default:
		return fmt.Errorf("page 0x%08x mapped %v: %w",
			va, pte, ErrUnsupportedMapping)
	}
}
