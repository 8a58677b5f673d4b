package user

import (
	"github.com/sarchlab/exokern/lib"
	"github.com/sarchlab/exokern/mem/vm"
)

// FaultRead reads an unmapped address without a page fault handler.
func FaultRead(u *lib.User) {
	u.Printf("I read %08x from location 0!\n", u.Load(0))
}

// FaultWrite forks, which installs the copy-on-write handler, and then
// writes to an unmapped page. The handler refuses the fault.
func FaultWrite(u *lib.User) {
	if _, err := u.Fork(func(*lib.User) {}); err != nil {
		u.Panicf("fork: %v", err)
		return
	}

	u.Store(vm.UTEMP, 1)
	u.Printf("wrote to an unmapped page!\n")
}
