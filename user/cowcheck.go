package user

import (
	"bytes"
	"errors"

	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/lib"
	"github.com/sarchlab/exokern/mem/vm"
)

var (
	parentMark = []byte("written by the parent")
	childMark  = []byte("written by the child!")
)

// COWCheck forks and lets the parent and the child write the same data page.
// Each must keep seeing its own content.
func COWCheck(u *lib.User) {
	va := vm.UTEXT + vm.PageSize

	if err := u.Write(va, parentMark); err != nil {
		u.Panicf("write: %v", err)
		return
	}

	child, err := u.Fork(func(cu *lib.User) {
		checkContent(cu, "child before write", va, parentMark)

		if err := cu.Write(va, childMark); err != nil {
			cu.Panicf("write: %v", err)
			return
		}

		checkContent(cu, "child after write", va, childMark)
	})
	if err != nil {
		u.Panicf("fork: %v", err)
		return
	}

	waitFor(u, child)

	checkContent(u, "parent", va, parentMark)
}

func checkContent(u *lib.User, who string, va uint64, want []byte) {
	got := make([]byte, len(want))
	if err := u.Read(va, got); err != nil {
		u.Panicf("read: %v", err)
		return
	}

	if !bytes.Equal(got, want) {
		u.Printf("cowcheck: %s: got %q, want %q\n", who, got, want)
		return
	}

	u.Printf("cowcheck: %s: ok\n", who)
}

// waitFor yields until the environment id no longer exists.
func waitFor(u *lib.User, id env.ID) {
	for {
		_, err := u.Sys().EnvInfo(id)
		if errors.Is(err, kern.ErrBadEnv) {
			return
		}

		u.Yield()
	}
}
