package user

import (
	"github.com/sarchlab/exokern/lib"
)

// ForkTree forks a binary tree of environments depth levels deep. Every
// environment prints its path from the root.
func ForkTree(depth int) func(u *lib.User) {
	return func(u *lib.User) {
		forktree(u, "", depth)
	}
}

func forktree(u *lib.User, cur string, depth int) {
	u.Printf("%04x: I am '%s'\n", int32(u.ThisEnv().ID)&0xffff, cur)

	forkchild(u, cur, '0', depth)
	forkchild(u, cur, '1', depth)
}

func forkchild(u *lib.User, cur string, branch byte, depth int) {
	if len(cur) >= depth {
		return
	}

	nxt := cur + string(branch)

	_, err := u.Fork(func(cu *lib.User) {
		forktree(cu, nxt, depth)
	})
	if err != nil {
		u.Panicf("fork: %v", err)
	}
}
