// Package lib is the user-level runtime environments are written against. It
// wraps the system calls and implements copy-on-write fork on top of them.
package lib

import (
	"fmt"

	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
)

// User is the process-local context of a user environment.
type User struct {
	sys     kern.Syscalls
	tf      kern.Trapframe
	thisenv env.Info
	handler kern.Upcall
}

// Main turns a program body into an environment entry. The body gets a
// fully initialized User and the environment exits when the body returns.
func Main(body func(u *User)) kern.EntryFunc {
	return func(sys kern.Syscalls, tf kern.Trapframe) {
		u := &User{}
		u.start(sys, tf)
		body(u)
		u.Exit()
	}
}

// start binds u to the environment it runs in.
func (u *User) start(sys kern.Syscalls, tf kern.Trapframe) {
	u.sys = sys
	u.tf = tf

	info, err := sys.EnvInfo(sys.GetEnvID())
	if err != nil {
		u.Panicf("cannot find myself: %v", err)
		return
	}

	u.thisenv = info
}

// Sys returns the raw system call interface.
func (u *User) Sys() kern.Syscalls {
	return u.sys
}

// ThisEnv returns the environment the program runs in, as seen when the
// program started.
func (u *User) ThisEnv() env.Info {
	return u.thisenv
}

// Load reads one byte of memory.
func (u *User) Load(va uint64) byte {
	var b [1]byte
	if err := u.sys.Read(va, b[:]); err != nil {
		u.Panicf("load 0x%x: %v", va, err)
	}

	return b[0]
}

// Store writes one byte of memory.
func (u *User) Store(va uint64, b byte) {
	if err := u.sys.Write(va, []byte{b}); err != nil {
		u.Panicf("store 0x%x: %v", va, err)
	}
}

// Read reads len(buf) bytes of memory at va.
func (u *User) Read(va uint64, buf []byte) error {
	return u.sys.Read(va, buf)
}

// Write writes data to memory at va.
func (u *User) Write(va uint64, data []byte) error {
	return u.sys.Write(va, data)
}

// Yield gives the CPU to another environment.
func (u *User) Yield() {
	u.sys.Yield()
}

// Exit destroys the environment.
func (u *User) Exit() {
	_ = u.sys.EnvDestroy(0)
}

// Printf prints to the console.
func (u *User) Printf(format string, args ...any) {
	u.sys.Cputs(fmt.Sprintf(format, args...))
}

// Panicf prints a diagnostic and destroys the environment. It only returns
// if the environment survives its own destruction, which the kernel never
// allows; the returned error carries the message.
func (u *User) Panicf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	u.sys.Cputs(fmt.Sprintf("[%v] user panic: %s\n", u.thisenv.ID, msg))
	u.Exit()

	return fmt.Errorf("user panic: %s", msg)
}
