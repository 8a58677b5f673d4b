package kern

import (
	"encoding/binary"

	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
)

// EntryFunc is the code an environment starts executing on its first
// dispatch.
type EntryFunc func(sys Syscalls, tf Trapframe)

// Upcall is the user-level page fault entry point. A nil return resumes the
// faulting access. Any error is fatal to the environment.
type Upcall func(sys Syscalls, utf UTrapframe) error

// A Trapframe is the saved user context of an environment.
type Trapframe struct {
	// ESP is the user stack pointer.
	ESP uint64

	// Ret is the value of the return register. A child created by ExoFork
	// starts with Ret 0.
	Ret int64

	Entry EntryFunc
}

// A UTrapframe describes a page fault to the user-level handler.
type UTrapframe struct {
	FaultVA uint64
	Err     uint32
	ESP     uint64
}

// utrapframeSize is the number of bytes a UTrapframe occupies on the
// exception stack.
const utrapframeSize = 24

// push stores utf at the top of the exception stack frame.
func (utf UTrapframe) push(xstack *vm.Frame) {
	buf := xstack.Data[vm.PageSize-utrapframeSize:]
	binary.LittleEndian.PutUint64(buf[0:], utf.FaultVA)
	binary.LittleEndian.PutUint64(buf[8:], uint64(utf.Err))
	binary.LittleEndian.PutUint64(buf[16:], utf.ESP)
}

// Syscalls is the system call interface of one environment. All environment
// arguments accept 0 as "the calling environment".
type Syscalls interface {
	// GetEnvID returns the ID of the calling environment.
	GetEnvID() env.ID

	// EnvInfo returns a snapshot of any live environment.
	EnvInfo(id env.ID) (env.Info, error)

	// VPT returns a read-only view of the caller's page table.
	VPT() vm.View

	// ExoFork creates a child with an empty address space and a copy of the
	// caller's trap frame whose return value is 0. The child is not
	// runnable.
	ExoFork() (env.ID, error)

	EnvSetStatus(id env.ID, status env.Status) error
	EnvSetTrapframe(id env.ID, tf Trapframe) error
	EnvSetPgfaultUpcall(id env.ID, upcall Upcall) error

	// EnvDestroy destroys an environment. Destroying the caller does not
	// return.
	EnvDestroy(id env.ID) error

	// PageAlloc maps a zeroed frame at va, replacing any existing mapping.
	PageAlloc(id env.ID, va uint64, perm vm.PTE) error

	// PageMap maps the frame behind srcVA in src at dstVA in dst.
	PageMap(srcID env.ID, srcVA uint64, dstID env.ID, dstVA uint64,
		perm vm.PTE) error

	// PageUnmap removes the mapping at va, if any.
	PageUnmap(id env.ID, va uint64) error

	// Yield gives up the CPU.
	Yield()

	// Cputs prints to the console.
	Cputs(s string)

	// Read and Write access the caller's memory as user code does. A page
	// fault is delivered to the caller's upcall and the access retried.
	Read(va uint64, buf []byte) error
	Write(va uint64, data []byte) error
}
