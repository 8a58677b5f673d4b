package kern

import (
	"errors"
	"fmt"

	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/mem/vm"
)

// Error is the error kind a system call returns. Every kind has a negative
// code so that it can travel through a return register.
type Error int

// System call errors.
const (
	ErrUnspecified Error = -1
	ErrBadEnv      Error = -2
	ErrInval       Error = -3
	ErrNoMem       Error = -4
	ErrNoFreeEnv   Error = -5
	ErrFault       Error = -6
)

var errorStrings = map[Error]string{
	ErrUnspecified: "unspecified error",
	ErrBadEnv:      "bad environment",
	ErrInval:       "invalid parameter",
	ErrNoMem:       "out of memory",
	ErrNoFreeEnv:   "out of environments",
	ErrFault:       "segmentation fault",
}

func (e Error) Error() string {
	if s, ok := errorStrings[e]; ok {
		return s
	}

	return fmt.Sprintf("error %d", int(e))
}

// Code returns the numeric error code.
func (e Error) Code() int {
	return int(e)
}

// toError converts errors from the kernel's own packages into the kind
// reported to user environments.
func toError(err error) Error {
	var kerr Error

	switch {
	case err == nil:
		return 0
	case errors.As(err, &kerr):
		return kerr
	case errors.Is(err, env.ErrNoFreeEnv):
		return ErrNoFreeEnv
	case errors.Is(err, env.ErrBadEnv):
		return ErrBadEnv
	case errors.Is(err, vm.ErrNoMem):
		return ErrNoMem
	default:
		return ErrUnspecified
	}
}
