package lib

import (
	"errors"
	"fmt"

	"github.com/sarchlab/exokern/mem/vm"
)

// ErrUnsupportedMapping is returned when fork meets a page it cannot share.
var ErrUnsupportedMapping = errors.New("lib: unsupported page mapping")

// ErrNoHandler is returned by an upcall that has no handler to run.
var ErrNoHandler = errors.New("lib: no page fault handler")

// ErrNotCOW is the cause of a FaultError for a fault the copy-on-write
// handler does not handle.
var ErrNotCOW = errors.New("not a write to a copy-on-write page")

// A FaultError is a page fault the copy-on-write handler refused or failed
// to resolve.
type FaultError struct {
	VA    uint64
	PTE   vm.PTE
	Code  uint32
	Op    string
	Cause error
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("pgfault at va 0x%08x pte %v err %x: %s: %v",
		e.VA, e.PTE, e.Code, e.Op, e.Cause)
}

func (e *FaultError) Unwrap() error {
	return e.Cause
}
