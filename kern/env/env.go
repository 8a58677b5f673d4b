// Package env keeps the table of environments, the schedulable units of the
// kernel. Environments live in a fixed arena of slots and are named by
// generation-tagged IDs, so a stale ID never reaches a recycled slot.
package env

import "fmt"

// GenShift is the bit position of the generation inside an ID.
const GenShift = 12

// ID is a generation-tagged environment handle. ID 0 means "the caller" in
// system calls.
type ID int32

func (id ID) String() string {
	return fmt.Sprintf("%08x", int32(id))
}

// Status is the scheduling state of an environment.
type Status int

// Environment statuses.
const (
	Free Status = iota
	Dying
	Runnable
	Running
	NotRunnable
)

func (s Status) String() string {
	switch s {
	case Free:
		return "FREE"
	case Dying:
		return "DYING"
	case Runnable:
		return "RUNNABLE"
	case Running:
		return "RUNNING"
	case NotRunnable:
		return "NOT_RUNNABLE"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Type tells ordinary environments apart from the per-CPU idle ones.
type Type int

// Environment types.
const (
	User Type = iota
	Idle
)

func (t Type) String() string {
	if t == Idle {
		return "IDLE"
	}

	return "USER"
}

// Env is one slot of the environment table.
type Env struct {
	ID       ID
	ParentID ID
	Type     Type
	Status   Status

	// CPU is the CPU the environment last ran on, -1 if it never ran.
	CPU int

	// Runs counts how many times the environment has been dispatched.
	Runs int

	// Break is the end of the environment's program data.
	Break uint64

	slot int
}

// Slot returns the index of the environment in its table.
func (e *Env) Slot() int {
	return e.slot
}

// Info is a read-only snapshot of an environment.
type Info struct {
	ID       ID
	ParentID ID
	Type     Type
	Status   Status
	CPU      int
	Runs     int
	Break    uint64
}

// Info returns a snapshot of e.
func (e *Env) Info() Info {
	return Info{
		ID:       e.ID,
		ParentID: e.ParentID,
		Type:     e.Type,
		Status:   e.Status,
		CPU:      e.CPU,
		Runs:     e.Runs,
		Break:    e.Break,
	}
}
