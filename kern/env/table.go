package env

import (
	"errors"
	"fmt"
	"math/bits"
)

// Errors reported by the table.
var (
	ErrNoFreeEnv = errors.New("env: no free environment slot")
	ErrBadEnv    = errors.New("env: bad environment id")
)

// Table is the fixed-capacity arena of environments.
type Table struct {
	envs     []Env
	reserved int
}

// NewTable creates a table with capacity slots. Capacity must be a power of
// two no larger than 1<<GenShift. The first reserved slots are only handed
// out by AllocAt, which is how per-CPU idle environments get their slots.
func NewTable(capacity, reserved int) *Table {
	if capacity <= 0 || bits.OnesCount(uint(capacity)) != 1 {
		panic("environment table capacity must be a power of two")
	}

	if capacity > 1<<GenShift {
		panic("environment table capacity exceeds the generation shift")
	}

	if reserved < 0 || reserved >= capacity {
		panic("too many reserved environment slots")
	}

	t := &Table{
		envs:     make([]Env, capacity),
		reserved: reserved,
	}

	for i := range t.envs {
		t.envs[i].slot = i
		t.envs[i].CPU = -1
	}

	return t
}

// Len returns the capacity of the table.
func (t *Table) Len() int {
	return len(t.envs)
}

// At returns the environment in a slot, whatever its status.
func (t *Table) At(slot int) *Env {
	return &t.envs[slot]
}

// Index returns the slot an ID refers to.
func (t *Table) Index(id ID) int {
	return int(id) & (len(t.envs) - 1)
}

// Alloc takes the lowest free unreserved slot and gives it a fresh
// generation. The new environment is NotRunnable.
func (t *Table) Alloc(parent ID, typ Type) (*Env, error) {
	for i := t.reserved; i < len(t.envs); i++ {
		if t.envs[i].Status == Free {
			return t.AllocAt(i, parent, typ)
		}
	}

	return nil, ErrNoFreeEnv
}

// AllocAt allocates a specific free slot.
func (t *Table) AllocAt(slot int, parent ID, typ Type) (*Env, error) {
	e := &t.envs[slot]
	if e.Status != Free {
		return nil, fmt.Errorf("slot %d: %w", slot, ErrNoFreeEnv)
	}

	generation := (int32(e.ID) + 1<<GenShift) &^ int32(len(t.envs)-1)
	if generation <= 0 {
		generation = 1 << GenShift
	}

	*e = Env{
		ID:       ID(generation | int32(slot)),
		ParentID: parent,
		Type:     typ,
		Status:   NotRunnable,
		CPU:      -1,
		slot:     slot,
	}

	return e, nil
}

// Free releases a slot. Its ID is kept so that the next allocation of the
// slot moves to a new generation.
func (t *Table) Free(e *Env) {
	if e.Status == Free {
		panic("freeing a free environment")
	}

	e.Status = Free
	e.CPU = -1
}

// Lookup resolves an ID to its live environment. IDs of freed slots and IDs
// from an older generation of the slot are rejected.
func (t *Table) Lookup(id ID) (*Env, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%v: %w", id, ErrBadEnv)
	}

	e := &t.envs[t.Index(id)]
	if e.Status == Free || e.ID != id {
		return nil, fmt.Errorf("%v: %w", id, ErrBadEnv)
	}

	return e, nil
}

// Each calls f for every slot in slot order.
func (t *Table) Each(f func(e *Env)) {
	for i := range t.envs {
		f(&t.envs[i])
	}
}
