package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/sim"
)

// EventCounter counts hook invocations per position, and dispatches and
// faults per environment.
type EventCounter struct {
	lock       sync.Mutex
	byPos      map[string]uint64
	dispatches map[env.ID]uint64
	faults     map[env.ID]uint64
}

// NewEventCounter creates a new EventCounter.
func NewEventCounter() *EventCounter {
	return &EventCounter{
		byPos:      make(map[string]uint64),
		dispatches: make(map[env.ID]uint64),
		faults:     make(map[env.ID]uint64),
	}
}

// Func counts one invocation.
func (c *EventCounter) Func(ctx sim.HookCtx) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.byPos[ctx.Pos.Name]++

	switch item := ctx.Item.(type) {
	case kern.DispatchEvent:
		c.dispatches[item.Env.ID]++
	case kern.FaultEvent:
		c.faults[item.Env]++
	}
}

// Count returns how many times hooks at the named position fired.
func (c *EventCounter) Count(posName string) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.byPos[posName]
}

// Dispatches returns how many times id was dispatched.
func (c *EventCounter) Dispatches(id env.ID) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.dispatches[id]
}

// Faults returns how many page faults id took.
func (c *EventCounter) Faults(id env.ID) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.faults[id]
}

// Snapshot returns the per-position counts, keyed by position name.
func (c *EventCounter) Snapshot() map[string]uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	out := make(map[string]uint64, len(c.byPos))
	for k, v := range c.byPos {
		out[k] = v
	}

	return out
}

// PosNames returns the names of the positions seen so far, sorted.
func (c *EventCounter) PosNames() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	names := make([]string, 0, len(c.byPos))
	for k := range c.byPos {
		names = append(names, k)
	}

	sort.Strings(names)

	return names
}
