// Package tracing turns kernel hook invocations into records.
package tracing

import (
	"sync"

	"github.com/tebeka/atexit"

	"github.com/sarchlab/exokern/datarecording"
	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/kern/sched"
	"github.com/sarchlab/exokern/sim"
)

// Table names written by a DBTracer.
const (
	TableDispatch = "dispatch"
	TableFault    = "fault"
	TableEnvFree  = "env_free"
	TableSched    = "sched"
)

// DispatchEntry is a row of the dispatch table.
type DispatchEntry struct {
	Seq    uint64
	CPU    int
	Env    string
	Parent string
	Runs   int
}

// FaultEntry is a row of the fault table.
type FaultEntry struct {
	Seq   uint64
	Env   string
	VA    uint64
	Err   uint32
	PTE   string
	Fatal string
}

// EnvFreeEntry is a row of the env_free table.
type EnvFreeEntry struct {
	Seq    uint64
	Env    string
	Parent string
	Status string
	Runs   int
}

// SchedEntry is a row of the sched table.
type SchedEntry struct {
	Seq    uint64
	CPU    int
	Prev   string
	Next   string
	Reason string
}

// DBTracer is a hook that stores kernel and scheduler events into a
// DataRecorder. Seq orders the rows of all the tables in a single sequence.
type DBTracer struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder
	seq     uint64
}

// NewDBTracer creates a DBTracer and the tables it writes.
func NewDBTracer(dataRecorder datarecording.DataRecorder) *DBTracer {
	dataRecorder.CreateTable(TableDispatch, DispatchEntry{})
	dataRecorder.CreateTable(TableFault, FaultEntry{})
	dataRecorder.CreateTable(TableEnvFree, EnvFreeEntry{})
	dataRecorder.CreateTable(TableSched, SchedEntry{})

	t := &DBTracer{
		backend: dataRecorder,
	}

	atexit.Register(func() {
		t.Terminate()
	})

	return t
}

// Func records the hook item if the position is a known one.
func (t *DBTracer) Func(ctx sim.HookCtx) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ctx.Pos {
	case kern.HookPosDispatch:
		e := ctx.Item.(kern.DispatchEvent)
		t.insert(TableDispatch, DispatchEntry{
			Seq:    t.next(),
			CPU:    e.CPU,
			Env:    e.Env.ID.String(),
			Parent: e.Env.ParentID.String(),
			Runs:   e.Env.Runs,
		})
	case kern.HookPosPageFault:
		f := ctx.Item.(kern.FaultEvent)
		t.insert(TableFault, FaultEntry{
			Seq:   t.next(),
			Env:   f.Env.String(),
			VA:    f.VA,
			Err:   f.Err,
			PTE:   f.PTE.String(),
			Fatal: f.Fatal,
		})
	case kern.HookPosEnvFree:
		info := ctx.Item.(env.Info)
		t.insert(TableEnvFree, EnvFreeEntry{
			Seq:    t.next(),
			Env:    info.ID.String(),
			Parent: info.ParentID.String(),
			Status: info.Status.String(),
			Runs:   info.Runs,
		})
	case sched.HookPosSelect:
		d := ctx.Item.(sched.Decision)
		t.insert(TableSched, SchedEntry{
			Seq:    t.next(),
			CPU:    d.CPU,
			Prev:   d.Prev.String(),
			Next:   d.Next.String(),
			Reason: string(d.Reason),
		})
	}
}

func (t *DBTracer) next() uint64 {
	t.seq++
	return t.seq
}

func (t *DBTracer) insert(table string, entry any) {
	if t.backend == nil {
		return
	}

	t.backend.InsertData(table, entry)
}

// Terminate flushes the backend. Events arriving after Terminate are
// dropped.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.backend == nil {
		return
	}

	t.backend.Flush()
	t.backend = nil
}
