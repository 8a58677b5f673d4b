package vm

import (
	"errors"
	"sort"
	"sync"
)

// PID identifies the address space a mapping belongs to.
type PID uint32

// ErrNoMem is returned when the frame pool is exhausted.
var ErrNoMem = errors.New("vm: out of physical frames")

// A Mapping is one (address space, virtual page) pair that references a
// frame.
type Mapping struct {
	PID   PID
	VAddr uint64
}

// A Frame is a physical page. A frame records every mapping that references
// it so that sharing can be audited directly rather than inferred from flag
// bits.
type Frame struct {
	PPN  uint64
	Data []byte

	refs map[Mapping]struct{}
}

// RefCount returns the number of mappings that reference the frame.
func (f *Frame) RefCount() int {
	return len(f.refs)
}

// Refs returns the mappings that reference the frame, ordered by PID and
// address.
func (f *Frame) Refs() []Mapping {
	refs := make([]Mapping, 0, len(f.refs))
	for m := range f.refs {
		refs = append(refs, m)
	}

	sort.Slice(refs, func(i, j int) bool {
		if refs[i].PID != refs[j].PID {
			return refs[i].PID < refs[j].PID
		}
		return refs[i].VAddr < refs[j].VAddr
	})

	return refs
}

// A FramePool hands out zeroed frames up to a fixed capacity. A frame goes
// back to the pool when its last reference is dropped.
type FramePool struct {
	sync.Mutex
	capacity int
	nextPPN  uint64
	recycled []*Frame
	inUse    map[uint64]*Frame
}

// NewFramePool creates a pool with room for capacity frames.
func NewFramePool(capacity int) *FramePool {
	if capacity <= 0 {
		panic("frame pool capacity must be positive")
	}

	return &FramePool{
		capacity: capacity,
		inUse:    make(map[uint64]*Frame),
	}
}

// Alloc returns a zeroed frame with no references. The frame is released
// automatically once a mapping referencing it is removed and no other
// mapping remains. A frame that never gets mapped must be handed back with
// Release.
func (p *FramePool) Alloc() (*Frame, error) {
	p.Lock()
	defer p.Unlock()

	if len(p.inUse) >= p.capacity {
		return nil, ErrNoMem
	}

	var f *Frame
	if n := len(p.recycled); n > 0 {
		f = p.recycled[n-1]
		p.recycled = p.recycled[:n-1]
		clear(f.Data)
	} else {
		f = &Frame{
			PPN:  p.nextPPN,
			Data: make([]byte, PageSize),
		}
		p.nextPPN++
	}

	f.refs = make(map[Mapping]struct{})
	p.inUse[f.PPN] = f

	return f, nil
}

// Release returns an unreferenced frame to the pool.
func (p *FramePool) Release(f *Frame) {
	p.Lock()
	defer p.Unlock()

	if len(f.refs) > 0 {
		panic("releasing a referenced frame")
	}

	p.release(f)
}

func (p *FramePool) release(f *Frame) {
	if _, ok := p.inUse[f.PPN]; !ok {
		panic("frame is not in use")
	}

	delete(p.inUse, f.PPN)
	p.recycled = append(p.recycled, f)
}

func (p *FramePool) addRef(f *Frame, m Mapping) {
	p.Lock()
	defer p.Unlock()

	f.refs[m] = struct{}{}
}

func (p *FramePool) removeRef(f *Frame, m Mapping) {
	p.Lock()
	defer p.Unlock()

	delete(f.refs, m)
	if len(f.refs) == 0 {
		p.release(f)
	}
}

// InUse returns the number of allocated frames.
func (p *FramePool) InUse() int {
	p.Lock()
	defer p.Unlock()

	return len(p.inUse)
}

// Free returns the number of frames that can still be allocated.
func (p *FramePool) Free() int {
	p.Lock()
	defer p.Unlock()

	return p.capacity - len(p.inUse)
}

// Frames returns the allocated frames ordered by PPN.
func (p *FramePool) Frames() []*Frame {
	p.Lock()
	defer p.Unlock()

	frames := make([]*Frame, 0, len(p.inUse))
	for _, f := range p.inUse {
		frames = append(frames, f)
	}

	sort.Slice(frames, func(i, j int) bool {
		return frames[i].PPN < frames[j].PPN
	})

	return frames
}
