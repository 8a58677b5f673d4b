package monitoring

import (
	"sync"
	"time"
)

// EnvProgress is the state of a ProgressBar at one instant. An environment is
// Running from its first dispatch until it is freed, after which it counts as
// Freed.
type EnvProgress struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Expected  uint64    `json:"expected"`
	Running   uint64    `json:"running"`
	Freed     uint64    `json:"freed"`
}

// A ProgressBar follows the user environments of one run.
type ProgressBar struct {
	lock  sync.Mutex
	state EnvProgress
}

// EnvStarted records the first dispatch of an environment. Expected grows when
// more environments start than were announced.
func (b *ProgressBar) EnvStarted() {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.state.Running++
	if seen := b.state.Running + b.state.Freed; seen > b.state.Expected {
		b.state.Expected = seen
	}
}

// EnvFreed moves a running environment to the freed count.
func (b *ProgressBar) EnvFreed() {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.state.Running == 0 {
		return
	}

	b.state.Running--
	b.state.Freed++
}

// Progress returns a copy of the current state.
func (b *ProgressBar) Progress() EnvProgress {
	b.lock.Lock()
	defer b.lock.Unlock()

	return b.state
}
