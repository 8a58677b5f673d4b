package simulation

import (
	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/monitoring"
	"github.com/sarchlab/exokern/sim"
)

// progressHook counts a user environment as running from its first
// dispatch until it is freed.
type progressHook struct {
	bar *monitoring.ProgressBar
}

func (h progressHook) Func(ctx sim.HookCtx) {
	switch item := ctx.Item.(type) {
	case kern.DispatchEvent:
		if item.Env.Type == env.User && item.Env.Runs == 1 {
			h.bar.EnvStarted()
		}
	case env.Info:
		if ctx.Pos == kern.HookPosEnvFree &&
			item.Type == env.User && item.Runs > 0 {
			h.bar.EnvFreed()
		}
	}
}
