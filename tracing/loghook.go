package tracing

import (
	"go.uber.org/zap"

	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/kern/sched"
	"github.com/sarchlab/exokern/sim"
)

// LogHook writes every kernel and scheduler event as a debug log line.
type LogHook struct {
	logger *zap.Logger
}

// NewLogHook creates a LogHook that logs to logger.
func NewLogHook(logger *zap.Logger) *LogHook {
	return &LogHook{logger: logger.Named("trace")}
}

// Func logs the event.
func (h *LogHook) Func(ctx sim.HookCtx) {
	switch item := ctx.Item.(type) {
	case kern.DispatchEvent:
		h.logger.Debug("dispatch",
			zap.Int("cpu", item.CPU),
			zap.Stringer("env", item.Env.ID),
			zap.Int("runs", item.Env.Runs))
	case kern.FaultEvent:
		h.logger.Debug("page fault",
			zap.Stringer("env", item.Env),
			zap.Uint64("va", item.VA),
			zap.Uint32("err", item.Err),
			zap.Stringer("pte", item.PTE),
			zap.String("fatal", item.Fatal))
	case env.Info:
		h.logger.Debug("env free",
			zap.Stringer("env", item.ID),
			zap.Stringer("parent", item.ParentID),
			zap.Stringer("status", item.Status))
	case sched.Decision:
		h.logger.Debug("select",
			zap.Int("cpu", item.CPU),
			zap.Stringer("prev", item.Prev),
			zap.Stringer("next", item.Next),
			zap.String("reason", string(item.Reason)))
	default:
		h.logger.Debug(ctx.Pos.Name)
	}
}
