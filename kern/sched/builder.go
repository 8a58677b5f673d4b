package sched

import (
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/sim"
	"go.uber.org/zap"
)

// A Builder can build schedulers.
type Builder struct {
	envs   *env.Table
	logger *zap.Logger
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		logger: zap.NewNop(),
	}
}

// WithEnvTable sets the environment table to schedule from.
func (b Builder) WithEnvTable(envs *env.Table) Builder {
	b.envs = envs
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a scheduler.
func (b Builder) Build() *Scheduler {
	if b.envs == nil {
		panic("scheduler requires an environment table")
	}

	return &Scheduler{
		HookableBase: sim.NewHookableBase(),
		envs:         b.envs,
		logger:       b.logger.Named("sched"),
	}
}
