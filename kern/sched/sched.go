// Package sched implements the per-CPU round-robin scheduler.
package sched

import (
	"errors"
	"fmt"

	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/sim"
	"go.uber.org/zap"
)

// Errors that stop a CPU. Both are fatal.
var (
	// ErrInconsistent means a runnable environment was missed by the scan,
	// which can only happen if the table bookkeeping is corrupt.
	ErrInconsistent = errors.New("sched: environment table is inconsistent")

	// ErrNoIdleEnv means the CPU's idle environment cannot be run.
	ErrNoIdleEnv = errors.New("sched: no idle environment")
)

// HookPosSelect is triggered after every scheduling decision. The hook item
// is a Decision.
var HookPosSelect = &sim.HookPos{Name: "SchedSelect"}

// Reason tells which rule picked an environment.
type Reason string

// Scheduling reasons.
const (
	ReasonScan     Reason = "scan"
	ReasonFallback Reason = "fallback"
	ReasonIdle     Reason = "idle"
)

// A Decision records one scheduling choice.
type Decision struct {
	CPU    int
	Prev   env.ID
	Next   env.ID
	Reason Reason
}

// Scheduler picks the next environment for a CPU. It does not lock; the
// caller serializes all calls with the rest of the kernel.
type Scheduler struct {
	*sim.HookableBase

	envs   *env.Table
	logger *zap.Logger
}

// Next returns the environment that cpu should run after prev, which is the
// environment the CPU ran last (nil if none).
//
// Slots are scanned circularly starting after prev. The first Runnable
// environment that is not an idle one wins. If there is none and prev is
// still Running, prev keeps the CPU. Otherwise the CPU runs its idle
// environment, which lives in slot cpu.
func (s *Scheduler) Next(cpu int, prev *env.Env) (*env.Env, error) {
	e, reason, err := s.next(cpu, prev)
	if err != nil {
		return nil, err
	}

	d := Decision{CPU: cpu, Next: e.ID, Reason: reason}
	if prev != nil {
		d.Prev = prev.ID
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    HookPosSelect,
		Item:   d,
	})

	return e, nil
}

func (s *Scheduler) next(cpu int, prev *env.Env) (*env.Env, Reason, error) {
	n := s.envs.Len()

	start := 0
	if prev != nil {
		start = prev.Slot() + 1
	}

	for i := 0; i < n; i++ {
		e := s.envs.At((start + i) % n)
		if e.Status == env.Runnable && e.Type != env.Idle {
			return e, ReasonScan, nil
		}
	}

	if prev != nil && prev.Status == env.Running {
		return prev, ReasonFallback, nil
	}

	if err := s.mustBeConsistent(cpu, prev); err != nil {
		return nil, "", err
	}

	idle := s.envs.At(cpu)
	if idle.Type != env.Idle ||
		(idle.Status != env.Runnable && idle.Status != env.Running) {
		s.logger.Error("no idle environment",
			zap.Int("cpu", cpu),
			zap.Stringer("status", idle.Status))
		return nil, "", fmt.Errorf("cpu %d: %w", cpu, ErrNoIdleEnv)
	}

	return idle, ReasonIdle, nil
}

// mustBeConsistent double checks the scan. A runnable user environment
// cannot exist here, and neither can one that claims to be running on this
// CPU while not being the CPU's last environment.
func (s *Scheduler) mustBeConsistent(cpu int, prev *env.Env) error {
	var bad *env.Env

	s.envs.Each(func(e *env.Env) {
		if bad != nil || e.Type == env.Idle || e == prev {
			return
		}

		if e.Status == env.Runnable ||
			(e.Status == env.Running && e.CPU == cpu) {
			bad = e
		}
	})

	if bad == nil {
		return nil
	}

	s.logger.Error("scheduler missed an environment",
		zap.Int("cpu", cpu),
		zap.Stringer("env", bad.ID),
		zap.Stringer("status", bad.Status))

	return fmt.Errorf("cpu %d, env %v: %w", cpu, bad.ID, ErrInconsistent)
}
