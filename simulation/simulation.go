// Package simulation assembles a machine with its recorder, tracers and
// monitor.
package simulation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sarchlab/exokern/datarecording"
	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/kern/env"
	"github.com/sarchlab/exokern/monitoring"
	"github.com/sarchlab/exokern/sim"
	"github.com/sarchlab/exokern/tracing"
)

// A Simulation is one boot of the machine.
type Simulation struct {
	id     string
	logger *zap.Logger

	kernel       *kern.Kernel
	dataRecorder datarecording.DataRecorder
	dbTracer     *tracing.DBTracer
	counter      *tracing.EventCounter
	monitor      *monitoring.Monitor
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Kernel returns the kernel of the machine.
func (s *Simulation) Kernel() *kern.Kernel {
	return s.kernel
}

// GetDataRecorder returns the data recorder used in the simulation, nil if
// recording is off.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation, nil if monitoring is
// off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// GetEventCounter returns the counter of kernel events.
func (s *Simulation) GetEventCounter() *tracing.EventCounter {
	return s.counter
}

// Spawn creates a runnable environment for prog.
func (s *Simulation) Spawn(prog kern.Program) (env.ID, error) {
	return s.kernel.CreateEnv(prog)
}

// Run runs the machine until it halts.
func (s *Simulation) Run(ctx context.Context) error {
	start := time.Now()

	err := s.kernel.Run(ctx)

	s.logger.Info("simulation finished",
		zap.String("id", s.id),
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("dispatches", s.counter.Count(kern.HookPosDispatch.Name)),
		zap.Uint64("faults", s.counter.Count(kern.HookPosPageFault.Name)),
		zap.Error(err))

	return err
}

// Terminate flushes the records and stops the monitoring server.
func (s *Simulation) Terminate() error {
	var errs []error

	if s.dbTracer != nil {
		s.dbTracer.Terminate()
	}

	if s.dataRecorder != nil {
		errs = append(errs, s.dataRecorder.Close())
	}

	if s.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		errs = append(errs, s.monitor.StopServer(ctx))
	}

	return errors.Join(errs...)
}

// attach registers h with the kernel and its scheduler.
func (s *Simulation) attach(h sim.Hook) {
	s.kernel.AcceptHook(h)
	s.kernel.Scheduler().AcceptHook(h)
}
