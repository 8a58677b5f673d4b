package simulation

import (
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/sarchlab/exokern/datarecording"
	"github.com/sarchlab/exokern/kern"
	"github.com/sarchlab/exokern/monitoring"
	"github.com/sarchlab/exokern/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	kernelBuilder  kern.Builder
	logger         *zap.Logger
	recordOn       bool
	outputFileName string
	monitorOn      bool
	monitorPort    int
	openBrowser    bool
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		kernelBuilder: kern.MakeBuilder(),
		logger:        zap.NewNop(),
		recordOn:      true,
		monitorOn:     true,
	}
}

// WithKernelBuilder sets how the kernel is built.
func (b Builder) WithKernelBuilder(kb kern.Builder) Builder {
	b.kernelBuilder = kb
	return b
}

// WithLogger sets the logger passed to every part of the simulation.
func (b Builder) WithLogger(logger *zap.Logger) Builder {
	b.logger = logger
	return b
}

// WithoutRecording turns off the SQLite trace.
func (b Builder) WithoutRecording() Builder {
	b.recordOn = false
	return b
}

// WithOutputFileName sets the custom output file name for the data recorder.
func (b Builder) WithOutputFileName(filename string) Builder {
	b.outputFileName = filename
	return b
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithBrowser opens the monitoring page once the server is up.
func (b Builder) WithBrowser() Builder {
	b.openBrowser = true
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && (b.monitorPort != 0 || b.openBrowser) {
		panic("monitor options cannot be set when monitoring is disabled")
	}

	if !b.recordOn && b.outputFileName != "" {
		panic("output file cannot be set when recording is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:     xid.New().String(),
		logger: b.logger.Named("simulation"),
	}

	s.kernel = b.kernelBuilder.WithLogger(b.logger).Build()

	s.counter = tracing.NewEventCounter()
	s.attach(s.counter)
	s.attach(tracing.NewLogHook(b.logger))

	if b.recordOn {
		outputPath := b.outputFileName
		if outputPath == "" {
			outputPath = "exokern_sim_" + s.id
		}

		s.dataRecorder = datarecording.New(outputPath)
		s.dbTracer = tracing.NewDBTracer(s.dataRecorder)
		s.attach(s.dbTracer)
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().WithLogger(b.logger)
		if b.monitorPort > 0 {
			s.monitor.WithPortNumber(b.monitorPort)
		}

		if b.openBrowser {
			s.monitor.WithBrowser()
		}

		s.monitor.RegisterMachine(s.kernel)
		s.monitor.RegisterEventCounts(s.counter)
		s.kernel.AcceptHook(progressHook{
			bar: s.monitor.CreateProgressBar("environments", 0),
		})
		s.monitor.StartServer()
	}

	return s
}
