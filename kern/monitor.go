package kern

import (
	"fmt"
	"io"

	"github.com/sarchlab/exokern/kern/env"
	"go.uber.org/zap"
)

// A Monitor is the operator console the machine drops into when it halts
// for a diagnostic reason.
type Monitor interface {
	// Enter is called with the reason and a snapshot of all live
	// environments. The kernel lock is held; Enter must not call back into
	// the kernel.
	Enter(msg string, envs []env.Info)
}

// ConsoleMonitor prints the reason and the environment table.
type ConsoleMonitor struct {
	w      io.Writer
	logger *zap.Logger
}

// NewConsoleMonitor creates a ConsoleMonitor that writes to w.
func NewConsoleMonitor(w io.Writer, logger *zap.Logger) *ConsoleMonitor {
	return &ConsoleMonitor{w: w, logger: logger}
}

// Enter prints msg and every environment that is not idle. Environments that
// are still NOT_RUNNABLE are likely to be deadlocked.
func (m *ConsoleMonitor) Enter(msg string, envs []env.Info) {
	fmt.Fprintln(m.w, msg)

	stuck := 0
	for _, e := range envs {
		if e.Type == env.Idle {
			continue
		}

		if e.Status == env.NotRunnable {
			stuck++
		}

		fmt.Fprintf(m.w, "  [%v] %-12v parent %v runs %d\n",
			e.ID, e.Status, e.ParentID, e.Runs)
	}

	m.logger.Warn("entered monitor",
		zap.String("reason", msg),
		zap.Int("not_runnable", stuck))
}
