package scheduler

import (
	"time"

	"github.com/eleven-am/benchtop/internal/domain"
)

// monitor periodically sweeps for overdue running steps until the engine
// stops. Detection is advisory: nothing is ever force-completed.
func (e *Engine) monitor() {
	defer e.wg.Done()

	interval := e.config.TimeoutCheckInterval
	if interval <= 0 {
		interval = domain.DefaultSchedulerConfig().TimeoutCheckInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.CheckTimeouts()
		}
	}
}
