package registry

import "time"

// Reaper is the single process-wide background task that expires overdue
// in-flight entries. It is independent of any client's transport state —
// it fires timeouts even while a client is disconnected, because the
// in-flight table has no notion of connectivity.
type Reaper struct {
	registry *Registry
	tick     time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewReaper creates a Reaper that scans reg every tick.
func NewReaper(reg *Registry, tick time.Duration) *Reaper {
	return &Reaper{
		registry: reg,
		tick:     tick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run blocks, sleeping tick between scans of the registry, until Stop is
// called. Cancellation takes effect at the next sleep boundary, not
// mid-scan.
func (r *Reaper) Run() {
	defer close(r.done)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.registry.Iterate(func(c Reapable) {
				c.ReapTimeouts()
			})
		}
	}
}

// Stop signals the loop to terminate at its next sleep boundary and blocks
// until it has.
func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}
