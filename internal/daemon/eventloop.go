package daemon

import (
	"context"
	"time"
)

// EventLoop runs periodic maintenance while the daemon is up
type EventLoop struct {
	daemon   *Daemon
	interval time.Duration
}

// NewEventLoop creates a new event loop
func NewEventLoop(d *Daemon) *EventLoop {
	return &EventLoop{
		daemon:   d,
		interval: 30 * time.Second,
	}
}

// Run ticks until ctx is done
func (e *EventLoop) Run(ctx context.Context) {
	e.daemon.logger.Info().Msg("Event loop started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.daemon.logger.Info().Msg("Event loop stopping")
			return
		case <-ticker.C:
			e.processTasks(ctx)
		}
	}
}

// processTasks checks store health and reports lane load
func (e *EventLoop) processTasks(ctx context.Context) {
	core := e.daemon.core

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := core.Store.Ping(pingCtx); err != nil {
		e.daemon.logger.Warn().Err(err).Msg("Session store health check failed")
	}

	if lanes := core.Queue.ActiveLanes(); lanes > 0 {
		e.daemon.logger.Debug().Int("active_lanes", lanes).Msg("Queue stats")
	}
}
