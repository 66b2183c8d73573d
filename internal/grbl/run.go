package grbl

import (
	"context"
	"time"
)

// Run drives the engine for its lifetime: it classifies inbound lines
// as they arrive on lines and ticks the periodic scheduler on
// tickInterval, until ctx is cancelled or lines is closed (the latter
// signals the transport went away, e.g. a device disconnect).
//
// The caller owns the port and is responsible for closing it; Run
// itself never closes anything, so it can be reused across a
// reconnect without recreating the Engine.
func (e *Engine) Run(ctx context.Context, lines <-chan string, tickInterval time.Duration) error {
	if tickInterval <= 0 {
		tickInterval = TickInterval
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			e.HandleLine(line)
		case now := <-ticker.C:
			e.Tick(now)
		}
	}
}
