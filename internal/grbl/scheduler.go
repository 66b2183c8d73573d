package grbl

import (
	"time"

	"github.com/npratt/grblctl/internal/events"
)

// TickInterval is the periodic scheduler's cadence (§4.9).
const TickInterval = 250 * time.Millisecond

// senderQuiesceWindow is how long the machine must sit idle at an
// unchanged work position before an unfinished-looking program is
// declared complete and gcode:stop is issued automatically.
const senderQuiesceWindow = 500 * time.Millisecond

// Tick runs one periodic-scheduler pass. The caller (typically Run's
// ticker loop, which cmd/grblctl starts) supplies now so the engine's timing
// logic stays deterministic and testable.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.port == nil {
		return
	}

	if _, ok := e.feeder.Peek(); ok {
		snap := e.feeder.Snapshot()
		e.emit(&events.FeederStatusEvent{BaseEvent: events.NewInternalEvent(events.EventFeederStatus), Size: snap.Size, Held: snap.Held, Reason: snap.Reason})
	}
	if _, ok := e.sender.Peek(); ok {
		snap := e.sender.Snapshot()
		e.emit(&events.SenderStatusEvent{BaseEvent: events.NewInternalEvent(events.EventSenderStatus), Name: snap.Name, Sent: snap.Sent, Received: snap.Received, Total: snap.Total, Held: snap.Held})
	}

	e.checkDeviceChange()

	if e.ready {
		e.queryStatusReport(now)
		e.queryParserState(now)
	}

	e.tickSenderFinish(now)
}

// tickSenderFinish implements the §4.9 step 6 quiescence window: once a
// program has been fully acked, the sender keeps reporting IsComplete
// but the workflow only snaps back to Idle once the machine has sat
// still at an unchanged work position for senderQuiesceWindow.
func (e *Engine) tickSenderFinish(now time.Time) {
	if e.masks.senderFinishTime.IsZero() {
		if e.sender.IsComplete() && e.workflow.State() == WorkflowRunning {
			e.masks.senderFinishTime = now
			e.lastWorkPos = e.device.WorkPosition()
		}
		return
	}

	if e.device.IsIdle() && e.device.WorkPosition() == e.lastWorkPos {
		if now.Sub(e.masks.senderFinishTime) > senderQuiesceWindow {
			e.masks.senderFinishTime = time.Time{}
			e.workflow.Stop()
		}
		return
	}

	if !e.device.IsIdle() {
		e.masks.senderFinishTime = now
	}
	e.lastWorkPos = e.device.WorkPosition()
}
