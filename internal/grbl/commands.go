package grbl

import (
	"fmt"
	"time"

	"github.com/npratt/grblctl/internal/events"
)

// Override byte tables (§6): Feed 100%/+10/-10/+1/-1, Spindle same
// semantics, Rapid 100/50/25.
var feedOverrideBytes = map[string]string{
	"100": "\x90", "+10": "\x91", "-10": "\x92", "+1": "\x93", "-1": "\x94",
}

var spindleOverrideBytes = map[string]string{
	"100": "\x99", "+10": "\x9a", "-10": "\x9b", "+1": "\x9c", "-1": "\x9d",
}

var rapidOverrideBytes = map[string]string{
	"100": "\x95", "50": "\x96", "25": "\x97",
}

// WorkflowState reports the Idle/Running/Paused state for status queries.
func (e *Engine) WorkflowState() WorkflowState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.workflow.State()
}

// WorkflowReason reports the reason the workflow last paused, if any.
func (e *Engine) WorkflowReason() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.workflow.Reason()
}

// DeviceSnapshot reports the controller's last-known machine state.
func (e *Engine) DeviceSnapshot() DeviceSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.device.Snapshot()
}

// FeederSnapshot reports the ad-hoc command queue's current state.
func (e *Engine) FeederSnapshot() FeederSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.feeder.Snapshot()
}

// SenderSnapshot reports the loaded program's send/ack progress.
func (e *Engine) SenderSnapshot() SenderSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sender.Snapshot()
}

// Bind registers a named event-trigger binding (§4.7), e.g. from
// configured event_triggers entries loaded at startup.
func (e *Engine) Bind(name string, b Binding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trigger.Bind(name, b)
}

// LoadGcode loads a named program into the Sender (gcode:load).
func (e *Engine) LoadGcode(name, text string, ctx *ExecContext) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ctx == nil {
		ctx = NewExecContext()
	}
	if !e.sender.Load(name, text, ctx) {
		return false
	}
	e.emit(&events.GcodeLoadEvent{BaseEvent: events.NewUserEvent(events.EventGcodeLoad), Name: name, Lines: e.sender.Total()})
	return true
}

// UnloadGcode clears the loaded program (gcode:unload).
func (e *Engine) UnloadGcode() {
	e.mu.Lock()
	defer e.mu.Unlock()
	name := e.sender.Snapshot().Name
	e.sender.Unload()
	e.emit(&events.GcodeUnloadEvent{BaseEvent: events.NewUserEvent(events.EventGcodeUnload), Name: name})
}

// Start begins streaming the loaded program (gcode:start).
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startLocked()
}

func (e *Engine) startLocked() { e.workflow.Start() }

// Pause pauses the running program (gcode:pause).
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseLocked()
}

func (e *Engine) pauseLocked() { e.workflow.Pause("user") }

// Resume resumes a paused program (gcode:resume).
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumeLocked()
}

func (e *Engine) resumeLocked() { e.workflow.Resume() }

// Stop halts the workflow. With force=true it writes a feed-hold
// immediately and schedules a soft reset 500ms later, conditioned on the
// device having reached Hold by then; the check runs off a timer rather
// than blocking the caller, since HandleLine/Tick/command dispatch all
// share this engine's single executor and none of them may block it.
func (e *Engine) Stop(force bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(force)
}

func (e *Engine) stopLocked(force bool) {
	if force {
		e.Write(rtFeedHold)
		time.AfterFunc(500*time.Millisecond, e.checkHoldForReset)
	}
	e.workflow.Stop()
}

// checkHoldForReset is the Stop(true) follow-up: if the device is still
// (or by now) in Hold, finish the forced stop with a soft reset. Runs on
// its own goroutine via time.AfterFunc, so it takes the lock itself.
func (e *Engine) checkHoldForReset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.device == nil || e.port == nil {
		return
	}
	if e.device.State() == StateHold {
		e.Write(rtSoftReset)
	}
}

// Gcode feeds ad-hoc lines through the Feeder (the `gcode` command-bus
// key), independent of any loaded Sender program. If the Feeder was
// empty before this call, kick off transmission of the head line;
// later lines only advance on each incoming ok (§4.8).
func (e *Engine) Gcode(lines []string, ctx *ExecContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gcodeLocked(lines, ctx)
}

func (e *Engine) gcodeLocked(lines []string, ctx *ExecContext) {
	if ctx == nil {
		ctx = NewExecContext()
	}
	_, wasPending := e.feeder.Peek()
	e.feeder.Feed(lines, ctx)
	if !wasPending {
		e.feeder.Next()
	}
}

// FeederFeed, FeederStart, FeederPause and FeederStop are the
// `feeder:{feed,start,pause,stop}` command-bus keys.
func (e *Engine) FeederFeed(lines []string, ctx *ExecContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gcodeLocked(lines, ctx)
}

func (e *Engine) FeederStart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feeder.Unhold()
}

func (e *Engine) FeederPause(reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feeder.Hold(reason)
}

func (e *Engine) FeederStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feeder.Clear()
}

// Feedhold writes the real-time feed-hold byte.
func (e *Engine) Feedhold() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Write(rtFeedHold)
	e.emit(&events.FeederStatusEvent{BaseEvent: events.NewUserEvent(events.EventFeedhold), Held: e.feeder.Snapshot().Held})
}

// Cyclestart writes the real-time cycle-start byte.
func (e *Engine) Cyclestart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Write(rtCycleStart)
}

// StatusReport issues a user-requested `?` poll; the reply is forwarded
// upstream because Write marks replyStatusReport for an exact "?" write.
func (e *Engine) StatusReport() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Write(rtStatus)
}

// Homing writes the homing cycle command.
func (e *Engine) Homing() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Writeln("$H")
}

// Sleep writes the sleep command.
func (e *Engine) Sleep() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Writeln("$SLP")
}

// Unlock clears an alarm lock.
func (e *Engine) Unlock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Writeln("$X")
}

// Reset writes a soft reset.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Write(rtSoftReset)
}

// FeedOverride, SpindleOverride and RapidOverride translate a
// percentage-delta token ("100", "+10", "-10", "+1", "-1"; rapid only
// supports "100"/"50"/"25") into its real-time override byte.
func (e *Engine) FeedOverride(v string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := feedOverrideBytes[v]; ok {
		e.Write(b)
	}
}

func (e *Engine) SpindleOverride(v string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := spindleOverrideBytes[v]; ok {
		e.Write(b)
	}
}

func (e *Engine) RapidOverride(v string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := rapidOverrideBytes[v]; ok {
		e.Write(b)
	}
}

// LaserTestOn runs a timed spindle-as-laser test: switch to G1 F1 feed
// mode, set power, and if duration > 0 dwell then switch the laser off.
func (e *Engine) LaserTestOn(power, durationMS, maxS int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if maxS <= 0 {
		maxS = 1000
	}
	s := maxS * power / 100
	e.gcodeLocked([]string{"G1F1", fmt.Sprintf("M3S%d", s)}, nil)
	if durationMS > 0 {
		e.gcodeLocked([]string{fmt.Sprintf("G4P%.3f", float64(durationMS)/1000), "M5S0"}, nil)
	}
}

// LaserTestOff stops the spindle/laser immediately.
func (e *Engine) LaserTestOff() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gcodeLocked([]string{"M5"}, nil)
}

// MacroRun and MacroLoad fire the corresponding trigger hooks; the
// actual macro text is resolved by the external config collaborator and
// supplied to the trigger's gcode binding ahead of time.
func (e *Engine) MacroRun(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.trigger != nil {
		e.trigger.Fire("macro:run")
	}
	e.emit(&events.MacroEvent{BaseEvent: events.NewUserEvent(events.EventMacroRun), ID: id})
}

func (e *Engine) MacroLoad(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.trigger != nil {
		e.trigger.Fire("macro:load")
	}
	e.emit(&events.MacroEvent{BaseEvent: events.NewUserEvent(events.EventMacroLoad), ID: id})
}

// WatchdirLoad is a no-op placeholder at the engine layer: watching a
// directory for new programs is owned by the external config/filesystem
// collaborator, which calls LoadGcode once a file is ready.
func (e *Engine) WatchdirLoad(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Info("watchdir:load requested", "path", path)
}

// legacy aliases forward to their gcode:* form with a deprecation
// warning, per §6. Each locks once and calls the shared Locked helper
// directly rather than the public method, since mu isn't reentrant.
func (e *Engine) LegacyStart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Warn("deprecated command alias", "alias", "start", "use", "gcode:start")
	e.startLocked()
}

func (e *Engine) LegacyStop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Warn("deprecated command alias", "alias", "stop", "use", "gcode:stop")
	e.stopLocked(false)
}

func (e *Engine) LegacyPause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Warn("deprecated command alias", "alias", "pause", "use", "gcode:pause")
	e.pauseLocked()
}

func (e *Engine) LegacyResume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log.Warn("deprecated command alias", "alias", "resume", "use", "gcode:resume")
	e.resumeLocked()
}
