package grbl

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/npratt/grblctl/internal/events"
)

// Port is the serial transport surface the engine writes to and reads
// classified lines from. internal/serialport provides the real
// go.bug.st/serial-backed implementation.
type Port interface {
	Write(p []byte) (int, error)
	Close() error
}

// Real-time single-byte commands (§6), which bypass the line queues and
// are written immediately, never newline-terminated.
const (
	rtStatus     = "?"
	rtFeedHold   = "!"
	rtCycleStart = "~"
	rtSoftReset  = "\x18"
)

var realTimeBytes = map[string]bool{
	rtStatus: true, rtFeedHold: true, rtCycleStart: true, rtSoftReset: true,
	"\x90": true, "\x91": true, "\x92": true, "\x93": true, "\x94": true,
	"\x95": true, "\x96": true, "\x97": true,
	"\x99": true, "\x9a": true, "\x9b": true, "\x9c": true, "\x9d": true,
}

// actionMasks holds the boolean masks and timestamps used to gate
// redundant queries and correlate unsolicited vs. user-requested
// responses (§3 Action Masks & Timers).
type actionMasks struct {
	queryParserStateState bool
	queryParserStateReply bool
	queryParserStateStamp time.Time

	queryStatusReport      bool
	queryStatusReportStamp time.Time

	replyParserState bool
	replyStatusReport bool

	senderFinishTime time.Time
}

func (m *actionMasks) clear() {
	*m = actionMasks{}
}

// Engine is the protocol engine (§4.8): it owns the Device, Feeder,
// Sender and Workflow, routes classified inbound records to them, and
// exposes the command-bus surface (§6).
//
// All state mutations are serialized behind mu: the serial read handler
// (HandleLine), the periodic tick (Tick) and command-bus dispatch
// (the exported command methods below and in commands.go) run from
// different goroutines — Run's loop and one per daemon connection — and
// all touch the same unsynchronized Device/Feeder/Sender/Workflow
// state. mu plays the role the teacher's controller.go gives its
// stateMu/beadMu/currentTurnMu: one lock per Engine rather than a
// command channel, since most command-bus calls need to read and
// mutate more than one component atomically. Methods named with a
// "Locked" suffix assume the caller already holds mu and must not be
// called except from another locked entry point.
type Engine struct {
	mu sync.RWMutex

	port     Port
	portName string
	baud     int

	device   *Device
	feeder   *Feeder
	sender   *Sender
	workflow *Workflow
	trigger  *EventTrigger
	router   *events.Router

	masks actionMasks

	ready       bool
	initialized bool

	lastDeviceSnapshot DeviceSnapshot
	lastSettings       map[string]string
	lastWorkPos        Position

	log *slog.Logger
}

// NewEngine wires a Device, Feeder, Sender and Workflow together. The
// Feeder and Sender share emitter/pauser wiring set up by the caller
// (see Assemble in wiring.go); NewEngine only needs the finished
// components plus a trigger and router to route events through.
func NewEngine(port Port, device *Device, feeder *Feeder, sender *Sender, workflow *Workflow, trigger *EventTrigger, router *events.Router, log *slog.Logger) *Engine {
	e := &Engine{}
	e.init(port, device, feeder, sender, workflow, trigger, router, log)
	return e
}

// init populates an already-allocated Engine's fields. Assemble needs
// this split from NewEngine: it allocates the Engine up front so the
// Feeder/Sender emitters can hold a pointer to it while it's still
// being built, then finishes wiring it in place — copying a built
// Engine onto it (`*e = *other`) would copy mu, which sync.RWMutex
// forbids once any goroutine might observe it.
func (e *Engine) init(port Port, device *Device, feeder *Feeder, sender *Sender, workflow *Workflow, trigger *EventTrigger, router *events.Router, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	e.port = port
	e.device = device
	e.feeder = feeder
	e.sender = sender
	e.workflow = workflow
	e.trigger = trigger
	e.router = router
	e.lastSettings = make(map[string]string)
	e.log = log
}

func (e *Engine) emit(ev events.Event) {
	if e.router != nil {
		e.router.Emit(ev)
	}
}

// HandleLine classifies one newline-stripped inbound line and routes it
// per §4.8.
func (e *Engine) HandleLine(line string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := ParseLine(line)
	switch res.Kind {
	case KindStatus:
		e.handleStatus(res)
	case KindOk:
		e.handleOk(res)
	case KindError:
		e.handleError(res)
	case KindAlarm:
		e.handleAlarm(res)
	case KindParserState:
		e.handleParserState(res)
	case KindSetting:
		e.handleSetting(res)
	case KindStartup:
		e.handleStartup(res)
	default:
		// Parameters, Feedback, Other: emit upstream unchanged.
		e.emitRaw(res.Raw)
	}
}

func (e *Engine) emitRaw(line string) {
	e.emit(&events.SerialReadEvent{BaseEvent: events.NewDeviceEvent(events.EventSerialRead), Line: line})
}

func (e *Engine) handleStatus(res Response) {
	e.masks.queryStatusReport = false
	e.device.ApplyStatus(res.Status)
	if e.sender.ctx != nil {
		e.sender.ctx.SeedPosition(e.device.MachinePosition(), e.device.WorkPosition())
	}
	if e.masks.replyStatusReport {
		e.emitRaw(res.Raw)
		e.masks.replyStatusReport = false
	}
	if res.Status.RXBufferFreeSet && e.workflow.State() == WorkflowIdle {
		e.sender.UpgradeBufferSize(res.Status.RXBufferFree)
	}
	e.checkDeviceChange()
}

func (e *Engine) handleOk(res Response) {
	if e.masks.queryParserStateReply {
		e.masks.queryParserStateReply = false
		if e.masks.replyParserState {
			e.emitRaw(res.Raw)
			e.masks.replyParserState = false
		}
		return
	}

	switch e.workflow.State() {
	case WorkflowRunning:
		e.sender.Ack()
		if e.sender.Held() && e.sender.Received() >= e.sender.Sent() {
			e.sender.Unhold()
		}
		e.sender.Next()
	case WorkflowPaused:
		if e.sender.Received() < e.sender.Sent() {
			e.sender.Ack()
			return
		}
		e.emitRaw(res.Raw)
		e.feeder.Next()
	default:
		e.emitRaw(res.Raw)
		e.feeder.Next()
	}
}

func (e *Engine) handleError(res Response) {
	decoded := DecodeError(res.ErrorCode)
	if e.workflow.State() == WorkflowRunning {
		if line, index, ok := e.sender.InFlightLine(); ok {
			e.emitRaw(fmt.Sprintf("> %s (line=%d)", line, index))
		}
		e.emitRaw(decoded)
		e.workflow.Pause(decoded)
		e.sender.Ack()
		e.sender.Next()
		return
	}
	e.emitRaw(decoded)
	e.feeder.Next()
}

func (e *Engine) handleAlarm(res Response) {
	e.emitRaw(DecodeAlarm(res.AlarmCode))
	e.emit(&events.ErrorEvent{
		BaseEvent: events.NewDeviceEvent(events.EventError),
		Message:   DecodeAlarm(res.AlarmCode),
		Severity:  events.SeverityFatal,
	})
}

func (e *Engine) handleParserState(res Response) {
	e.masks.queryParserStateState = false
	e.masks.queryParserStateReply = true
	if e.masks.replyParserState {
		e.emitRaw(res.Raw)
	}
}

func (e *Engine) handleSetting(res Response) {
	e.device.ApplySetting(res.SettingName, res.SettingValue)
	e.emitRaw(AnnotateSetting(res.SettingName, res.SettingValue))
	e.checkDeviceChange()
}

func (e *Engine) handleStartup(res Response) {
	e.emitRaw(res.Raw)
	if !e.initialized {
		e.Writeln("$$")
		e.initialized = true
	}
	e.ready = true
	e.masks.clear()
}

func (e *Engine) checkDeviceChange() {
	next := e.device.Snapshot()
	if SnapshotChanged(e.lastDeviceSnapshot, next) {
		e.lastDeviceSnapshot = next
		e.emit(&events.ControllerStateEvent{BaseEvent: events.NewDeviceEvent(events.EventControllerState), State: string(next.State)})
		e.emit(&events.ControllerStateEvent{BaseEvent: events.NewDeviceEvent(events.EventLegacyGrblState), State: string(next.State)})
	}
	settings := e.device.Settings()
	if SettingsChanged(e.lastSettings, settings) {
		e.lastSettings = settings
		e.emit(&events.ControllerSettingsEvent{BaseEvent: events.NewDeviceEvent(events.EventControllerSettings), Settings: settings})
		e.emit(&events.ControllerSettingsEvent{BaseEvent: events.NewDeviceEvent(events.EventLegacyGrblSettings), Settings: settings})
	}
}

// Write sends raw bytes to the port, tracking reply-correlation masks
// for `?`/`$G` and mirroring `$N=V` writes into the local settings map
// immediately so downstream listeners see the intended change before
// the device confirms it.
func (e *Engine) Write(data string) {
	if e.port == nil {
		e.log.Warn("write while serial port closed", "data", data)
		return
	}
	trimmed := strings.TrimSpace(data)
	if trimmed == rtStatus || trimmed == "$G" {
		if trimmed == rtStatus {
			e.masks.replyStatusReport = true
		} else {
			e.masks.replyParserState = true
		}
	}
	if name, value, ok := strings.Cut(trimmed, "="); ok && strings.HasPrefix(name, "$") {
		e.device.ApplySetting(name, value)
	}
	if _, err := e.port.Write([]byte(data)); err != nil {
		e.emit(&events.SerialErrorEvent{BaseEvent: events.NewInternalEvent(events.EventSerialError), Message: err.Error()})
		return
	}
	e.emit(&events.SerialWriteEvent{BaseEvent: events.NewInternalEvent(events.EventSerialWrite), Data: data})
}

// Writeln writes data as-is if it is a real-time single-byte command,
// else appends a newline terminator.
func (e *Engine) Writeln(data string) {
	if realTimeBytes[data] {
		e.Write(data)
		return
	}
	e.Write(data + "\n")
}

// queryStatusReport issues a `?` poll, gated by the clear-mask and
// open/ready preconditions, with 5s lost-response recovery.
func (e *Engine) queryStatusReport(now time.Time) {
	if e.masks.queryStatusReport && now.Sub(e.masks.queryStatusReportStamp) >= 5*time.Second {
		e.masks.queryStatusReport = false
	}
	if e.masks.queryStatusReport || !e.ready || e.port == nil {
		return
	}
	e.masks.queryStatusReport = true
	e.masks.queryStatusReportStamp = now
	e.Write(rtStatus)
}

// queryParserState issues a `$G` poll, leading-edge throttled at 500ms,
// only while the workflow and device are both Idle, with 10s lost-
// response recovery.
func (e *Engine) queryParserState(now time.Time) {
	if e.workflow.State() != WorkflowIdle || !e.device.IsIdle() {
		return
	}
	if e.masks.queryParserStateState && now.Sub(e.masks.queryParserStateStamp) >= 10*time.Second {
		e.masks.queryParserStateState = false
	}
	if e.masks.queryParserStateState {
		return
	}
	if !e.masks.queryParserStateStamp.IsZero() && now.Sub(e.masks.queryParserStateStamp) < 500*time.Millisecond {
		return
	}
	e.masks.queryParserStateState = true
	e.masks.queryParserStateStamp = now
	e.Writeln("$G")
}

// Close implements the §5 cancellation sequence: it clears ready and
// initialized, drops the port reference (the periodic tick becomes a
// no-op once e.port is nil) and closes the underlying transport.
// Calling Close more than once is a no-op.
func (e *Engine) Close(reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeLocked(reason)
}

func (e *Engine) closeLocked(reason string) error {
	if e.port == nil {
		return nil
	}
	e.ready = false
	e.initialized = false
	port := e.port
	e.port = nil

	err := port.Close()
	e.emit(&events.SerialCloseEvent{BaseEvent: events.NewDeviceEvent(events.EventSerialClose), Reason: reason})
	return err
}

// Destroy closes the port, if still open, and drops the engine's owned
// components. It is the terminal call in the daemon's shutdown path —
// no further command-bus calls or Tick calls are valid afterward.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.closeLocked("destroy")
	e.device = nil
	e.feeder = nil
	e.sender = nil
	e.workflow = nil
	e.trigger = nil
	e.router = nil
	return err
}
